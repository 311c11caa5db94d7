package config

// DefaultProviderOrder is used when a user has no metadata_provider_order.
var DefaultProviderOrder = []string{"anidb", "anilist", "tvdb", "tmdb"}

// DefaultRenameTemplate is the default target-filename template.
const DefaultRenameTemplate = "{title} ({year}) - {epLabel} - {episodeTitle}"

// OutputFolder is one entry in a user's "Apply to…" picker.
type OutputFolder struct {
	Path string `json:"path"`
}

// UserSettings holds per-user configuration stored in the users map.
// Zero values mean "fall back to server config".
type UserSettings struct {
	TMDBAPIKey        string `json:"tmdb_api_key,omitempty"`
	AniListAPIKey     string `json:"anilist_api_key,omitempty"`
	TVDBV4APIKey      string `json:"tvdb_v4_api_key,omitempty"`
	TVDBV4UserPIN     string `json:"tvdb_v4_user_pin,omitempty"`
	AniDBUsername     string `json:"anidb_username,omitempty"`
	AniDBPassword     string `json:"anidb_password,omitempty"`
	AniDBClientName   string `json:"anidb_client_name,omitempty"`
	AniDBClientVer    int    `json:"anidb_client_version,omitempty"`
	ProviderOrder     []string `json:"metadata_provider_order,omitempty"`
	DefaultProvider   string   `json:"default_meta_provider,omitempty"`
	ScanInputPath     string   `json:"scan_input_path,omitempty"`
	ScanOutputPath    string   `json:"scan_output_path,omitempty"`
	RenameTemplate    string   `json:"rename_template,omitempty"`
	ClientOS          string   `json:"client_os,omitempty"` // windows, mac, linux
	EnableFolderWatch bool     `json:"enable_folder_watch,omitempty"`
	// DeleteHardlinksOnUnapprove defaults to true; stored as a pointer so an
	// unset value is distinguishable from an explicit false.
	DeleteHardlinksOnUnapprove *bool          `json:"delete_hardlinks_on_unapprove,omitempty"`
	OutputFolders              []OutputFolder `json:"output_folders,omitempty"`
	// ApprovedSeriesSources maps output-folder key to artwork provider
	// ("anilist", "tmdb", "anidb").
	ApprovedSeriesSources map[string]string `json:"approved_series_sources,omitempty"`
}

// EffectiveProviderOrder resolves the provider order for a user:
// explicit order > default_meta_provider first > global default.
func (u *UserSettings) EffectiveProviderOrder() []string {
	if len(u.ProviderOrder) > 0 {
		return u.ProviderOrder
	}
	if u.DefaultProvider != "" {
		order := []string{u.DefaultProvider}
		for _, p := range DefaultProviderOrder {
			if p != u.DefaultProvider {
				order = append(order, p)
			}
		}
		return order
	}
	return DefaultProviderOrder
}

// EffectiveTemplate resolves the rename template for a user.
func (u *UserSettings) EffectiveTemplate() string {
	if u.RenameTemplate != "" {
		return u.RenameTemplate
	}
	return DefaultRenameTemplate
}

// DeleteHardlinks reports the effective delete_hardlinks_on_unapprove value.
func (u *UserSettings) DeleteHardlinks() bool {
	if u.DeleteHardlinksOnUnapprove == nil {
		return true
	}
	return *u.DeleteHardlinksOnUnapprove
}

// InputPath resolves the scan input path against server defaults.
func (u *UserSettings) InputPath(server *Config) string {
	if u.ScanInputPath != "" {
		return u.ScanInputPath
	}
	return server.Library.InputPath
}

// OutputPath resolves the scan output path against server defaults.
func (u *UserSettings) OutputPath(server *Config) string {
	if u.ScanOutputPath != "" {
		return u.ScanOutputPath
	}
	return server.Library.OutputPath
}
