package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/providers"
)

// Aliases maps a literal series name onto the folder name to use
// instead. Alias targets bypass season-suffix stripping.
type Aliases map[string]string

const aliasesFile = "series-aliases.json"

// LoadAliases reads series-aliases.json from the config dir. A missing
// file yields an empty map.
func LoadAliases(configDir string) (Aliases, error) {
	data, err := os.ReadFile(filepath.Join(configDir, aliasesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return Aliases{}, nil
		}
		return nil, err
	}
	var a Aliases
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", aliasesFile, err)
	}
	return a, nil
}

func (a Aliases) lookup(series string) (string, bool) {
	if v, ok := a[series]; ok {
		return v, true
	}
	for k, v := range a {
		if strings.EqualFold(k, series) {
			return v, true
		}
	}
	return "", false
}

// SeriesFolder computes the folder a rendered file lands in. TV series
// get a year-less titlecased name; movies get "Title (Year)".
func SeriesFolder(e *enrich.Entry, aliases Aliases) string {
	isMovie := e.IsMovie != nil && *e.IsMovie

	series := e.SeriesTitleEnglish
	if series == "" {
		series = e.SeriesTitle
	}
	if series == "" {
		series = e.Title
	}
	if series == "" && e.Parsed != nil {
		series = e.Parsed.Title
	}

	if alias, ok := aliases.lookup(series); ok {
		return Sanitize(alias)
	}

	if isMovie {
		title := providers.StripPartColon(series)
		if e.ExtraGuess != "" {
			title = providers.StripPartColon(e.ExtraGuess)
		}
		if e.Year != "" {
			return Sanitize(fmt.Sprintf("%s (%s)", title, e.Year))
		}
		return Sanitize(title)
	}

	series = providers.StripSeasonSuffix(series)
	series = providers.TitleCaseIfAllCaps(series)
	return Sanitize(series)
}

// SeasonFolder returns "Season NN" for TV entries, "" for movies.
func SeasonFolder(e *enrich.Entry) string {
	if e.IsMovie != nil && *e.IsMovie {
		return ""
	}
	season := 1
	if e.Season != nil {
		season = *e.Season
	}
	return fmt.Sprintf("Season %02d", season)
}

// TargetPath composes the full output path for an entry: output root,
// series folder, season folder, rendered name plus the source
// extension.
func TargetPath(outputRoot string, e *enrich.Entry, template, clientOS string, aliases Aliases, sourcePath string) string {
	name := Name(e, template, clientOS)
	ext := filepath.Ext(sourcePath)

	parts := []string{outputRoot, SeriesFolder(e, aliases)}
	if season := SeasonFolder(e); season != "" {
		parts = append(parts, season)
	}
	parts = append(parts, name+ext)
	return filepath.ToSlash(filepath.Join(parts...))
}
