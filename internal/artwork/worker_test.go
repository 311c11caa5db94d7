package artwork

import (
	"testing"

	"github.com/linkarr/linkarr/internal/config"
	"github.com/linkarr/linkarr/internal/enrich"
)

func TestAIDFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://anidb.net/anime/69", 69},
		{"https://anidb.net/anime/4521/similar", 4521},
		{"https://anidb.net/perl-bin/animedb.pl?show=anime&aid=17617", 17617},
		{"https://anidb.net/a12345", 12345},
		{"https://anidb.net/anime/", 0},
		{"https://example.com/nothing", 0},
	}
	for _, tt := range tests {
		if got := aidFromURL(tt.url); got != tt.want {
			t.Errorf("aidFromURL(%q) = %d, want %d", tt.url, got, tt.want)
		}
	}
}

func TestCacheKey(t *testing.T) {
	tests := []struct {
		root   string
		series string
		want   string
	}{
		{"/out", "Attack on Titan", "/out::attack on titan"},
		{"/out", "  Attack   ON  Titan ", "/out::attack on titan"},
		{"/alt", "Show", "/alt::show"},
	}
	for _, tt := range tests {
		if got := CacheKey(tt.root, tt.series); got != tt.want {
			t.Errorf("CacheKey(%q, %q) = %q, want %q", tt.root, tt.series, got, tt.want)
		}
	}
}

func TestBucketForLongestPrefixWins(t *testing.T) {
	cfg := &config.Config{}
	cfg.Library.OutputPath = "/out"
	w := &Worker{server: cfg}

	settings := config.UserSettings{
		OutputFolders: []config.OutputFolder{
			{Path: "/out/anime"},
			{Path: "/out/anime/movies"},
		},
	}

	tests := []struct {
		target string
		want   string
	}{
		{"/out/anime/movies/Show/file.mkv", "/out/anime/movies"},
		{"/out/anime/Show/file.mkv", "/out/anime"},
		{"/out/other/file.mkv", "/out"},
		{"/elsewhere/file.mkv", "/out"},
	}
	for _, tt := range tests {
		if got := w.bucketFor(tt.target, settings); got != tt.want {
			t.Errorf("bucketFor(%q) = %q, want %q", tt.target, got, tt.want)
		}
	}
}

func TestDisplaySeries(t *testing.T) {
	tests := []struct {
		name  string
		entry enrich.Entry
		want  string
	}{
		{"english preferred", enrich.Entry{SeriesTitleEnglish: "Attack on Titan", SeriesTitle: "Shingeki", Title: "ep"}, "Attack on Titan"},
		{"series title fallback", enrich.Entry{SeriesTitle: "Shingeki", Title: "ep"}, "Shingeki"},
		{"title last resort", enrich.Entry{Title: "ep"}, "ep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displaySeries(&tt.entry); got != tt.want {
				t.Errorf("displaySeries = %q, want %q", got, tt.want)
			}
		})
	}
}
