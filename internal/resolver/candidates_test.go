package resolver

import (
	"testing"

	"github.com/linkarr/linkarr/internal/parser"
)

func TestSeriesCandidatesFilenameFirst(t *testing.T) {
	parsed := parser.Parse("Show Name S01E05.mkv")
	c := seriesCandidates("/lib", "/lib/Show Name/Season 01/Show Name S01E05.mkv", parsed)

	if c.parentElevated {
		t.Error("parent should not be elevated for a titled basename")
	}
	if got := c.primary(); got != "Show Name" {
		t.Errorf("primary = %q, want %q", got, "Show Name")
	}
}

func TestSeriesCandidatesParentElevation(t *testing.T) {
	parsed := parser.Parse("S01E05 - The Opening.mkv")
	c := seriesCandidates("/lib", "/lib/Show Name/Season 01/S01E05 - The Opening.mkv", parsed)

	if !c.parentElevated {
		t.Error("expected parent elevation for episode-first basename")
	}
	if got := c.primary(); got != "Show Name" {
		t.Errorf("primary = %q, want %q", got, "Show Name")
	}
}

func TestParentCandidateSkipsSeasonAndExtras(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/lib/Show Name/Season 01/file.mkv", "Show Name"},
		{"/lib/Show Name/Specials/file.mkv", "Show Name"},
		{"/lib/Show Name/Extras/file.mkv", "Show Name"},
		{"/lib/Show Name/S01/file.mkv", "Show Name"},
		{"/lib/file.mkv", ""},
	}
	for _, tt := range tests {
		if got := parentCandidate("/lib", tt.path); got != tt.want {
			t.Errorf("parentCandidate(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestParentCandidateStripsNoise(t *testing.T) {
	got := parentCandidate("/lib", "/lib/[Group] Show Name (Season 2) 1080p BluRay/file.mkv")
	if got != "Show Name" {
		t.Errorf("parentCandidate = %q, want %q", got, "Show Name")
	}
}

func TestStripReleaseNoise(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[SubsPlease] Frieren", "Frieren"},
		{"Show (Season 2)", "Show"},
		{"Show 1080p WEB-DL x265", "Show"},
		{"Plain Name", "Plain Name"},
	}
	for _, tt := range tests {
		if got := stripReleaseNoise(tt.input); got != tt.want {
			t.Errorf("stripReleaseNoise(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
