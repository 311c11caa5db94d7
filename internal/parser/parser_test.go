package parser

import (
	"math"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		title   string
		season  *int
		episode *int
		epRange string
		epTitle string
		year    string
	}{
		{
			name:    "dotted scene release",
			input:   "Show.Name.S01E05.1080p.WEB-DL.mkv",
			title:   "Show Name",
			season:  intPtr(1),
			episode: intPtr(5),
		},
		{
			name:    "episode range",
			input:   "Show Name S02E03-E04 [1080p].mkv",
			title:   "Show Name",
			season:  intPtr(2),
			episode: intPtr(3),
			epRange: "03-04",
		},
		{
			name:    "NxNN token",
			input:   "Series 2x08 HEVC.mkv",
			title:   "Series",
			season:  intPtr(2),
			episode: intPtr(8),
		},
		{
			name:    "episode word without season",
			input:   "Show Episode 12.mkv",
			title:   "Show",
			episode: intPtr(12),
		},
		{
			name:  "movie with year",
			input: "Movie Title (2019).mkv",
			title: "Movie Title",
			year:  "2019",
		},
		{
			name:    "trailing episode title",
			input:   "Show S01E05 - The Episode Title.mkv",
			title:   "Show",
			season:  intPtr(1),
			episode: intPtr(5),
			epTitle: "The Episode Title",
		},
		{
			name:    "decimal episode",
			input:   "Show 11.5 special.mkv",
			title:   "Show special",
			episode: intPtr(11),
		},
		{
			name:    "release group suffix",
			input:   "Show.Name.S01E02.1080p-GROUP.mkv",
			title:   "Show Name",
			season:  intPtr(1),
			episode: intPtr(2),
		},
		{
			name:  "only title",
			input: "Some Movie.mkv",
			title: "Some Movie",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.input)
			if p.Title != tt.title {
				t.Errorf("title = %q, want %q", p.Title, tt.title)
			}
			if !intPtrEq(p.Season, tt.season) {
				t.Errorf("season = %v, want %v", fmtIntPtr(p.Season), fmtIntPtr(tt.season))
			}
			if !intPtrEq(p.Episode, tt.episode) {
				t.Errorf("episode = %v, want %v", fmtIntPtr(p.Episode), fmtIntPtr(tt.episode))
			}
			if p.EpisodeRange != tt.epRange {
				t.Errorf("episodeRange = %q, want %q", p.EpisodeRange, tt.epRange)
			}
			if p.EpisodeTitle != tt.epTitle {
				t.Errorf("episodeTitle = %q, want %q", p.EpisodeTitle, tt.epTitle)
			}
			if p.Year != tt.year {
				t.Errorf("year = %q, want %q", p.Year, tt.year)
			}
		})
	}
}

func TestParseDecimalEpisode(t *testing.T) {
	p := Parse("Show 11.5 special.mkv")
	if !p.IsDecimalEpisode() {
		t.Error("expected decimal episode")
	}
	if p.EpisodeRaw != "11.5" {
		t.Errorf("episodeRaw = %q, want %q", p.EpisodeRaw, "11.5")
	}
}

func TestStartsWithEpisode(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"S01E05 - Title.mkv", true},
		{"01 - Title.mkv", true},
		{"Episode 3 - Title.mkv", true},
		{"Show Name S01E05.mkv", false},
		{"Just a Movie.mkv", false},
	}
	for _, tt := range tests {
		if got := StartsWithEpisode(tt.input); got != tt.want {
			t.Errorf("StartsWithEpisode(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLooksEpisodeLike(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"12", true},
		{"S01E05", true},
		{"Episode 3", true},
		{"2x08", true},
		{"Frieren", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := LooksEpisodeLike(tt.input); got != tt.want {
			t.Errorf("LooksEpisodeLike(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Attack on Titan", "attack on titan", 1},
		{"Attack on Titan", "Attack on Titan Final Season", 0.6},
		{"Frieren", "Mushoku Tensei", 0},
		{"", "", 0},
	}
	for _, tt := range tests {
		if got := TitleSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 0.001 {
			t.Errorf("TitleSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOverlapScore(t *testing.T) {
	// Full recall, partial precision weighs 0.75/0.25.
	got := OverlapScore("attack on titan", "attack on titan final season")
	if math.Abs(got-0.9) > 0.001 {
		t.Errorf("OverlapScore = %v, want 0.9", got)
	}

	if got := OverlapScore("frieren", "frieren"); math.Abs(got-1) > 0.001 {
		t.Errorf("identical titles = %v, want 1", got)
	}
	if got := OverlapScore("frieren", "mushoku tensei"); got != 0 {
		t.Errorf("disjoint titles = %v, want 0", got)
	}
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
