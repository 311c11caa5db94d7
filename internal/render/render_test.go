package render

import (
	"strings"
	"testing"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/parser"
)

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func TestNameDefaultTemplate(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Frieren Beyond Journey's End",
		Year:         "2023",
		Season:       intPtr(1),
		Episode:      intPtr(5),
		EpisodeTitle: "Phantoms of the Dead",
	}
	got := Name(e, "", "")
	want := "Frieren Beyond Journey's End (2023) - S01E05 - Phantoms of the Dead"
	if got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}

func TestNameSeasonDefaultsToOne(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Show",
		Episode:      intPtr(3),
		EpisodeTitle: "Third",
	}
	got := Name(e, "", "")
	if !strings.Contains(got, "S01E03") {
		t.Errorf("expected S01E03 label, got %q", got)
	}
}

func TestNameEpisodeRange(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Show",
		Season:       intPtr(2),
		EpisodeRange: "03-04",
		Episode:      intPtr(3),
		EpisodeTitle: "Double",
	}
	got := Name(e, "", "")
	if !strings.Contains(got, "S02E03-04") {
		t.Errorf("expected range label, got %q", got)
	}
}

func TestNameAniDBCodePassesVerbatim(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Show",
		EpisodeCode:  "S2",
		EpisodeTitle: "Special",
	}
	got := Name(e, "{title} - {epLabel} - {episodeTitle}", "")
	want := "Show - S2 - Special"
	if got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}

func TestNameDecimalEpisode(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Show",
		Episode:      intPtr(11),
		EpisodeTitle: "Recap",
		Parsed:       &parser.Parsed{EpisodeRaw: "11.5"},
	}
	got := Name(e, "", "")
	if !strings.Contains(got, "S01E11.5") {
		t.Errorf("expected decimal label, got %q", got)
	}
}

func TestNameMovie(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle: "Deathly Hallows: Part 1",
		Year:        "2010",
		IsMovie:     boolPtr(true),
	}
	got := Name(e, "", "")
	want := "Deathly Hallows Part 1 (2010)"
	if got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}

func TestNameMissingEpisodeTitleLeavesNoTrailingDash(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle: "Show",
		Year:        "2020",
		Season:      intPtr(1),
		Episode:     intPtr(2),
	}
	got := Name(e, "", "")
	want := "Show (2020) - S01E02"
	if got != want {
		t.Errorf("Name = %q, want %q", got, want)
	}
}

func TestNameSeasonSuffixStripped(t *testing.T) {
	e := &enrich.Entry{
		SeriesTitle:  "Show 2nd Season",
		Season:       intPtr(2),
		Episode:      intPtr(1),
		EpisodeTitle: "Opener",
	}
	got := Name(e, "", "")
	if strings.Contains(got, "2nd Season") {
		t.Errorf("season suffix survived: %q", got)
	}
	if !strings.Contains(got, "S02E01") {
		t.Errorf("expected S02E01, got %q", got)
	}
}

func TestEnsureYearPlacement(t *testing.T) {
	tests := []struct {
		name string
		in   string
		year string
		want string
	}{
		{"before episode marker", "Show - S01E02 - Title", "2020", "Show (2020) - S01E02 - Title"},
		{"already present", "Show (2020) - S01E02", "2020", "Show (2020) - S01E02"},
		{"no marker uses first separator", "Show - Extra", "2020", "Show (2020) - Extra"},
		{"no separator appends", "Show", "2020", "Show (2020)"},
		{"no year", "Show - S01E02", "", "Show - S01E02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ensureYear(tt.in, tt.year); got != tt.want {
				t.Errorf("ensureYear = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize(`What If...?: The \Answer/ <is> "42"|*?`)
	if strings.ContainsAny(got, `\/:*?"<>|`) {
		t.Errorf("illegal characters survived: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	long := "Show (2020) - S01E02 - " + strings.Repeat("x", 300)

	for _, tt := range []struct {
		clientOS string
		limit    int
	}{
		{"windows", 200},
		{"mac", 240},
		{"linux", 240},
		{"", 240},
	} {
		got := Truncate(long, tt.clientOS)
		if len(got) > tt.limit {
			t.Errorf("%s: len = %d, want <= %d", tt.clientOS, len(got), tt.limit)
		}
		if !strings.HasPrefix(got, "Show (2020) - S01E02") {
			t.Errorf("%s: prefix lost: %q", tt.clientOS, got[:30])
		}
		if !strings.HasSuffix(got, "…") {
			t.Errorf("%s: expected ellipsis suffix", tt.clientOS)
		}
	}

	short := "Show (2020) - S01E02 - Fine"
	if got := Truncate(short, "windows"); got != short {
		t.Errorf("short name modified: %q", got)
	}
}
