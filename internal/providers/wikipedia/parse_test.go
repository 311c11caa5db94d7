package wikipedia

import "testing"

const seasonedPage = `
<html><body>
<div class="mw-heading"><h2>Season 1 (2020)</h2></div>
<p>intro</p>
<table class="wikitable plainrowheaders">
<tr><th>No.</th><th>Title</th><th>Air date</th></tr>
<tr><th>1</th><td class="summary">"The Beginning"</td><td>January 5, 2020</td></tr>
<tr><th>2</th><td class="summary">"Second Steps"[a]</td><td>January 12, 2020</td></tr>
</table>
<div class="mw-heading"><h2>Season 2 (2021)</h2></div>
<table class="wikitable plainrowheaders">
<tr><th>No.</th><th>Title</th><th>Air date</th></tr>
<tr><th>13</th><td class="summary">"Return"</td><td>April 4, 2021</td></tr>
<tr><th>14</th><td class="summary">"Departure"</td><td>April 11, 2021</td></tr>
</table>
<div class="mw-heading"><h2>Specials</h2></div>
<table class="wikitable plainrowheaders">
<tr><th>No.</th><th>Title</th></tr>
<tr><th>1</th><td class="summary">"Recap Special"</td></tr>
</table>
</body></html>`

func TestParseSeasonSection(t *testing.T) {
	tests := []struct {
		name      string
		season    int
		episode   int
		wantTitle string
		wantMax   int
		wantFound bool
	}{
		{"season 1 first episode", 1, 1, "The Beginning", 2, true},
		{"season 1 footnote stripped", 1, 2, "Second Steps", 2, true},
		{"season 2 continuous numbering", 2, 14, "Departure", 14, true},
		{"specials", 0, 1, "Recap Special", 1, true},
		{"episode past table", 1, 9, "", 2, false},
		{"missing season", 3, 1, "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, maxEp, found := ParseSeasonSection(seasonedPage, tt.season, tt.episode)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if title != tt.wantTitle {
				t.Errorf("title = %q, want %q", title, tt.wantTitle)
			}
			if maxEp != tt.wantMax {
				t.Errorf("maxEp = %d, want %d", maxEp, tt.wantMax)
			}
		})
	}
}

func TestParseSeasonSectionSingleTableFallback(t *testing.T) {
	const page = `
<html><body>
<h2>Episodes</h2>
<table class="wikitable plainrowheaders">
<tr><th>No.</th><th>Title</th></tr>
<tr><th>1</th><td class="summary">"Only One"</td></tr>
</table>
</body></html>`

	title, maxEp, found := ParseSeasonSection(page, 1, 1)
	if !found {
		t.Fatal("expected fallback to the single table")
	}
	if title != "Only One" {
		t.Errorf("title = %q, want %q", title, "Only One")
	}
	if maxEp != 1 {
		t.Errorf("maxEp = %d, want 1", maxEp)
	}

	// The fallback only applies to season 1 and specials.
	if _, _, found := ParseSeasonSection(page, 2, 1); found {
		t.Error("season 2 should not fall back to an unlabelled table")
	}
}

func TestParseSeasonSectionRejectsDatesAndPlaceholders(t *testing.T) {
	const page = `
<html><body>
<h2>Season 1</h2>
<table class="wikitable">
<tr><th>1</th><td>January 5, 2020</td><td>"Real Title"</td></tr>
<tr><th>2</th><td>Episode 2</td><td>"Named Episode"</td></tr>
</table>
</body></html>`

	title, _, found := ParseSeasonSection(page, 1, 1)
	if !found || title != "Real Title" {
		t.Errorf("episode 1: got (%q, %v), want (%q, true)", title, found, "Real Title")
	}

	title, _, found = ParseSeasonSection(page, 1, 2)
	if !found || title != "Named Episode" {
		t.Errorf("episode 2: got (%q, %v), want (%q, true)", title, found, "Named Episode")
	}
}

func TestParseSeasonSectionNonLatinFallback(t *testing.T) {
	const page = `
<html><body>
<h2>Season 1</h2>
<table class="wikitable">
<tr><th>1</th><td>「日本語タイトル」</td><td>"English Title"</td></tr>
</table>
</body></html>`

	title, _, found := ParseSeasonSection(page, 1, 1)
	if !found || title != "English Title" {
		t.Errorf("got (%q, %v), want (%q, true)", title, found, "English Title")
	}
}

func TestCleanCellTitle(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"Quoted Title"`, "Quoted Title"},
		{`"Title"[12]`, "Title"},
		{"  spaced   out  ", "spaced out"},
		{`"Inner" extras ignored`, "Inner"},
	}
	for _, tt := range tests {
		if got := cleanCellTitle(tt.input); got != tt.want {
			t.Errorf("cleanCellTitle(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
