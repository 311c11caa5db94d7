package providers

import "testing"

func TestStripSeasonSuffix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Show Season 2", "Show"},
		{"Show 2nd Season", "Show"},
		{"Show: Second Season", "Show"},
		{"Show S02", "Show"},
		{"Show (Season 3)", "Show"},
		{"Show", "Show"},
		// Stripping everything would leave nothing; keep the original.
		{"Season 2", "Season 2"},
	}
	for _, tt := range tests {
		if got := StripSeasonSuffix(tt.input); got != tt.want {
			t.Errorf("StripSeasonSuffix(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestSeasonNumberFromTitle(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"Show Season 3", 3},
		{"Show 2nd Season", 2},
		{"Show Second Season", 2},
		{"Show Part 2", 2},
		{"Show 3", 3},
		{"Show", 0},
	}
	for _, tt := range tests {
		if got := SeasonNumberFromTitle(tt.input); got != tt.want {
			t.Errorf("SeasonNumberFromTitle(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestStripPartColon(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Deathly Hallows: Part 1", "Deathly Hallows Part 1"},
		{"Movie: Subtitle", "Movie: Subtitle"},
		{"Movie Part 2", "Movie Part 2"},
	}
	for _, tt := range tests {
		if got := StripPartColon(tt.input); got != tt.want {
			t.Errorf("StripPartColon(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTitleCaseIfAllCaps(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ATTACK ON TITAN", "Attack On Titan"},
		{"Attack on Titan", "Attack on Titan"},
		{"MIXED Case", "MIXED Case"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := TitleCaseIfAllCaps(tt.input); got != tt.want {
			t.Errorf("TitleCaseIfAllCaps(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsPlaceholderTitle(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Episode 13", true},
		{"Ep. 3", true},
		{"13", true},
		{"", true},
		{"The Battle of Shiganshina", false},
	}
	for _, tt := range tests {
		if got := IsPlaceholderTitle(tt.input); got != tt.want {
			t.Errorf("IsPlaceholderTitle(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsLatin(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Frieren", true},
		{"葬送のフリーレン", false},
		{"12345", false},
	}
	for _, tt := range tests {
		if got := IsLatin(tt.input); got != tt.want {
			t.Errorf("IsLatin(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLowercaseRomajiParticles(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Kimi No Na Wa Movie", "Kimi no na wa Movie"},
		// First and last words keep their casing.
		{"No Game No Life", "No Game no Life"},
		{"Short No", "Short No"},
	}
	for _, tt := range tests {
		if got := LowercaseRomajiParticles(tt.input); got != tt.want {
			t.Errorf("LowercaseRomajiParticles(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLooksRomaji(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"Boku no Hero Academia", true},
		{"Kimi no Na wa", true},
		{"The Dark Knight Rises", false},
		{"Frieren", false},
	}
	for _, tt := range tests {
		if got := LooksRomaji(tt.input); got != tt.want {
			t.Errorf("LooksRomaji(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
