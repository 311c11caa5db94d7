package providers

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	placeholderPattern = regexp.MustCompile(`(?i)^(?:episode|ep\.?|folge|第)\s*\d+\s*(?:話|集)?$`)
	dateLikePattern    = regexp.MustCompile(`^\d{4}[-/.]\d{1,2}[-/.]\d{1,2}$|^(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4}$`)
)

// IsPlaceholderTitle reports whether an episode title is a numbering
// placeholder ("Episode 13", "Ep. 3", a bare number) rather than a real
// name.
func IsPlaceholderTitle(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return true
	}
	if placeholderPattern.MatchString(t) {
		return true
	}
	for _, r := range t {
		if !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '.' && r != '-' {
			return false
		}
	}
	return true
}

// IsDateLike reports whether a string is a date rather than a title.
func IsDateLike(title string) bool {
	return dateLikePattern.MatchString(strings.ToLower(strings.TrimSpace(title)))
}

// IsLatin reports whether a title is predominantly Latin script. Titles
// in other scripts are only used as a last resort.
func IsLatin(s string) bool {
	letters, latin := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.In(r, unicode.Latin) {
				latin++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return latin*2 > letters
}

var seasonSuffixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s*[:\-]?\s*\(?season\s+\d+\)?\s*$`),
	regexp.MustCompile(`(?i)\s*[:\-]?\s*\(?\d+(?:st|nd|rd|th)\s+season\)?\s*$`),
	regexp.MustCompile(`(?i)\s*[:\-]?\s*\(?(?:first|second|third|fourth|fifth)\s+season\)?\s*$`),
	regexp.MustCompile(`(?i)\s*[:\-]?\s*\(?s\d{2}\)?\s*$`),
}

// StripSeasonSuffix removes trailing season markers from a series title:
// "Season 2", "2nd Season", "Second Season", "S02" and their
// parenthesized forms.
func StripSeasonSuffix(title string) string {
	t := strings.TrimSpace(title)
	for _, p := range seasonSuffixPatterns {
		if stripped := strings.TrimSpace(p.ReplaceAllString(t, "")); stripped != "" {
			t = stripped
		}
	}
	return strings.TrimRight(t, " :-")
}

// seasonOrdinal maps an ordinal or numeric token in a sequel title to a
// season number. Returns 0 when none is found.
var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
}

var seasonNumberPattern = regexp.MustCompile(`(?i)(?:season\s+(\d+)|(\d+)(?:st|nd|rd|th)\s+season|\bs(\d{2})\b|\bpart\s+(\d+)\b|\b(\d+)\s*$)`)

// SeasonNumberFromTitle infers the season a sequel title refers to by
// parsing ordinal words and numeric tokens.
func SeasonNumberFromTitle(title string) int {
	lower := strings.ToLower(title)
	for word, n := range ordinalWords {
		if strings.Contains(lower, word+" season") {
			return n
		}
	}
	if m := seasonNumberPattern.FindStringSubmatch(title); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				var n int
				for _, r := range g {
					n = n*10 + int(r-'0')
				}
				return n
			}
		}
	}
	return 0
}

var partColonPattern = regexp.MustCompile(`(?i):\s*(part\s+\d+)\s*$`)

// StripPartColon removes the colon before a trailing "Part N" so movie
// titles render as "Deathly Hallows Part 1".
func StripPartColon(title string) string {
	return partColonPattern.ReplaceAllString(title, " $1")
}

var quoteReplacer = strings.NewReplacer(
	"‘", "'", "’", "'",
	"“", `"`, "”", `"`,
	"′", "'",
)

// NormalizeQuotes replaces curly apostrophes and quotes with straight
// ASCII ones.
func NormalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

var englishTitleCaser = cases.Title(language.English)

// IsAllCaps reports whether every letter in the string is uppercase.
func IsAllCaps(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

// TitleCaseIfAllCaps converts an ALL-CAPS title into title case; mixed
// case titles pass through untouched.
func TitleCaseIfAllCaps(s string) string {
	if !IsAllCaps(s) {
		return s
	}
	return englishTitleCaser.String(strings.ToLower(s))
}

// romajiParticles are Japanese particles that stay lowercase mid-title
// in romanized strings.
var romajiParticles = map[string]bool{
	"wa": true, "no": true, "ni": true, "o": true, "wo": true,
	"ga": true, "to": true, "de": true, "e": true, "mo": true,
	"ka": true, "na": true,
}

// LowercaseRomajiParticles lowercases particle words in the interior of
// a romanized Japanese title. First and last words keep their casing.
func LowercaseRomajiParticles(title string) string {
	words := strings.Fields(title)
	if len(words) < 3 {
		return title
	}
	for i := 1; i < len(words)-1; i++ {
		if romajiParticles[strings.ToLower(words[i])] {
			words[i] = strings.ToLower(words[i])
		}
	}
	return strings.Join(words, " ")
}

// LooksRomaji reports whether a Latin-script title reads like romanized
// Japanese, judged by the share of words that are common particles.
func LooksRomaji(title string) bool {
	words := strings.Fields(strings.ToLower(title))
	if len(words) < 3 {
		return false
	}
	particles := 0
	for _, w := range words {
		if romajiParticles[w] {
			particles++
		}
	}
	return particles >= 2 || particles*4 >= len(words)
}
