package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/linkarr/linkarr/internal/enrich"
	"github.com/linkarr/linkarr/internal/providers"
)

// DefaultTemplate is the rename template used when the user set none.
const DefaultTemplate = "{title} ({year}) - {epLabel} - {episodeTitle}"

// Byte limits for a basename without extension, per client OS.
const (
	windowsNameLimit = 200
	macNameLimit     = 240
	linuxNameLimit   = 240
)

var tokenPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ProviderName renders the canonical display name for an entry with the
// default template and no OS truncation. Stored on the provider block;
// stable across repeated calls.
func ProviderName(e *enrich.Entry) string {
	return renderName(e, DefaultTemplate, "")
}

// Name renders an entry with a user template and truncates for the
// given client OS.
func Name(e *enrich.Entry, template, clientOS string) string {
	if template == "" {
		template = DefaultTemplate
	}
	return renderName(e, template, clientOS)
}

func renderName(e *enrich.Entry, template, clientOS string) string {
	tokens := tokenValues(e)

	name := tokenPattern.ReplaceAllStringFunc(template, func(m string) string {
		key := strings.TrimSuffix(strings.TrimPrefix(m, "{"), "}")
		return tokens[key]
	})

	name = cleanupArtifacts(name)
	name = ensureYear(name, tokens["year"])
	name = Sanitize(name)
	if clientOS != "" {
		name = Truncate(name, clientOS)
	}
	return name
}

// tokenValues computes the substitution map for one entry.
func tokenValues(e *enrich.Entry) map[string]string {
	isMovie := e.IsMovie != nil && *e.IsMovie

	title := e.SeriesTitleEnglish
	if title == "" {
		title = e.SeriesTitle
	}
	if title == "" {
		title = e.Title
	}
	if title == "" && e.Parsed != nil {
		title = e.Parsed.Title
	}
	if isMovie {
		if e.ExtraGuess != "" {
			title = e.ExtraGuess
		}
		title = providers.StripPartColon(title)
	} else {
		title = providers.StripSeasonSuffix(title)
	}
	title = cleanBaseTitle(title)

	tokens := map[string]string{
		"title":        title,
		"year":         e.Year,
		"episodeTitle": "",
		"epLabel":      "",
		"season":       "",
		"episode":      "",
		"episodeRange": e.EpisodeRange,
		"tmdbId":       "",
		"basename":     "",
	}
	if e.Parsed != nil {
		tokens["basename"] = e.Parsed.ParsedName
	}
	if e.Provider != nil && e.Provider.Provider == providers.TMDB {
		tokens["tmdbId"] = e.Provider.ID
	}

	if isMovie {
		return tokens
	}

	tokens["episodeTitle"] = e.EpisodeTitle
	if e.Season != nil {
		tokens["season"] = fmt.Sprintf("%d", *e.Season)
	}
	if e.Episode != nil {
		tokens["episode"] = fmt.Sprintf("%d", *e.Episode)
	}
	tokens["epLabel"] = epLabel(e)
	return tokens
}

// epLabel formats the episode label. Season defaults to 1 for labeling
// only; AniDB raw codes pass through verbatim.
func epLabel(e *enrich.Entry) string {
	if e.EpisodeCode != "" {
		return e.EpisodeCode
	}

	season := 1
	if e.Season != nil {
		season = *e.Season
	}

	switch {
	case e.EpisodeRange != "":
		return fmt.Sprintf("S%02dE%s", season, e.EpisodeRange)
	case e.Parsed != nil && e.Parsed.IsDecimalEpisode():
		return fmt.Sprintf("S%02dE%s", season, e.Parsed.EpisodeRaw)
	case e.Episode != nil:
		return fmt.Sprintf("S%02dE%02d", season, *e.Episode)
	default:
		return ""
	}
}

var (
	episodeMarkerInTitle = regexp.MustCompile(`(?i)\s*[-–—]?\s*(?:S\d{1,2}[\s._]?E\d{1,3}|\d{1,2}x\d{1,3}|Episode[\s._]+\d{1,3}|Ep?\.\s?\d{1,3})\b.*$`)
)

// cleanBaseTitle strips stray episode markers and anything after them
// from a title, keeping colon-joined subtitles intact.
func cleanBaseTitle(title string) string {
	cleaned := strings.TrimSpace(episodeMarkerInTitle.ReplaceAllString(title, ""))
	if cleaned == "" {
		return strings.TrimSpace(title)
	}
	return cleaned
}

var (
	emptyParens   = regexp.MustCompile(`\(\s*\)`)
	doubleSep     = regexp.MustCompile(`(?:\s*-\s*){2,}`)
	edgeDash      = regexp.MustCompile(`^\s*-\s*|\s*-\s*$`)
	multiSpace    = regexp.MustCompile(`\s{2,}`)
	yearParenForm = regexp.MustCompile(`\(\d{4}\)`)
	episodeMarker = regexp.MustCompile(`\b(?:S\d{2}E\d{1,3}(?:-\d{1,3})?|E\d{1,3})\b`)
)

// cleanupArtifacts removes the debris empty tokens leave behind.
func cleanupArtifacts(name string) string {
	name = emptyParens.ReplaceAllString(name, "")
	name = doubleSep.ReplaceAllString(name, " - ")
	name = edgeDash.ReplaceAllString(name, "")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// ensureYear inserts "(year)" at the conventional position when the
// template did not already place it: before the first episode marker,
// else before the first " - ", else at the end.
func ensureYear(name, year string) string {
	if year == "" || yearParenForm.MatchString(name) {
		return name
	}
	paren := "(" + year + ")"
	if loc := episodeMarker.FindStringIndex(name); loc != nil {
		prefix := strings.TrimRight(strings.TrimSpace(name[:loc[0]]), " -–—")
		if prefix == "" {
			return name + " " + paren
		}
		return prefix + " " + paren + " - " + strings.TrimSpace(name[loc[0]:])
	}
	if i := strings.Index(name, " - "); i >= 0 {
		return name[:i] + " " + paren + name[i:]
	}
	return name + " " + paren
}

var illegalChars = strings.NewReplacer(
	"\\", "", "/", "", ":", "", "*", "", "?", "",
	`"`, "", "<", "", ">", "", "|", "",
)

// Sanitize removes characters that are illegal in file names on any
// supported OS, then re-collapses whitespace.
func Sanitize(name string) string {
	name = illegalChars.Replace(name)
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// Truncate enforces the per-OS byte limit on a basename without
// extension. The series/year/label prefix survives; only the episode
// title suffix is shortened, with an ellipsis.
func Truncate(name, clientOS string) string {
	limit := linuxNameLimit
	switch clientOS {
	case "windows":
		limit = windowsNameLimit
	case "mac":
		limit = macNameLimit
	}
	if len(name) <= limit {
		return name
	}

	// Cutting from the end keeps the Title (Year) - SxxEyy prefix and
	// shortens only the episode-title suffix.
	const ellipsis = "…"
	return trimToBytes(name, limit-len(ellipsis)) + ellipsis
}

// trimToBytes cuts a string to at most n bytes on a rune boundary.
func trimToBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return strings.TrimRight(s[:n], " -")
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
