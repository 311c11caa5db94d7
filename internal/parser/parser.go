package parser

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parsed is the result of parsing one media basename. Season and Episode
// stay nil when the filename does not carry them; the render engine alone
// assumes season 1 for label formatting.
type Parsed struct {
	Title        string `json:"title"`
	ParsedName   string `json:"parsedName"`
	Season       *int   `json:"season"`
	Episode      *int   `json:"episode"`
	EpisodeRange string `json:"episodeRange,omitempty"`
	// EpisodeRaw keeps the literal episode token ("11.5") for decimal
	// episodes so specials detection and labels can use it.
	EpisodeRaw   string    `json:"episodeRaw,omitempty"`
	EpisodeTitle string    `json:"episodeTitle,omitempty"`
	Year         string    `json:"year,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsDecimalEpisode reports whether the parsed episode was a decimal like 11.5.
func (p *Parsed) IsDecimalEpisode() bool {
	return strings.Contains(p.EpisodeRaw, ".")
}

var (
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]|\([^)]*(?:1080p|720p|2160p|480p|x26[45]|HEVC|10.?bit|BD|WEB)[^)]*\)`)
	versionPattern = regexp.MustCompile(`(?i)\bv[2-9]\b`)

	// Episode token patterns, tried in order.
	sxxEyyRange  = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})[-~]E?(\d{1,3})\b`)
	sxxEyy       = regexp.MustCompile(`(?i)\bS(\d{1,2})[\s._]?E(\d{1,3}(?:\.\d)?)\b`)
	nxnn         = regexp.MustCompile(`(?i)\b(\d{1,2})x(\d{1,3})\b`)
	epDot        = regexp.MustCompile(`(?i)\bEp?\.?\s?(\d{1,3}(?:\.\d)?)\b`)
	episodeWord  = regexp.MustCompile(`(?i)\bEpisode[\s._]+(\d{1,3}(?:\.\d)?)\b`)
	bareDecimal  = regexp.MustCompile(`(?:^|[\s._-])(\d{1,3}\.\d)(?:[\s._-]|$)`)
	seasonOnly   = regexp.MustCompile(`(?i)\bSeason[\s._]+(\d{1,2})\b`)
	yearPattern  = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	mediaTokens  = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p|4K|UHD|x26[45]|h\.?26[45]|HEVC|AVC|AV1|XviD|10.?bit|8.?bit|BluRay|BDRip|BRRip|WEB-?DL|WEB-?Rip|HDTV|DVDRip|AAC|FLAC|OPUS|DDP?5\.?1|TrueHD|REMUX|Multi-?Sub(?:s)?|Dual[\s.-]?Audio|UNCENSORED|REPACK|PROPER)\b`)
	trailerDash  = regexp.MustCompile(`\s+[-–—]\s+(.+)$`)
	spacesRun    = regexp.MustCompile(`\s+`)
	sepRun       = regexp.MustCompile(`[._]+`)
	groupSuffix  = regexp.MustCompile(`-[A-Za-z0-9]+$`)
	episodeStart = regexp.MustCompile(`(?i)^\s*(?:S\d{1,2}[\s._]?E\d{1,3}|\d{1,2}x\d{1,3}|Ep?\.?\s?\d{1,3}|Episode[\s._]+\d{1,3}|\d{1,3}(?:\.\d)?)\s*[-–—\s]`)
)

// Parse turns a basename into a Parsed entry. It never fails; fields the
// filename does not carry stay zero.
func Parse(basename string) Parsed {
	name := strings.TrimSuffix(basename, filepath.Ext(basename))
	name = normalizeQuotes(name)

	p := Parsed{ParsedName: name, Timestamp: time.Now()}

	work := bracketPattern.ReplaceAllString(name, " ")
	work = versionPattern.ReplaceAllString(work, " ")

	work, season, episode, epRange, epRaw := extractEpisodeToken(work)
	p.Season = season
	p.Episode = episode
	p.EpisodeRange = epRange
	p.EpisodeRaw = epRaw

	work = mediaTokens.ReplaceAllString(work, " ")

	if y := yearPattern.FindString(work); y != "" {
		p.Year = y
		work = strings.Replace(work, y, " ", 1)
	}

	// A trailing "– Episode Title" segment after the episode token.
	if m := trailerDash.FindStringSubmatch(work); m != nil {
		candidate := strings.TrimSpace(m[1])
		candidate = strings.Trim(candidate, "-–— ")
		if candidate != "" && !looksLikeResidue(candidate) {
			p.EpisodeTitle = collapse(candidate)
			work = strings.TrimSuffix(work, m[0])
		}
	}

	title := cleanResidue(work)
	if title == "" && p.EpisodeTitle != "" {
		// Basename was only an episode marker plus a title segment.
		title = ""
	}
	p.Title = title

	return p
}

// StartsWithEpisode reports whether the basename begins with an episode
// marker followed by a dash or space. Callers then prefer the parent
// folder as the series title.
func StartsWithEpisode(basename string) bool {
	name := strings.TrimSuffix(basename, filepath.Ext(basename))
	name = bracketPattern.ReplaceAllString(name, "")
	name = strings.TrimSpace(name)
	return episodeStart.MatchString(name)
}

// LooksEpisodeLike reports whether a title string is itself an episode
// marker rather than a series name.
func LooksEpisodeLike(title string) bool {
	t := strings.TrimSpace(title)
	if t == "" {
		return false
	}
	if _, err := strconv.Atoi(t); err == nil {
		return true
	}
	if regexp.MustCompile(`(?i)^(?:S\d{1,2}[\s._]?E\d{1,3}|Ep?\.?\s?\d{1,3}|Episode[\s._]+\d{1,3}|\d{1,2}x\d{1,3})$`).MatchString(t) {
		return true
	}
	return false
}

func extractEpisodeToken(s string) (rest string, season, episode *int, epRange, epRaw string) {
	if m := sxxEyyRange.FindStringSubmatch(s); m != nil {
		se, _ := strconv.Atoi(m[1])
		e1, _ := strconv.Atoi(m[2])
		season, episode = &se, &e1
		epRange = m[2] + "-" + m[3]
		epRaw = m[2]
		return strings.Replace(s, m[0], " ", 1), season, episode, epRange, epRaw
	}
	if m := sxxEyy.FindStringSubmatch(s); m != nil {
		se, _ := strconv.Atoi(m[1])
		season = &se
		episode, epRaw = parseEpisodeNumber(m[2])
		return strings.Replace(s, m[0], " ", 1), season, episode, "", epRaw
	}
	if m := nxnn.FindStringSubmatch(s); m != nil {
		se, _ := strconv.Atoi(m[1])
		ep, _ := strconv.Atoi(m[2])
		season, episode = &se, &ep
		return strings.Replace(s, m[0], " ", 1), season, episode, "", m[2]
	}
	if m := episodeWord.FindStringSubmatch(s); m != nil {
		episode, epRaw = parseEpisodeNumber(m[1])
		rest = strings.Replace(s, m[0], " ", 1)
		rest, season = extractSeasonOnly(rest)
		return rest, season, episode, "", epRaw
	}
	if m := epDot.FindStringSubmatch(s); m != nil {
		episode, epRaw = parseEpisodeNumber(m[1])
		rest = strings.Replace(s, m[0], " ", 1)
		rest, season = extractSeasonOnly(rest)
		return rest, season, episode, "", epRaw
	}
	if m := bareDecimal.FindStringSubmatch(s); m != nil {
		episode, epRaw = parseEpisodeNumber(m[1])
		return strings.Replace(s, m[1], " ", 1), nil, episode, "", epRaw
	}
	rest, season = extractSeasonOnly(s)
	return rest, season, nil, "", ""
}

func extractSeasonOnly(s string) (string, *int) {
	if m := seasonOnly.FindStringSubmatch(s); m != nil {
		se, _ := strconv.Atoi(m[1])
		return strings.Replace(s, m[0], " ", 1), &se
	}
	return s, nil
}

func parseEpisodeNumber(tok string) (*int, string) {
	if i := strings.IndexByte(tok, '.'); i >= 0 {
		whole, err := strconv.Atoi(tok[:i])
		if err != nil {
			return nil, tok
		}
		return &whole, tok
	}
	n, err := strconv.Atoi(tok)
	if err != nil {
		return nil, tok
	}
	return &n, tok
}

func looksLikeResidue(s string) bool {
	if mediaTokens.MatchString(s) {
		return true
	}
	if yearPattern.MatchString(s) && len(strings.Fields(s)) <= 2 {
		return true
	}
	return false
}

func cleanResidue(s string) string {
	s = sepRun.ReplaceAllString(s, " ")
	s = strings.Trim(s, " -–—")
	s = groupSuffix.ReplaceAllString(s, "")
	s = strings.Trim(s, " ()-–—")
	return collapse(s)
}

func collapse(s string) string {
	return strings.TrimSpace(spacesRun.ReplaceAllString(s, " "))
}

// normalizeQuotes converts curly and smart apostrophes/quotes to ASCII.
func normalizeQuotes(s string) string {
	r := strings.NewReplacer(
		"‘", "'", "’", "'", "ʼ", "'",
		"“", "\"", "”", "\"",
	)
	return r.Replace(s)
}
