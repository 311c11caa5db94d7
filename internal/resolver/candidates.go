package resolver

import (
	"regexp"
	"strings"

	"github.com/linkarr/linkarr/internal/parser"
	"github.com/linkarr/linkarr/internal/pathutil"
)

// candidate is one possible series name with its origin: parent-folder
// names are held to a stricter match threshold than filename titles.
type candidate struct {
	name       string
	fromParent bool
}

type candidates struct {
	list []candidate
	// parentElevated is true when the basename started with an episode
	// marker and the parent folder was promoted to primary.
	parentElevated bool
}

func (c candidates) primary() string {
	if len(c.list) == 0 {
		return ""
	}
	return c.list[0].name
}

var (
	seasonFolderPattern = regexp.MustCompile(`(?i)^(?:season[ ._-]?\d{1,3}|s\d{1,2}|specials?)$`)
	extrasFolderPattern = regexp.MustCompile(`(?i)\b(?:featurettes?|extras?|bonus|behind.the.scenes|deleted.scenes|interviews?|trailers?|samples?)\b`)
)

// seriesCandidates derives the ordered series-name candidates for a
// file: the parsed title first, then the nearest parent folder that is
// not a season folder, extras folder, or episode-like name. When the
// basename itself starts with an episode marker the parent folder is
// promoted to primary.
func seriesCandidates(libraryRoot, canonicalPath string, parsed parser.Parsed) candidates {
	var out candidates

	parent := parentCandidate(libraryRoot, canonicalPath)

	base := strings.TrimSpace(parsed.Title)
	elevate := parser.StartsWithEpisode(lastSegment(canonicalPath)) ||
		(base != "" && parser.LooksEpisodeLike(base)) ||
		base == ""

	if elevate && parent != "" {
		out.parentElevated = true
		out.add(parent, true)
		out.add(base, false)
	} else {
		out.add(base, false)
		out.add(parent, true)
	}

	// Cleaned variants widen the net without changing priority.
	for _, c := range []candidate{{base, false}, {parent, true}} {
		if c.name == "" {
			continue
		}
		stripped := stripReleaseNoise(c.name)
		out.add(stripped, c.fromParent)
	}
	return out
}

func (c *candidates) add(name string, fromParent bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	for _, existing := range c.list {
		if strings.EqualFold(existing.name, name) {
			return
		}
	}
	c.list = append(c.list, candidate{name: name, fromParent: fromParent})
}

// parentCandidate walks parent folders innermost-first, relative to the
// library root so root directory names never leak into series titles.
func parentCandidate(libraryRoot, canonicalPath string) string {
	for _, seg := range pathutil.ParentSegments(libraryRoot, canonicalPath) {
		if seasonFolderPattern.MatchString(seg) || extrasFolderPattern.MatchString(seg) {
			continue
		}
		cleaned := stripReleaseNoise(seg)
		if cleaned == "" || parser.LooksEpisodeLike(cleaned) {
			continue
		}
		return cleaned
	}
	return ""
}

var (
	bracketNoise  = regexp.MustCompile(`\[[^\]]*\]`)
	parenSeason   = regexp.MustCompile(`(?i)\(\s*season\s+\d+\s*\)`)
	trailingNoise = regexp.MustCompile(`(?i)\b(1080p|720p|2160p|480p|x26[45]|hevc|10.?bit|bd(?:rip)?|web-?dl|bluray)\b.*$`)
)

// stripReleaseNoise removes bracketed release-group tags, parenthesized
// season markers, and trailing quality tokens from a folder name.
func stripReleaseNoise(s string) string {
	s = bracketNoise.ReplaceAllString(s, " ")
	s = parenSeason.ReplaceAllString(s, " ")
	s = trailingNoise.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " -_.")
}

func lastSegment(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
