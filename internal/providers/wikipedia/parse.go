package wikipedia

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/linkarr/linkarr/internal/providers"
)

var (
	epNumberPattern = regexp.MustCompile(`^\d{1,4}(?:\.\d)?$`)
	quotedTitle     = regexp.MustCompile(`"([^"]+)"`)
	footnoteMarker  = regexp.MustCompile(`\[[^\]]*\]`)
)

// ParseSeasonSection locates the section whose heading matches the given
// season in a rendered episode-list page and extracts the title of the
// requested episode from the first table in that section. maxEp reports
// the highest episode number seen in the matched table so callers can
// detect stale caches.
func ParseSeasonSection(html string, season, episode int) (title string, maxEp int, found bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", 0, false
	}

	table := seasonTable(doc, season)
	if table == nil {
		return "", 0, false
	}

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}

		epIdx := -1
		var epNum int
		cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
			text := strings.TrimSpace(cell.Text())
			if epNumberPattern.MatchString(text) {
				if n, err := strconv.Atoi(strings.SplitN(text, ".", 2)[0]); err == nil {
					epIdx = i
					epNum = n
					return false
				}
			}
			return true
		})
		if epIdx < 0 {
			return
		}
		if epNum > maxEp {
			maxEp = epNum
		}
		if epNum != episode || found {
			return
		}

		if t := titleFromRow(cells, epIdx); t != "" {
			title = t
			found = true
		}
	})

	return title, maxEp, found
}

// seasonTable finds the first table after the heading for the season.
// Season 0 matches a "Specials" heading. Pages with a single episode
// table and no per-season headings fall back to that table.
func seasonTable(doc *goquery.Document, season int) *goquery.Selection {
	want := []string{fmt.Sprintf("season %d", season)}
	if season == 0 {
		want = []string{"specials", "special episodes"}
	}

	var table *goquery.Selection
	doc.Find("h2, h3").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(heading.Text()))
		text = strings.TrimSuffix(text, "[edit]")
		matched := false
		for _, w := range want {
			if strings.Contains(text, w) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
		// The heading may be wrapped in a div; walk following siblings of
		// the heading's block until a table appears.
		node := heading
		if heading.Parent().Is("div.mw-heading") {
			node = heading.Parent()
		}
		for sib := node.Next(); sib.Length() > 0; sib = sib.Next() {
			if sib.Is("table") {
				table = sib
				return false
			}
			if t := sib.Find("table").First(); t.Length() > 0 {
				table = t
				return false
			}
			if sib.Is("h2") || (sib.Is("div.mw-heading") && sib.Find("h2").Length() > 0) {
				break
			}
		}
		return false
	})

	if table == nil && season <= 1 {
		// Single-table pages without season headings.
		table = doc.Find("table.wikitable.plainrowheaders").First()
		if table.Length() == 0 {
			table = nil
		}
	}
	return table
}

// titleFromRow picks the episode-title cell: a class="summary" cell when
// present, otherwise the cell adjacent to the episode-number cell.
// Rejects dates, numbering placeholders, and non-Latin-only strings
// unless nothing else is available.
func titleFromRow(cells *goquery.Selection, epIdx int) string {
	var summary string
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		if cell.HasClass("summary") {
			summary = cleanCellTitle(cell.Text())
			return false
		}
		return true
	})
	if acceptable(summary) {
		return summary
	}

	var fallback string
	for off := 1; off <= 2; off++ {
		idx := epIdx + off
		if idx >= cells.Length() {
			break
		}
		text := cleanCellTitle(cells.Eq(idx).Text())
		if acceptable(text) {
			return text
		}
		if fallback == "" && text != "" && !providers.IsDateLike(text) && !providers.IsPlaceholderTitle(text) {
			fallback = text
		}
	}
	// Non-Latin only as last resort.
	return fallback
}

func acceptable(t string) bool {
	return t != "" &&
		!providers.IsDateLike(t) &&
		!providers.IsPlaceholderTitle(t) &&
		providers.IsLatin(t)
}

// cleanCellTitle extracts the quoted English title when present and
// strips footnote markers.
func cleanCellTitle(s string) string {
	s = strings.TrimSpace(s)
	if m := quotedTitle.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	// Footnotes render as bracketed references.
	s = footnoteMarker.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, `" `)
}
