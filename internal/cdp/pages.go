package cdp

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/chromedp/cdproto/target"

	"github.com/runnerr0/tabcycle/internal/activation"
	"github.com/runnerr0/tabcycle/internal/history"
)

// Page is an open page target with its ordinal among pages.
type Page struct {
	ID      target.ID
	URL     string
	Title   string
	Ordinal int
}

// Record converts p to a history record; the ordinal becomes the position hint.
func (p Page) Record() history.TabRecord {
	return history.TabRecord{
		URL:          p.URL,
		Title:        p.Title,
		PositionHint: p.Ordinal,
		Closed:       history.ClosedNo,
	}
}

func pagesFromTargets(infos []*target.Info) []Page {
	pages := make([]Page, 0, len(infos))
	for _, t := range infos {
		if t == nil || t.Type != "page" {
			continue
		}
		pages = append(pages, Page{
			ID:      t.TargetID,
			URL:     t.URL,
			Title:   t.Title,
			Ordinal: len(pages),
		})
	}
	return pages
}

// pickPage finds the page for token: by ordinal when known, otherwise by
// exact title, then case-insensitive title, then a title containing the
// other, then the closest title.
func pickPage(pages []Page, token activation.Token) (Page, bool) {
	if token.HasPosition() {
		for _, p := range pages {
			if p.Ordinal == token.Position {
				return p, true
			}
		}
		return Page{}, false
	}

	for _, p := range pages {
		if p.Title == token.Title {
			return p, true
		}
	}
	for _, p := range pages {
		if strings.EqualFold(p.Title, token.Title) {
			return p, true
		}
	}
	want := strings.ToLower(token.Title)
	for _, p := range pages {
		have := strings.ToLower(p.Title)
		if have != "" && (strings.Contains(want, have) || strings.Contains(have, want)) {
			return p, true
		}
	}
	return closestTitle(pages, token.Title)
}

// closestTitle accepts a match within a quarter of the title's length.
func closestTitle(pages []Page, title string) (Page, bool) {
	maxDist := len(title) / 4
	if maxDist < 2 {
		maxDist = 2
	}

	best, bestDist := Page{}, maxDist+1
	want := strings.ToLower(title)
	for _, p := range pages {
		d := levenshtein.ComputeDistance(want, strings.ToLower(p.Title))
		if d < bestDist {
			best, bestDist = p, d
		}
	}
	return best, bestDist <= maxDist
}
