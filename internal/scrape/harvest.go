// Package scrape obtains raw candidate fragments from a rendered web
// calendar. The Browser source drives Chromium; Harvest does the DOM work and
// runs offline against saved HTML.
package scrape

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source produces raw fragments in document order. Duplicates are allowed;
// deduplication is the collector's job.
type Source interface {
	Fragments(ctx context.Context) ([]string, error)
}

// Static is a Source over a fixed list of fragments.
type Static []string

func (s Static) Fragments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]string(nil), s...), nil
}

// itemSelector matches elements whose visible text is usually one calendar
// entry: focusable buttons, callouts and anything styled as an event.
const itemSelector = `[data-is-focusable="true"][role="button"], .ms-Callout-main, [class*="event"], [class*="calendar-item"]`

// Bounds on element text; shorter is chrome, longer is a container.
const (
	minTextLen = 3
	maxTextLen = 500
)

// Harvest extracts candidate fragments from calendar HTML:
//
//   - the trimmed text of every element matching itemSelector;
//   - every aria-label that contains ':' and one of "AM", "PM", "meeting"
//     or "event".
//
// Element text comes first, then labels, each in document order.
func Harvest(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("scrape: parse html: %w", err)
	}

	var out []string
	doc.Find(itemSelector).Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if n := len(text); n < minTextLen || n >= maxTextLen {
			return
		}
		out = append(out, text)
	})

	doc.Find("[aria-label]").Each(func(_ int, s *goquery.Selection) {
		label, _ := s.Attr("aria-label")
		if isEventLabel(label) {
			out = append(out, label)
		}
	})

	return out, nil
}

func isEventLabel(label string) bool {
	if !strings.Contains(label, ":") {
		return false
	}
	for _, kw := range []string{"AM", "PM", "meeting", "event"} {
		if strings.Contains(label, kw) {
			return true
		}
	}
	return false
}
