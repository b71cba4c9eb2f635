package sessionlist

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/models"
)

// Fetcher scrapes the Diet session calendar (会期一覧) from the House of
// Representatives site. The page is a single Shift_JIS table, one row per
// session, shared by both chambers.
type Fetcher struct {
	URL    string
	Client *sources.Client
}

var sessionHeaderRe = regexp.MustCompile(`第(\d+)回（(.+?)）`)
var daysRe = regexp.MustCompile(`\d+`)

// Fetch downloads and parses the full calendar. The list is append-only at
// the source; merging against stored sessions happens in sessionindex.
func (f *Fetcher) Fetch(ctx context.Context) ([]models.Session, error) {
	body, err := f.Client.Get(ctx, f.URL)
	if err != nil {
		return nil, fmt.Errorf("session calendar: %w", err)
	}
	text, err := sources.DecodeShiftJIS(body)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// Parse extracts sessions from the calendar page. Rows that do not carry the
// expected six columns (spanners, headers) are skipped.
func Parse(text string) ([]models.Session, error) {
	doc, err := sources.ParseHTML(text)
	if err != nil {
		return nil, err
	}
	tables := sources.FindAll(doc, "table")
	if len(tables) == 0 {
		return nil, fmt.Errorf("session calendar: no table found")
	}

	var out []models.Session
	for _, tr := range sources.FindAll(tables[0], "tr") {
		cols := sources.FindAll(tr, "td")
		if len(cols) != 6 {
			continue
		}
		header := sources.Text(cols[0])
		m := sessionHeaderRe.FindStringSubmatch(header)
		if m == nil {
			continue
		}
		number, _ := strconv.Atoi(m[1])

		sess := models.Session{
			Number:        number,
			Type:          m[2],
			Scope:         models.ScopeBoth,
			TotalDays:     parseDays(sources.Text(cols[3])),
			InitialDays:   parseDays(sources.Text(cols[4])),
			ExtensionDays: parseDays(sources.Text(cols[5])),
		}

		start, err := sources.ParseEraDate(sources.Text(cols[1]))
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", number, err)
		}
		sess.StartDate = start

		endText := sources.Text(cols[2])
		if strings.Contains(endText, "解散") {
			sess.Dissolved = true
		}
		// An open session has no end date yet; a dissolution row still
		// carries the dissolution date.
		if end, err := sources.ParseEraDate(endText); err == nil {
			sess.EndDate = end
		}
		out = append(out, sess)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("session calendar: no session rows parsed")
	}
	return out, nil
}

func parseDays(s string) int {
	m := daysRe.FindString(s)
	if m == "" {
		return 0
	}
	n, _ := strconv.Atoi(m)
	return n
}
