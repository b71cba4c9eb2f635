package qa

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/models"
)

// SanFetcher scrapes the House of Councillors written-question list for one
// session. Unlike the shugiin list, each question spans three table rows.
type SanFetcher struct {
	BaseURL string
	Client  *sources.Client
}

// ListURL builds the per-session list page URL.
func (f *SanFetcher) ListURL(session int) string {
	return fmt.Sprintf("%s/%d/syuisyo.htm", f.BaseURL, session)
}

// Fetch retrieves the question list for a session.
func (f *SanFetcher) Fetch(ctx context.Context, session int) ([]models.WrittenQuestion, error) {
	body, err := f.Client.Get(ctx, f.ListURL(session))
	if err != nil {
		return nil, fmt.Errorf("qa_san session %d: %w", session, err)
	}
	return ParseSanList(string(body), session)
}

// ParseSanList extracts questions from the list_c table. Rows come in
// triples: title row, detail row (number/submitter), links row.
func ParseSanList(text string, session int) ([]models.WrittenQuestion, error) {
	doc, err := sources.ParseHTML(text)
	if err != nil {
		return nil, err
	}
	var table *html.Node
	for _, t := range sources.FindAll(doc, "table") {
		if sources.HasClass(t, "list_c") {
			table = t
			break
		}
	}
	if table == nil {
		return nil, fmt.Errorf("qa_san session %d: question table not found", session)
	}

	rows := sources.FindAll(table, "tr")
	var out []models.WrittenQuestion
	for i := 0; i+2 < len(rows); i += 3 {
		title, detail, links := rows[i], rows[i+1], rows[i+2]

		q := models.WrittenQuestion{
			Chamber:   models.ChamberSangiin,
			SessionID: session,
		}
		for _, a := range sources.FindAll(title, "a") {
			if sources.HasClass(a, "Graylink") {
				q.Subject = sources.Text(a)
				break
			}
		}

		cells := sources.FindAll(detail, "td")
		cells = append(sources.FindAll(detail, "th"), cells...)
		if len(cells) == 0 {
			continue
		}
		number, err := strconv.Atoi(sources.Text(cells[0]))
		if err != nil {
			continue
		}
		q.Number = number
		if len(cells) >= 3 {
			q.Submitter = sources.Text(cells[2])
		}

		anchors := append(sources.FindAll(detail, "a"), sources.FindAll(links, "a")...)
		for _, a := range anchors {
			label := sources.Text(a)
			href := sources.Attr(a, "href")
			switch {
			case strings.Contains(label, "質問本文（html）"):
				q.QuestionURL = href
			case strings.Contains(label, "答弁本文（html）"):
				q.AnswerURL = href
			}
		}
		out = append(out, q)
	}
	return out, nil
}
