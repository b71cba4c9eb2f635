package qa

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/models"
)

// Written-question lists moved to a different path from session 148 onward.
const shuModernSessionThreshold = 148

// ShuFetcher scrapes the House of Representatives written-question list for
// one session. Pages are Shift_JIS.
type ShuFetcher struct {
	BaseURL string
	Client  *sources.Client
}

// ListURL builds the per-session list page URL.
func (f *ShuFetcher) ListURL(session int) string {
	dir := "itdb_shitsumon"
	if session < shuModernSessionThreshold {
		dir = "itdb_shitsumona"
	}
	return fmt.Sprintf("%s/%s.nsf/html/shitsumon/kaiji%03d_l.htm", f.BaseURL, dir, session)
}

// Fetch retrieves the question list for a session.
func (f *ShuFetcher) Fetch(ctx context.Context, session int) ([]models.WrittenQuestion, error) {
	body, err := f.Client.Get(ctx, f.ListURL(session))
	if err != nil {
		return nil, fmt.Errorf("qa_shu session %d: %w", session, err)
	}
	text, err := sources.DecodeShiftJIS(body)
	if err != nil {
		return nil, err
	}
	return ParseShuList(text, session)
}

// ParseShuList extracts questions from the 質問主意書 table. The table
// announces its columns in header cells, so the parser maps them by name
// rather than position.
func ParseShuList(text string, session int) ([]models.WrittenQuestion, error) {
	doc, err := sources.ParseHTML(text)
	if err != nil {
		return nil, err
	}
	table := sources.FindByID(doc, "shitsumontable")
	if table == nil {
		return nil, fmt.Errorf("qa_shu session %d: question table not found", session)
	}

	colIdx := make(map[string]int)
	for i, th := range sources.FindAll(table, "th") {
		colIdx[sources.Text(th)] = i
	}
	numberCol := colIdx["番号"]
	subjectCol, hasSubject := colIdx["質問件名"]
	submitterCol, hasSubmitter := colIdx["提出者名"]
	statusCol, hasStatus := colIdx["経過状況"]

	var out []models.WrittenQuestion
	for _, tr := range sources.FindAll(table, "tr") {
		tds := sources.FindAll(tr, "td")
		if len(tds) == 0 {
			continue
		}
		number, err := strconv.Atoi(sources.Text(tds[numberCol]))
		if err != nil {
			continue // header or spanner row
		}
		q := models.WrittenQuestion{
			Chamber:   models.ChamberShugiin,
			SessionID: session,
			Number:    number,
		}
		if hasSubject && subjectCol < len(tds) {
			q.Subject = sources.Text(tds[subjectCol])
		}
		if hasSubmitter && submitterCol < len(tds) {
			q.Submitter = sources.Text(tds[submitterCol])
		}
		if hasStatus && statusCol < len(tds) {
			q.Status = sources.Text(tds[statusCol])
		}
		for _, a := range sources.FindAll(tr, "a") {
			label := sources.Text(a)
			href := sources.Attr(a, "href")
			switch {
			case strings.Contains(label, "質問本文"):
				q.QuestionURL = href
			case strings.Contains(label, "答弁本文"):
				q.AnswerURL = href
			}
		}
		out = append(out, q)
	}
	return out, nil
}
