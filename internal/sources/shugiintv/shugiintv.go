package shugiintv

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/models"
)

// Fetcher scrapes the ShugiinTV video archive: per-day listing pages expose
// deli_id links, and each detail page carries the sitting's date, committee
// name and agenda. Pages are served as EUC-JP.
type Fetcher struct {
	BaseURL        string
	EmptyHTMLBytes int
	Client         *sources.Client
	DetailClient   *sources.Client
}

var deliIDRe = regexp.MustCompile(`deli_id=(\d+)`)

// Fetch walks every day in [from, until] and returns the segments found,
// sorted by numeric deli_id so downstream ordering is deterministic even
// when broadcast start times are absent from the archive pages.
func (f *Fetcher) Fetch(ctx context.Context, from, until time.Time) ([]models.TvSegment, error) {
	var segs []models.TvSegment
	seen := make(map[string]bool)
	for d := from; !d.After(until); d = d.AddDate(0, 0, 1) {
		listURL := fmt.Sprintf("%s?ex=VL&u_day=%s", f.BaseURL, d.Format("20060102"))
		body, err := f.Client.Get(ctx, listURL)
		if err != nil {
			return nil, fmt.Errorf("day listing %s: %w", d.Format("2006-01-02"), err)
		}
		text, err := sources.DecodeEUCJP(body)
		if err != nil {
			return nil, err
		}
		for _, id := range ParseDeliIDs(text) {
			if seen[id] {
				continue
			}
			seen[id] = true
			seg, ok, err := f.fetchDetail(ctx, id)
			if err != nil {
				return nil, err
			}
			if ok {
				segs = append(segs, seg)
			}
		}
		if err := f.Client.Sleep(ctx); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(segs, func(i, j int) bool {
		a, _ := strconv.Atoi(segs[i].SegmentID)
		b, _ := strconv.Atoi(segs[j].SegmentID)
		return a < b
	})
	return segs, nil
}

func (f *Fetcher) fetchDetail(ctx context.Context, deliID string) (models.TvSegment, bool, error) {
	detail := f.DetailClient
	if detail == nil {
		detail = f.Client
	}
	detailURL := fmt.Sprintf("%s?ex=VL&deli_id=%s", f.BaseURL, deliID)
	if err := detail.Sleep(ctx); err != nil {
		return models.TvSegment{}, false, err
	}
	body, err := detail.Get(ctx, detailURL)
	if err != nil {
		return models.TvSegment{}, false, fmt.Errorf("detail %s: %w", deliID, err)
	}
	text, err := sources.DecodeEUCJP(body)
	if err != nil {
		return models.TvSegment{}, false, err
	}
	if sources.IsEmptyHTML(text, f.EmptyHTMLBytes) {
		// retracted or never-published id; skip without error
		return models.TvSegment{}, false, nil
	}
	seg, err := ParseDetailHTML(text, detailURL, deliID)
	if err != nil {
		return models.TvSegment{}, false, fmt.Errorf("parse detail %s: %w", deliID, err)
	}
	return seg, true, nil
}

// ParseDeliIDs extracts the unique deli_id values referenced by a listing
// page, in first-seen order.
func ParseDeliIDs(text string) []string {
	doc, err := sources.ParseHTML(text)
	if err != nil {
		return nil
	}
	var ids []string
	seen := make(map[string]bool)
	for _, a := range sources.FindAll(doc, "a") {
		href := sources.Attr(a, "href")
		m := deliIDRe.FindStringSubmatch(href)
		if m == nil || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}
	return ids
}

// ParseDetailHTML extracts one segment from a detail page. The #library
// table holds 開会日 and 会議名 as key/value rows; the #library2 tables hold
// the agenda (案件) and the speaker links.
func ParseDetailHTML(text, pageURL, deliID string) (models.TvSegment, error) {
	doc, err := sources.ParseHTML(text)
	if err != nil {
		return models.TvSegment{}, err
	}

	seg := models.TvSegment{
		SegmentID: deliID,
		Chamber:   models.ChamberShugiin,
		URL:       pageURL,
	}

	if lib := sources.FindByID(doc, "library"); lib != nil {
		for _, tr := range sources.FindAll(lib, "tr") {
			tds := sources.FindAll(tr, "td")
			if len(tds) < 4 {
				continue
			}
			key := sources.Text(tds[1])
			value := sources.Text(tds[3])
			switch key {
			case "開会日":
				if d, err := sources.ParseWesternDate(value); err == nil {
					seg.BroadcastDate = d
				}
			case "会議名":
				seg.Committee = trimMeetingSuffix(value)
			}
		}
	}

	if lib2 := sources.FindByID(doc, "library2"); lib2 != nil {
		for _, table := range sources.FindAll(lib2, "table") {
			cells := sources.FindAll(table, "td")
			if !containsText(cells, "案件：") {
				continue
			}
			for _, td := range cells {
				if t := sources.Text(td); t != "" && t != "案件：" {
					seg.Topics = append(seg.Topics, t)
				}
			}
			break
		}
		speakerSeen := make(map[string]bool)
		for _, a := range sources.FindAll(lib2, "a") {
			if !sources.HasClass(a, "play_vod") {
				continue
			}
			name := sources.Text(a)
			if name == "" || speakerSeen[name] {
				continue
			}
			speakerSeen[name] = true
			seg.Speakers = append(seg.Speakers, name)
		}
	}

	if seg.BroadcastDate.IsZero() {
		return models.TvSegment{}, fmt.Errorf("detail page missing 開会日")
	}
	if seg.Committee == "" {
		return models.TvSegment{}, fmt.Errorf("detail page missing 会議名")
	}
	return seg, nil
}

// trimMeetingSuffix drops the " (第N回)" style annotation after the name.
func trimMeetingSuffix(name string) string {
	if i := strings.Index(name, " ("); i >= 0 {
		return name[:i]
	}
	return strings.TrimSpace(name)
}

func containsText(cells []*html.Node, s string) bool {
	for _, td := range cells {
		if sources.Text(td) == s {
			return true
		}
	}
	return false
}
