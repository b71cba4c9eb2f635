package minutes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/models"
)

// Fetcher pulls meeting metadata from the National Diet Library minutes API
// and normalizes it into MinutesRecord values.
type Fetcher struct {
	BaseURL  string
	PageSize int
	Client   *sources.Client
}

type MeetingRecord struct {
	IssueID       string `json:"issueID"`
	NameOfHouse   string `json:"nameOfHouse"`
	NameOfMeeting string `json:"nameOfMeeting"`
	Issue         string `json:"issue"`
	Date          string `json:"date"`
	Session       int    `json:"session"`
}

type listResponse struct {
	NumberOfRecords    int             `json:"numberOfRecords"`
	NextRecordPosition *int            `json:"nextRecordPosition"`
	MeetingRecord      []MeetingRecord `json:"meetingRecord"`
}

var issueNumberRe = regexp.MustCompile(`第(\d+)号`)

// Fetch retrieves all meetings held in [from, until] via the meeting_list
// endpoint, following nextRecordPosition pagination.
func (f *Fetcher) Fetch(ctx context.Context, from, until time.Time) ([]models.MinutesRecord, error) {
	pageSize := f.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	var raw []MeetingRecord
	start := 1
	for {
		params := url.Values{}
		params.Set("from", from.Format("2006-01-02"))
		params.Set("until", until.Format("2006-01-02"))
		params.Set("recordPacking", "json")
		params.Set("maximumRecords", strconv.Itoa(pageSize))
		params.Set("startRecord", strconv.Itoa(start))

		body, err := f.Client.Get(ctx, fmt.Sprintf("%s/meeting_list?%s", f.BaseURL, params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("meeting_list: %w", err)
		}
		var page listResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode meeting_list: %w", err)
		}
		raw = append(raw, page.MeetingRecord...)
		if page.NextRecordPosition == nil || *page.NextRecordPosition <= start {
			break
		}
		start = *page.NextRecordPosition
		if err := f.Client.Sleep(ctx); err != nil {
			return nil, err
		}
	}
	return Normalize(raw)
}

// Normalize converts raw API records into MinutesRecords and derives each
// record's sequence number within its (chamber, date, committee) day from
// the ascending issue number.
func Normalize(raw []MeetingRecord) ([]models.MinutesRecord, error) {
	type keyed struct {
		rec      models.MinutesRecord
		issueNum int
	}
	var all []keyed
	for _, r := range raw {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, fmt.Errorf("meeting %s: bad date %q: %w", r.IssueID, r.Date, err)
		}
		issueNum := 0
		if m := issueNumberRe.FindStringSubmatch(r.Issue); m != nil {
			issueNum, _ = strconv.Atoi(m[1])
		}
		all = append(all, keyed{
			rec: models.MinutesRecord{
				SourceID:  r.IssueID,
				SessionID: r.Session,
				Chamber:   models.Chamber(r.NameOfHouse),
				Committee: r.NameOfMeeting,
				Date:      date,
				RawTitle:  fmt.Sprintf("%s %s", r.NameOfMeeting, r.Issue),
			},
			issueNum: issueNum,
		})
	}
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.rec.Date.Equal(b.rec.Date) {
			return a.rec.Date.Before(b.rec.Date)
		}
		if a.rec.Chamber != b.rec.Chamber {
			return a.rec.Chamber < b.rec.Chamber
		}
		if a.rec.Committee != b.rec.Committee {
			return a.rec.Committee < b.rec.Committee
		}
		if a.issueNum != b.issueNum {
			return a.issueNum < b.issueNum
		}
		return a.rec.SourceID < b.rec.SourceID
	})
	out := make([]models.MinutesRecord, 0, len(all))
	seq := 0
	for i, k := range all {
		if i > 0 && sameSitting(all[i-1].rec, k.rec) {
			seq++
		} else {
			seq = 1
		}
		k.rec.Sequence = seq
		out = append(out, k.rec)
	}
	return out, nil
}

func sameSitting(a, b models.MinutesRecord) bool {
	return a.Date.Equal(b.Date) && a.Chamber == b.Chamber && a.Committee == b.Committee
}
