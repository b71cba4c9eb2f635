package sessionindex

import (
	"errors"
	"testing"
	"time"

	"github.com/kokkai-archive/kokkaid/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func session(number int, start, end time.Time) models.Session {
	return models.Session{
		Number:    number,
		Type:      "常会",
		Scope:     models.ScopeBoth,
		StartDate: start,
		EndDate:   end,
	}
}

func TestResolve(t *testing.T) {
	now := date(2024, 6, 1)
	idx, err := New([]models.Session{
		session(211, date(2023, 1, 23), date(2023, 6, 21)),
		session(212, date(2023, 10, 20), date(2023, 12, 13)),
		session(213, date(2024, 1, 26), time.Time{}), // still open
	}, now)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	tests := []struct {
		name    string
		date    time.Time
		want    int
		wantErr error
	}{
		{"inside closed session", date(2023, 3, 1), 211, nil},
		{"start date inclusive", date(2023, 10, 20), 212, nil},
		{"end date inclusive", date(2023, 12, 13), 212, nil},
		{"inside open session", date(2024, 5, 14), 213, nil},
		{"recess between sessions", date(2023, 8, 1), 0, models.ErrSessionNotFound},
		{"before first session", date(2022, 1, 1), 0, models.ErrSessionNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Resolve(models.ChamberShugiin, tt.date)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("session = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewRejectsOverlap(t *testing.T) {
	now := date(2024, 6, 1)
	_, err := New([]models.Session{
		session(211, date(2023, 1, 23), date(2023, 6, 21)),
		session(212, date(2023, 6, 21), date(2023, 12, 13)), // starts on 211's last day
	}, now)
	if !errors.Is(err, models.ErrAmbiguousSession) {
		t.Fatalf("err = %v, want ErrAmbiguousSession", err)
	}
}

func TestNewOpenSessionOverlapsFollowing(t *testing.T) {
	now := date(2024, 6, 1)
	_, err := New([]models.Session{
		session(213, date(2024, 1, 26), time.Time{}), // open, runs up to now
		session(214, date(2024, 5, 1), time.Time{}),
	}, now)
	if !errors.Is(err, models.ErrAmbiguousSession) {
		t.Fatalf("err = %v, want ErrAmbiguousSession", err)
	}
}

func TestNewOverlapMaskedByOtherChamber(t *testing.T) {
	now := date(2024, 6, 1)

	// a sangiin-only session sorts between two overlapping shugiin sessions;
	// the overlap must still be caught
	first := session(301, date(2024, 1, 1), date(2024, 4, 1))
	first.Scope = models.ScopeShugiin
	between := session(302, date(2024, 1, 10), date(2024, 1, 20))
	between.Scope = models.ScopeSangiin
	second := session(303, date(2024, 2, 1), date(2024, 3, 1))
	second.Scope = models.ScopeShugiin

	_, err := New([]models.Session{first, between, second}, now)
	if !errors.Is(err, models.ErrAmbiguousSession) {
		t.Fatalf("err = %v, want ErrAmbiguousSession", err)
	}
}

func TestNewDisjointPerChamberAccepted(t *testing.T) {
	now := date(2024, 6, 1)

	shu := session(301, date(2024, 1, 1), date(2024, 2, 1))
	shu.Scope = models.ScopeShugiin
	san := session(302, date(2024, 1, 10), date(2024, 1, 20))
	san.Scope = models.ScopeSangiin
	shu2 := session(303, date(2024, 3, 1), date(2024, 4, 1))
	shu2.Scope = models.ScopeShugiin

	if _, err := New([]models.Session{shu, san, shu2}, now); err != nil {
		t.Fatalf("disjoint per-chamber calendar rejected: %v", err)
	}
}

func TestResolveScope(t *testing.T) {
	now := date(2024, 6, 1)
	emergency := session(215, date(2024, 3, 1), date(2024, 3, 3))
	emergency.Scope = models.ScopeSangiin
	emergency.Type = "緊急集会"
	idx, err := New([]models.Session{emergency}, now)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	if got, err := idx.Resolve(models.ChamberSangiin, date(2024, 3, 2)); err != nil || got != 215 {
		t.Errorf("sangiin resolve = (%d, %v), want 215", got, err)
	}
	if _, err := idx.Resolve(models.ChamberShugiin, date(2024, 3, 2)); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("shugiin must not resolve into a sangiin-only session, err = %v", err)
	}
}

func TestLatest(t *testing.T) {
	now := date(2024, 6, 1)
	idx, _ := New([]models.Session{
		session(212, date(2023, 10, 20), date(2023, 12, 13)),
		session(211, date(2023, 1, 23), date(2023, 6, 21)),
	}, now)
	if got := idx.Latest(); got != 212 {
		t.Errorf("latest = %d, want 212", got)
	}

	empty, _ := New(nil, now)
	if got := empty.Latest(); got != 0 {
		t.Errorf("latest on empty index = %d, want 0", got)
	}
}

func TestMerge(t *testing.T) {
	now := date(2024, 6, 1)
	closed := session(212, date(2023, 10, 20), date(2023, 12, 13))
	open := session(213, date(2024, 1, 26), time.Time{})
	stored := []models.Session{closed, open}

	rewrittenClosed := closed
	rewrittenClosed.TotalDays = 99
	closedOpen := open
	closedOpen.EndDate = date(2024, 6, 23)
	brand := session(214, date(2024, 8, 1), time.Time{})

	merged := Merge(stored, []models.Session{rewrittenClosed, closedOpen, brand}, now)
	if len(merged) != 3 {
		t.Fatalf("merged length = %d, want 3", len(merged))
	}
	byNumber := map[int]models.Session{}
	for _, s := range merged {
		byNumber[s.Number] = s
	}
	if byNumber[212].TotalDays != 0 {
		t.Error("closed session was rewritten")
	}
	if byNumber[213].EndDate.IsZero() {
		t.Error("open session should take the refreshed end date")
	}
	if _, ok := byNumber[214]; !ok {
		t.Error("new session missing after merge")
	}
}
