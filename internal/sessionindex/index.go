package sessionindex

import (
	"fmt"
	"sort"
	"time"

	"github.com/kokkai-archive/kokkaid/models"
)

// Index resolves dates to Diet sessions. It is read-mostly reference data:
// built once per run from the stored session list, consulted by every
// adapter.
type Index struct {
	sessions []models.Session // sorted by start date
}

// New builds an index and validates it. Overlapping date ranges within one
// chamber scope are a data-integrity error (models.ErrAmbiguousSession) and
// are reported upward, never silently resolved.
func New(sessions []models.Session, now time.Time) (*Index, error) {
	sorted := append([]models.Session(nil), sessions...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].Number < sorted[j].Number
	})
	// Validate each chamber's view separately: a session of the other
	// chamber sitting between two same-chamber sessions must not mask their
	// overlap, so every session is checked against the running max end date
	// of all earlier sessions covering the same chamber.
	for _, chamber := range []models.Chamber{models.ChamberShugiin, models.ChamberSangiin} {
		var maxEnd time.Time
		maxNumber := 0
		for _, s := range sorted {
			if !s.Scope.Covers(chamber) {
				continue
			}
			end := s.EndDate
			if end.IsZero() {
				end = now
			}
			if maxNumber != 0 && !s.StartDate.After(maxEnd) {
				return nil, fmt.Errorf("sessions %d and %d: %w", maxNumber, s.Number, models.ErrAmbiguousSession)
			}
			if end.After(maxEnd) {
				maxEnd = end
				maxNumber = s.Number
			}
		}
	}
	return &Index{sessions: sorted}, nil
}

// Resolve returns the session number covering the given date for the given
// chamber, or models.ErrSessionNotFound.
func (x *Index) Resolve(chamber models.Chamber, date time.Time) (int, error) {
	day := date.Truncate(24 * time.Hour)
	for i := len(x.sessions) - 1; i >= 0; i-- {
		s := x.sessions[i]
		if !s.Scope.Covers(chamber) {
			continue
		}
		if day.Before(s.StartDate) {
			continue
		}
		if s.EndDate.IsZero() || !day.After(s.EndDate) {
			return s.Number, nil
		}
	}
	return 0, models.ErrSessionNotFound
}

// Latest returns the highest session number, or zero when empty.
func (x *Index) Latest() int {
	if len(x.sessions) == 0 {
		return 0
	}
	latest := x.sessions[0].Number
	for _, s := range x.sessions[1:] {
		if s.Number > latest {
			latest = s.Number
		}
	}
	return latest
}

// Merge applies a refreshed session list onto the stored one: new sessions
// are appended and open sessions replaced, but a closed session is never
// rewritten.
func Merge(stored, fetched []models.Session, now time.Time) []models.Session {
	byNumber := make(map[int]int, len(stored))
	out := append([]models.Session(nil), stored...)
	for i, s := range out {
		byNumber[s.Number] = i
	}
	for _, f := range fetched {
		i, ok := byNumber[f.Number]
		if !ok {
			byNumber[f.Number] = len(out)
			out = append(out, f)
			continue
		}
		if out[i].Open(now) {
			out[i] = f
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}
