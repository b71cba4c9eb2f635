package ingest

import (
	"time"
)

// Source names used as sync cursor keys.
const (
	SourceMinutes     = "minutes"
	SourceShugiinTV   = "shugiintv"
	SourceSessionList = "session_list"
	SourceQAShu       = "qa_shu"
	SourceQASan       = "qa_san"
	SourceLinking     = "linking"
)

// Cursor is the persisted watermark for one source. It is passed into and
// returned from every fetch invocation; there is no hidden module-level
// sync state.
type Cursor struct {
	Source    string
	Watermark time.Time
}

// Window computes the next fetch window. An explicit range wins; otherwise
// the window runs from the cursor watermark (inclusive, so a partially
// ingested day is re-fetched and deduplicated) to today. A fresh source with
// no watermark gets the configured backfill horizon.
func Window(c Cursor, explicitFrom, explicitUntil time.Time, now time.Time, backfill time.Duration) (from, until time.Time) {
	until = day(now)
	if !explicitUntil.IsZero() {
		until = day(explicitUntil)
	}
	switch {
	case !explicitFrom.IsZero():
		from = day(explicitFrom)
	case !c.Watermark.IsZero():
		from = day(c.Watermark)
	default:
		from = day(now.Add(-backfill))
	}
	if from.After(until) {
		from = until
	}
	return from, until
}

// Advance returns the cursor moved to the given watermark, never backwards.
func (c Cursor) Advance(watermark time.Time) Cursor {
	if watermark.After(c.Watermark) {
		c.Watermark = watermark
	}
	return c
}

// Merge appends fetched records to existing ones, dropping records whose key
// was already present and deduplicating within the fetched batch itself.
// First-seen order is preserved so re-runs stay deterministic.
func Merge[T any](existing, fetched []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(existing))
	out := append([]T(nil), existing...)
	for _, r := range existing {
		seen[key(r)] = struct{}{}
	}
	for _, r := range fetched {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
