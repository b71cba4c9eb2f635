package models

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when no session covers a given date.
var ErrSessionNotFound = errors.New("session not found")

// ErrAmbiguousSession signals overlapping session date ranges for the same
// chamber. This is a data-integrity error and aborts the run.
var ErrAmbiguousSession = errors.New("ambiguous session: overlapping date ranges")

// ErrStoreConflict is returned when a concurrent writer changed a link
// between read and write.
var ErrStoreConflict = errors.New("link store conflict")

type Chamber string

const (
	ChamberShugiin Chamber = "衆議院"
	ChamberSangiin Chamber = "参議院"
)

// ChamberScope marks which chamber(s) a session covers. The Diet session
// calendar is shared between the houses, so most sessions are ScopeBoth.
type ChamberScope string

const (
	ScopeBoth    ChamberScope = "both"
	ScopeShugiin ChamberScope = "shugiin"
	ScopeSangiin ChamberScope = "sangiin"
)

// Covers reports whether the scope includes the given chamber.
func (s ChamberScope) Covers(c Chamber) bool {
	switch s {
	case ScopeShugiin:
		return c == ChamberShugiin
	case ScopeSangiin:
		return c == ChamberSangiin
	default:
		return true
	}
}

// Session is one sitting period of the Diet. Closed sessions are immutable;
// an in-progress session may have its end date revised until it closes.
type Session struct {
	Number        int          `json:"session_number"`
	Type          string       `json:"session_type"`
	Scope         ChamberScope `json:"chamber_scope"`
	StartDate     time.Time    `json:"start_date"`
	EndDate       time.Time    `json:"end_date"` // zero while the session is open
	Dissolved     bool         `json:"dissolved"`
	TotalDays     int          `json:"total_days"`
	InitialDays   int          `json:"initial_days"`
	ExtensionDays int          `json:"extension_days"`
}

// Open reports whether the session has no recorded end date yet, or ends in
// the future relative to now.
func (s Session) Open(now time.Time) bool {
	return s.EndDate.IsZero() || s.EndDate.After(now)
}

// MinutesRecord is the normalized metadata of one committee or plenary
// transcript. SourceID is the minutes API issueID and is stable across
// re-fetches.
type MinutesRecord struct {
	SourceID  string    `json:"source_id"`
	SessionID int       `json:"session_id"`
	Chamber   Chamber   `json:"chamber"`
	Committee string    `json:"committee_name"`
	Date      time.Time `json:"date"`
	Sequence  int       `json:"sequence_number_within_day"`
	RawTitle  string    `json:"raw_title"`
}

// TvSegment is one broadcast block of chamber television coverage.
// SegmentID is the broadcaster's deli_id.
type TvSegment struct {
	SegmentID     string    `json:"segment_id"`
	Chamber       Chamber   `json:"chamber"`
	BroadcastDate time.Time `json:"broadcast_date"`
	Committee     string    `json:"committee_name_as_broadcast"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Topics        []string  `json:"topics,omitempty"`
	Speakers      []string  `json:"speakers,omitempty"`
	URL           string    `json:"url,omitempty"`
}

// WrittenQuestion is one 質問主意書 entry from either chamber's list pages.
type WrittenQuestion struct {
	Chamber     Chamber `json:"chamber"`
	SessionID   int     `json:"session_id"`
	Number      int     `json:"number"`
	Subject     string  `json:"question_subject"`
	Submitter   string  `json:"submitter_name"`
	Status      string  `json:"progress_status,omitempty"`
	QuestionURL string  `json:"question_html_link,omitempty"`
	AnswerURL   string  `json:"answer_html_link,omitempty"`
}

// ConfidenceTier ranks how the committee names of a linked pair matched.
type ConfidenceTier string

const (
	TierExact ConfidenceTier = "exact"
	TierAlias ConfidenceTier = "alias"
	TierFuzzy ConfidenceTier = "fuzzy"
)

// Rank orders tiers; higher is more trustworthy. Unknown tiers rank zero.
func (t ConfidenceTier) Rank() int {
	switch t {
	case TierExact:
		return 3
	case TierAlias:
		return 2
	case TierFuzzy:
		return 1
	}
	return 0
}

// Link binds a minutes record to the TV segment that broadcast the same
// sitting. A superseded link stays in the store with SupersededAt set and
// SupersededBy pointing at the replacement.
type Link struct {
	ID              string         `json:"id"`
	MinutesSourceID string         `json:"minutes_source_id"`
	SegmentID       string         `json:"segment_id"`
	Tier            ConfidenceTier `json:"confidence_tier"`
	AliasVersion    string         `json:"alias_version,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	SupersededAt    *time.Time     `json:"superseded_at,omitempty"`
	SupersededBy    string         `json:"superseded_by,omitempty"`
}

type UnmatchedReason string

const (
	ReasonNoSegmentSameDay     UnmatchedReason = "no_segment_same_day"
	ReasonNoMatchFound         UnmatchedReason = "no_match_found"
	ReasonInsufficientSegments UnmatchedReason = "insufficient_segments"
)

// Unmatched is one entry of the operator-facing report for records the
// linking engine could not pair.
type Unmatched struct {
	MinutesSourceID string          `json:"minutes_source_id,omitempty"`
	SegmentID       string          `json:"segment_id,omitempty"`
	Chamber         Chamber         `json:"chamber"`
	Date            time.Time       `json:"date"`
	Reason          UnmatchedReason `json:"reason"`
}
