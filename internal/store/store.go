package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kokkai-archive/kokkaid/models"
)

// Store wraps the Postgres database holding every ingested record and the
// link history.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// ---- sessions ----

// UpsertSession inserts a session or refreshes it. Closed sessions are never
// rewritten: the conflict update fires only while the stored end date is
// null or still in the future.
func (s *Store) UpsertSession(ctx context.Context, sess models.Session, now time.Time) error {
	var end sql.NullTime
	if !sess.EndDate.IsZero() {
		end = sql.NullTime{Time: sess.EndDate, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO sessions (number, session_type, chamber_scope, start_date, end_date, dissolved, total_days, initial_days, extension_days, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (number) DO UPDATE SET
  session_type = EXCLUDED.session_type,
  chamber_scope = EXCLUDED.chamber_scope,
  start_date = EXCLUDED.start_date,
  end_date = EXCLUDED.end_date,
  dissolved = EXCLUDED.dissolved,
  total_days = EXCLUDED.total_days,
  initial_days = EXCLUDED.initial_days,
  extension_days = EXCLUDED.extension_days,
  updated_at = NOW()
WHERE sessions.end_date IS NULL OR sessions.end_date >= $10
`, sess.Number, sess.Type, string(sess.Scope), sess.StartDate, end, sess.Dissolved,
		sess.TotalDays, sess.InitialDays, sess.ExtensionDays, now)
	return err
}

// ListSessions returns all sessions ordered by session number.
func (s *Store) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT number, session_type, chamber_scope, start_date, end_date, dissolved, total_days, initial_days, extension_days
FROM sessions
ORDER BY number
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var scope string
		var end sql.NullTime
		if err := rows.Scan(&sess.Number, &sess.Type, &scope, &sess.StartDate, &end,
			&sess.Dissolved, &sess.TotalDays, &sess.InitialDays, &sess.ExtensionDays); err != nil {
			return nil, err
		}
		sess.Scope = models.ChamberScope(scope)
		if end.Valid {
			sess.EndDate = end.Time
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ---- minutes ----

// UpsertMinutes stores normalized minutes records. A re-fetch may revise
// fields of an existing record; source_id is stable.
func (s *Store) UpsertMinutes(ctx context.Context, recs []models.MinutesRecord) error {
	for _, rec := range recs {
		_, err := s.DB.ExecContext(ctx, `
INSERT INTO minutes_records (source_id, session_id, chamber, committee_name, date, sequence_within_day, raw_title, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (source_id) DO UPDATE SET
  session_id = EXCLUDED.session_id,
  chamber = EXCLUDED.chamber,
  committee_name = EXCLUDED.committee_name,
  date = EXCLUDED.date,
  sequence_within_day = EXCLUDED.sequence_within_day,
  raw_title = EXCLUDED.raw_title,
  updated_at = NOW()
`, rec.SourceID, rec.SessionID, string(rec.Chamber), rec.Committee, rec.Date, rec.Sequence, rec.RawTitle)
		if err != nil {
			return fmt.Errorf("upsert minutes %s: %w", rec.SourceID, err)
		}
	}
	return nil
}

// MinutesBetween returns minutes records with dates in [from, until].
func (s *Store) MinutesBetween(ctx context.Context, from, until time.Time) ([]models.MinutesRecord, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT source_id, session_id, chamber, committee_name, date, sequence_within_day, raw_title
FROM minutes_records
WHERE date >= $1 AND date <= $2
ORDER BY date, chamber, committee_name, sequence_within_day, source_id
`, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MinutesRecord
	for rows.Next() {
		var rec models.MinutesRecord
		var chamber string
		if err := rows.Scan(&rec.SourceID, &rec.SessionID, &chamber, &rec.Committee, &rec.Date, &rec.Sequence, &rec.RawTitle); err != nil {
			return nil, err
		}
		rec.Chamber = models.Chamber(chamber)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ---- tv segments ----

// UpsertSegments stores broadcast segment metadata.
func (s *Store) UpsertSegments(ctx context.Context, segs []models.TvSegment) error {
	for _, seg := range segs {
		var start, end sql.NullTime
		if !seg.StartTime.IsZero() {
			start = sql.NullTime{Time: seg.StartTime, Valid: true}
		}
		if !seg.EndTime.IsZero() {
			end = sql.NullTime{Time: seg.EndTime, Valid: true}
		}
		_, err := s.DB.ExecContext(ctx, `
INSERT INTO tv_segments (segment_id, chamber, broadcast_date, committee_name, start_time, end_time, topics, speakers, url, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
ON CONFLICT (segment_id) DO UPDATE SET
  chamber = EXCLUDED.chamber,
  broadcast_date = EXCLUDED.broadcast_date,
  committee_name = EXCLUDED.committee_name,
  start_time = EXCLUDED.start_time,
  end_time = EXCLUDED.end_time,
  topics = EXCLUDED.topics,
  speakers = EXCLUDED.speakers,
  url = EXCLUDED.url
`, seg.SegmentID, string(seg.Chamber), seg.BroadcastDate, seg.Committee, start, end,
			pq.Array(seg.Topics), pq.Array(seg.Speakers), seg.URL)
		if err != nil {
			return fmt.Errorf("upsert segment %s: %w", seg.SegmentID, err)
		}
	}
	return nil
}

// SegmentsBetween returns tv segments broadcast in [from, until].
func (s *Store) SegmentsBetween(ctx context.Context, from, until time.Time) ([]models.TvSegment, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT segment_id, chamber, broadcast_date, committee_name, start_time, end_time, topics, speakers, url
FROM tv_segments
WHERE broadcast_date >= $1 AND broadcast_date <= $2
ORDER BY broadcast_date, chamber, start_time, segment_id
`, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.TvSegment
	for rows.Next() {
		var seg models.TvSegment
		var chamber string
		var start, end sql.NullTime
		if err := rows.Scan(&seg.SegmentID, &chamber, &seg.BroadcastDate, &seg.Committee,
			&start, &end, pq.Array(&seg.Topics), pq.Array(&seg.Speakers), &seg.URL); err != nil {
			return nil, err
		}
		seg.Chamber = models.Chamber(chamber)
		if start.Valid {
			seg.StartTime = start.Time
		}
		if end.Valid {
			seg.EndTime = end.Time
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

// ---- written questions ----

// UpsertWrittenQuestions stores question list entries for a chamber+session.
func (s *Store) UpsertWrittenQuestions(ctx context.Context, qs []models.WrittenQuestion) error {
	for _, q := range qs {
		_, err := s.DB.ExecContext(ctx, `
INSERT INTO written_questions (chamber, session_id, number, subject, submitter, status, question_url, answer_url, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (chamber, session_id, number) DO UPDATE SET
  subject = EXCLUDED.subject,
  submitter = EXCLUDED.submitter,
  status = EXCLUDED.status,
  question_url = EXCLUDED.question_url,
  answer_url = EXCLUDED.answer_url,
  updated_at = NOW()
`, string(q.Chamber), q.SessionID, q.Number, q.Subject, q.Submitter, q.Status, q.QuestionURL, q.AnswerURL)
		if err != nil {
			return fmt.Errorf("upsert written question %s/%d/%d: %w", q.Chamber, q.SessionID, q.Number, err)
		}
	}
	return nil
}

// ---- sync cursors ----

// GetCursor returns the last-synced watermark for a source.
func (s *Store) GetCursor(ctx context.Context, source string) (time.Time, bool, error) {
	var wm time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT watermark FROM sync_cursors WHERE source=$1`, source).Scan(&wm)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return wm, true, nil
}

// SetCursor records the watermark for a source after a successful sync.
func (s *Store) SetCursor(ctx context.Context, source string, watermark time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO sync_cursors (source, watermark, updated_at) VALUES ($1,$2,NOW())
ON CONFLICT (source) DO UPDATE SET watermark = EXCLUDED.watermark, updated_at = NOW()
`, source, watermark)
	return err
}
