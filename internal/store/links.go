package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kokkai-archive/kokkaid/models"
)

const linkColumns = `id, minutes_source_id, segment_id, confidence_tier, alias_version, created_at, superseded_at, superseded_by`

func scanLink(scanner interface{ Scan(...any) error }) (models.Link, error) {
	var l models.Link
	var tier string
	var supAt sql.NullTime
	var supBy sql.NullString
	if err := scanner.Scan(&l.ID, &l.MinutesSourceID, &l.SegmentID, &tier, &l.AliasVersion,
		&l.CreatedAt, &supAt, &supBy); err != nil {
		return models.Link{}, err
	}
	l.Tier = models.ConfidenceTier(tier)
	if supAt.Valid {
		t := supAt.Time
		l.SupersededAt = &t
	}
	if supBy.Valid {
		l.SupersededBy = supBy.String
	}
	return l, nil
}

// ActiveLinksByMinutes returns the non-superseded links for a minutes record.
func (s *Store) ActiveLinksByMinutes(ctx context.Context, minutesSourceID string) ([]models.Link, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT `+linkColumns+`
FROM links
WHERE minutes_source_id=$1 AND superseded_at IS NULL
ORDER BY created_at, id
`, minutesSourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLink inserts an active link. A unique-violation on the active pair or
// active segment index means a concurrent writer got there first and is
// surfaced as models.ErrStoreConflict.
func (s *Store) InsertLink(ctx context.Context, l models.Link) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO links (id, minutes_source_id, segment_id, confidence_tier, alias_version, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, l.ID, l.MinutesSourceID, l.SegmentID, string(l.Tier), l.AliasVersion, l.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrStoreConflict
	}
	return err
}

// SupersedeLink marks old as superseded by the replacement and inserts the
// replacement in one transaction. If the old link was already superseded or
// removed by a concurrent writer, models.ErrStoreConflict is returned and
// nothing is written.
func (s *Store) SupersedeLink(ctx context.Context, oldID string, replacement models.Link) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
UPDATE links SET superseded_at=NOW(), superseded_by=$1 WHERE id=$2 AND superseded_at IS NULL
`, replacement.ID, oldID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrStoreConflict
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO links (id, minutes_source_id, segment_id, confidence_tier, alias_version, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, replacement.ID, replacement.MinutesSourceID, replacement.SegmentID, string(replacement.Tier), replacement.AliasVersion, replacement.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrStoreConflict
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListLinks returns links created in the given window, oldest first. A zero
// from or until leaves that side of the window open.
func (s *Store) ListLinks(ctx context.Context, from, until time.Time, activeOnly bool) ([]models.Link, error) {
	var conds []string
	var args []any
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !until.IsZero() {
		args = append(args, until)
		conds = append(conds, fmt.Sprintf("created_at < $%d + INTERVAL '1 day'", len(args)))
	}
	if activeOnly {
		conds = append(conds, "superseded_at IS NULL")
	}
	q := `
SELECT ` + linkColumns + `
FROM links
`
	if len(conds) > 0 {
		q += "WHERE " + strings.Join(conds, " AND ") + "\n"
	}
	q += `ORDER BY created_at, id
`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SaveUnmatched writes the unmatched report entries for one linking run.
func (s *Store) SaveUnmatched(ctx context.Context, runID string, entries []models.Unmatched) error {
	for _, u := range entries {
		_, err := s.DB.ExecContext(ctx, `
INSERT INTO unmatched_reports (run_id, minutes_source_id, segment_id, chamber, date, reason, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
`, runID, u.MinutesSourceID, u.SegmentID, string(u.Chamber), u.Date, string(u.Reason))
		if err != nil {
			return fmt.Errorf("save unmatched entry: %w", err)
		}
	}
	return nil
}

// ListUnmatched returns the most recent unmatched entries for operator review.
func (s *Store) ListUnmatched(ctx context.Context, limit int) ([]models.Unmatched, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT minutes_source_id, segment_id, chamber, date, reason
FROM unmatched_reports
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Unmatched
	for rows.Next() {
		var u models.Unmatched
		var chamber, reason string
		if err := rows.Scan(&u.MinutesSourceID, &u.SegmentID, &chamber, &u.Date, &reason); err != nil {
			return nil, err
		}
		u.Chamber = models.Chamber(chamber)
		u.Reason = models.UnmatchedReason(reason)
		out = append(out, u)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
