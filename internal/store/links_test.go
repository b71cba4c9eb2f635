package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/kokkai-archive/kokkaid/models"
)

func TestActiveLinksByMinutes(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "minutes_source_id", "segment_id", "confidence_tier", "alias_version", "created_at", "superseded_at", "superseded_by"}).
		AddRow("l1", "m1", "s1", "exact", "", created, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("superseded_at IS NULL")).
		WithArgs("m1").
		WillReturnRows(rows)

	out, err := st.ActiveLinksByMinutes(context.Background(), "m1")
	if err != nil {
		t.Fatalf("active links: %v", err)
	}
	if len(out) != 1 || out[0].Tier != models.TierExact || out[0].SupersededAt != nil {
		t.Fatalf("unexpected links: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertLinkStoresCreatedAt(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	l := models.Link{ID: "l1", MinutesSourceID: "m1", SegmentID: "s1", Tier: models.TierExact, CreatedAt: created}

	// the row must carry the timestamp the engine reported, not a fresh one
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO links")).
		WithArgs("l1", "m1", "s1", "exact", "", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.InsertLink(context.Background(), l); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestInsertLinkConflict(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	l := models.Link{ID: "l1", MinutesSourceID: "m1", SegmentID: "s1", Tier: models.TierExact, CreatedAt: created}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO links")).
		WithArgs("l1", "m1", "s1", "exact", "", created).
		WillReturnError(&pq.Error{Code: "23505"})

	err := st.InsertLink(context.Background(), l)
	if !errors.Is(err, models.ErrStoreConflict) {
		t.Fatalf("err = %v, want ErrStoreConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSupersedeLink(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)
	repl := models.Link{ID: "l2", MinutesSourceID: "m1", SegmentID: "s1", Tier: models.TierAlias, AliasVersion: "v1", CreatedAt: created}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE links SET superseded_at=NOW()")).
		WithArgs("l2", "l1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO links")).
		WithArgs("l2", "m1", "s1", "alias", "v1", created).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.SupersedeLink(context.Background(), "l1", repl); err != nil {
		t.Fatalf("supersede: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSupersedeLinkRaced(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	repl := models.Link{ID: "l2", MinutesSourceID: "m1", SegmentID: "s1", Tier: models.TierAlias}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE links SET superseded_at=NOW()")).
		WithArgs("l2", "l1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.SupersedeLink(context.Background(), "l1", repl)
	if !errors.Is(err, models.ErrStoreConflict) {
		t.Fatalf("err = %v, want ErrStoreConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListLinksActiveOnly(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "minutes_source_id", "segment_id", "confidence_tier", "alias_version", "created_at", "superseded_at", "superseded_by"}).
		AddRow("l1", "m1", "s1", "fuzzy", "v1", created, nil, nil)

	mock.ExpectQuery(regexp.QuoteMeta("AND superseded_at IS NULL")).
		WithArgs(from, until).
		WillReturnRows(rows)

	out, err := st.ListLinks(context.Background(), from, until, true)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(out) != 1 || out[0].Tier != models.TierFuzzy || out[0].AliasVersion != "v1" {
		t.Fatalf("unexpected links: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListLinksNoFilters(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	created := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "minutes_source_id", "segment_id", "confidence_tier", "alias_version", "created_at", "superseded_at", "superseded_by"}).
		AddRow("l1", "m1", "s1", "exact", "", created, nil, nil)

	// zero bounds leave the window open: no created_at clause at all
	mock.ExpectQuery(`FROM links\s+WHERE superseded_at IS NULL`).
		WillReturnRows(rows)

	out, err := st.ListLinks(context.Background(), time.Time{}, time.Time{}, true)
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("unbounded listing dropped rows: %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestListLinksFromOnly(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("created_at >= $1")).
		WithArgs(from).
		WillReturnRows(sqlmock.NewRows([]string{"id", "minutes_source_id", "segment_id", "confidence_tier", "alias_version", "created_at", "superseded_at", "superseded_by"}))

	if _, err := st.ListLinks(context.Background(), from, time.Time{}, false); err != nil {
		t.Fatalf("list links: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveUnmatched(t *testing.T) {
	st, mock, done := newMockStore(t)
	defer done()

	d := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	entries := []models.Unmatched{
		{MinutesSourceID: "m1", Chamber: models.ChamberShugiin, Date: d, Reason: models.ReasonNoSegmentSameDay},
		{SegmentID: "s9", Chamber: models.ChamberShugiin, Date: d, Reason: models.ReasonNoMatchFound},
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO unmatched_reports")).
		WithArgs("run-1", "m1", "", "衆議院", d, "no_segment_same_day").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO unmatched_reports")).
		WithArgs("run-1", "", "s9", "衆議院", d, "no_match_found").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.SaveUnmatched(context.Background(), "run-1", entries); err != nil {
		t.Fatalf("save unmatched: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
