package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kokkai-archive/kokkaid/config"
	"github.com/kokkai-archive/kokkaid/internal/ingest"
	"github.com/kokkai-archive/kokkaid/internal/linker"
	"github.com/kokkai-archive/kokkaid/internal/sessionindex"
	"github.com/kokkai-archive/kokkaid/internal/sources"
	"github.com/kokkai-archive/kokkaid/internal/sources/minutes"
	"github.com/kokkai-archive/kokkaid/internal/sources/qa"
	"github.com/kokkai-archive/kokkaid/internal/sources/sessionlist"
	"github.com/kokkai-archive/kokkaid/internal/sources/shugiintv"
	"github.com/kokkai-archive/kokkaid/internal/store"
	"github.com/kokkai-archive/kokkaid/models"
)

// defaultBackfill bounds the first sync of a source that has no watermark yet.
const defaultBackfill = 30 * 24 * time.Hour

// Service wires the store, the source fetchers, the session index and the
// linking engine behind the CLI commands, the HTTP API and the scheduler.
type Service struct {
	Cfg    *config.Config
	Store  *store.Store
	Logger *log.Logger
}

func NewService(cfg *config.Config, st *store.Store) *Service {
	return &Service{
		Cfg:    cfg,
		Store:  st,
		Logger: log.New(log.Writer(), "[SYNC] ", log.LstdFlags),
	}
}

func (s *Service) client(interval time.Duration, maxRetries int) *sources.Client {
	return sources.NewClient(s.Cfg.Sources.UserAgent, interval, maxRetries, s.Logger)
}

// SessionIndex loads stored sessions into an index, surfacing overlapping
// ranges as a fatal data-integrity error.
func (s *Service) SessionIndex(ctx context.Context) (*sessionindex.Index, error) {
	stored, err := s.Store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	return sessionindex.New(stored, time.Now().UTC())
}

// SyncSessions refreshes the session calendar. New sessions are appended and
// open sessions revised; closed sessions are left untouched by the store.
func (s *Service) SyncSessions(ctx context.Context) error {
	cfg := s.Cfg.Sources.SessionList
	fetcher := &sessionlist.Fetcher{URL: cfg.URL, Client: s.client(0, cfg.MaxRetries)}
	fetched, err := fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	stored, err := s.Store.ListSessions(ctx)
	if err != nil {
		return err
	}
	merged := sessionindex.Merge(stored, fetched, now)
	if _, err := sessionindex.New(merged, now); err != nil {
		return fmt.Errorf("session calendar integrity: %w", err)
	}
	for _, sess := range merged {
		if err := s.Store.UpsertSession(ctx, sess, now); err != nil {
			return err
		}
	}
	syncedRecords.WithLabelValues(ingest.SourceSessionList).Add(float64(len(fetched)))
	s.Logger.Printf("sessions: %d fetched, %d total", len(fetched), len(merged))
	return s.Store.SetCursor(ctx, ingest.SourceSessionList, now)
}

// SyncMinutes ingests minutes metadata for the window derived from the
// explicit range or the stored watermark. Records the API returns without a
// session number are resolved through the session index.
func (s *Service) SyncMinutes(ctx context.Context, explicitFrom, explicitUntil time.Time) (int, error) {
	cfg := s.Cfg.Sources.Minutes
	from, until, err := s.window(ctx, ingest.SourceMinutes, explicitFrom, explicitUntil)
	if err != nil {
		return 0, err
	}
	fetcher := &minutes.Fetcher{
		BaseURL:  cfg.BaseURL,
		PageSize: cfg.PageSize,
		Client:   s.client(cfg.RequestInterval, cfg.MaxRetries),
	}
	fetched, err := fetcher.Fetch(ctx, from, until)
	if err != nil {
		return 0, err
	}
	fetched = ingest.Merge(nil, fetched, func(m models.MinutesRecord) string { return m.SourceID })

	idx, err := s.SessionIndex(ctx)
	if err != nil {
		return 0, err
	}
	for i, rec := range fetched {
		if rec.SessionID != 0 {
			continue
		}
		id, err := idx.Resolve(rec.Chamber, rec.Date)
		if errors.Is(err, models.ErrSessionNotFound) {
			s.Logger.Printf("warning: no session covers %s %s", rec.Chamber, rec.Date.Format("2006-01-02"))
			continue
		}
		if err != nil {
			return 0, err
		}
		fetched[i].SessionID = id
	}

	if err := s.Store.UpsertMinutes(ctx, fetched); err != nil {
		return 0, err
	}
	syncedRecords.WithLabelValues(ingest.SourceMinutes).Add(float64(len(fetched)))
	s.Logger.Printf("minutes: %d records for %s..%s", len(fetched), from.Format("2006-01-02"), until.Format("2006-01-02"))
	return len(fetched), s.Store.SetCursor(ctx, ingest.SourceMinutes, until)
}

// SyncTV ingests ShugiinTV broadcast metadata for the window.
func (s *Service) SyncTV(ctx context.Context, explicitFrom, explicitUntil time.Time) (int, error) {
	cfg := s.Cfg.Sources.ShugiinTV
	from, until, err := s.window(ctx, ingest.SourceShugiinTV, explicitFrom, explicitUntil)
	if err != nil {
		return 0, err
	}
	fetcher := &shugiintv.Fetcher{
		BaseURL:        cfg.BaseURL,
		EmptyHTMLBytes: cfg.EmptyHTMLBytes,
		Client:         s.client(cfg.ListInterval, cfg.MaxRetries),
		DetailClient:   s.client(cfg.DetailInterval, cfg.MaxRetries),
	}
	fetched, err := fetcher.Fetch(ctx, from, until)
	if err != nil {
		return 0, err
	}
	fetched = ingest.Merge(nil, fetched, func(t models.TvSegment) string { return t.SegmentID })
	if err := s.Store.UpsertSegments(ctx, fetched); err != nil {
		return 0, err
	}
	syncedRecords.WithLabelValues(ingest.SourceShugiinTV).Add(float64(len(fetched)))
	s.Logger.Printf("shugiintv: %d segments for %s..%s", len(fetched), from.Format("2006-01-02"), until.Format("2006-01-02"))
	return len(fetched), s.Store.SetCursor(ctx, ingest.SourceShugiinTV, until)
}

// SyncQuestions ingests the written-question lists of both chambers for the
// latest session. The latest list is always re-fetched since it grows while
// the session is open.
func (s *Service) SyncQuestions(ctx context.Context) (int, error) {
	idx, err := s.SessionIndex(ctx)
	if err != nil {
		return 0, err
	}
	latest := idx.Latest()
	if latest == 0 {
		return 0, fmt.Errorf("no sessions stored; run session sync first")
	}

	total := 0
	shuCfg := s.Cfg.Sources.QAShu
	shu := &qa.ShuFetcher{BaseURL: shuCfg.BaseURL, Client: s.client(shuCfg.RequestInterval, shuCfg.MaxRetries)}
	shuQs, err := shu.Fetch(ctx, latest)
	if err != nil {
		return 0, err
	}
	if err := s.Store.UpsertWrittenQuestions(ctx, shuQs); err != nil {
		return 0, err
	}
	syncedRecords.WithLabelValues(ingest.SourceQAShu).Add(float64(len(shuQs)))
	total += len(shuQs)

	sanCfg := s.Cfg.Sources.QASan
	san := &qa.SanFetcher{BaseURL: sanCfg.BaseURL, Client: s.client(sanCfg.RequestInterval, sanCfg.MaxRetries)}
	sanQs, err := san.Fetch(ctx, latest)
	if err != nil {
		return 0, err
	}
	if err := s.Store.UpsertWrittenQuestions(ctx, sanQs); err != nil {
		return 0, err
	}
	syncedRecords.WithLabelValues(ingest.SourceQASan).Add(float64(len(sanQs)))
	total += len(sanQs)

	s.Logger.Printf("written questions: %d entries for session %d", total, latest)
	return total, nil
}

// SyncAll runs every source in dependency order: the session calendar first,
// since the other adapters resolve against it.
func (s *Service) SyncAll(ctx context.Context, explicitFrom, explicitUntil time.Time) error {
	if err := s.SyncSessions(ctx); err != nil {
		return fmt.Errorf("sync sessions: %w", err)
	}
	if _, err := s.SyncMinutes(ctx, explicitFrom, explicitUntil); err != nil {
		return fmt.Errorf("sync minutes: %w", err)
	}
	if _, err := s.SyncTV(ctx, explicitFrom, explicitUntil); err != nil {
		return fmt.Errorf("sync shugiintv: %w", err)
	}
	if _, err := s.SyncQuestions(ctx); err != nil {
		return fmt.Errorf("sync written questions: %w", err)
	}
	return nil
}

// LinkRun executes the linking engine over the window, persists the
// unmatched report under a fresh run id and advances the linking watermark.
func (s *Service) LinkRun(ctx context.Context, explicitFrom, explicitUntil time.Time) (*linker.Report, error) {
	from, until, err := s.window(ctx, ingest.SourceLinking, explicitFrom, explicitUntil)
	if err != nil {
		return nil, err
	}
	mins, err := s.Store.MinutesBetween(ctx, from, until)
	if err != nil {
		return nil, err
	}
	segs, err := s.Store.SegmentsBetween(ctx, from, until)
	if err != nil {
		return nil, err
	}

	lcfg := s.Cfg.Linking
	engine := linker.New(s.Store, linker.Config{
		Aliases:        linker.NewAliasTable(lcfg.AliasVersion, lcfg.Aliases, lcfg.StripSuffixes),
		FuzzyThreshold: lcfg.FuzzyThreshold,
	}, log.New(log.Writer(), "[LINKER] ", log.LstdFlags))

	report, err := engine.Run(ctx, mins, segs)
	if err != nil {
		return report, err
	}

	runID := uuid.NewString()
	if len(report.Unmatched) > 0 {
		if err := s.Store.SaveUnmatched(ctx, runID, report.Unmatched); err != nil {
			return report, err
		}
	}
	for _, l := range report.Linked {
		linksCreated.WithLabelValues(string(l.Tier)).Inc()
	}
	linksSuperseded.Add(float64(len(report.Superseded)))
	for _, u := range report.Unmatched {
		unmatchedReported.WithLabelValues(string(u.Reason)).Inc()
	}
	linkConflicts.Add(float64(report.Conflicts))

	// Unmatched entries are a reported outcome, not a failure; only store or
	// adapter I/O errors make a run fail.
	return report, s.Store.SetCursor(ctx, ingest.SourceLinking, until)
}

func (s *Service) window(ctx context.Context, source string, explicitFrom, explicitUntil time.Time) (time.Time, time.Time, error) {
	wm, _, err := s.Store.GetCursor(ctx, source)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	cursor := ingest.Cursor{Source: source, Watermark: wm}
	from, until := ingest.Window(cursor, explicitFrom, explicitUntil, time.Now().UTC(), defaultBackfill)
	return from, until, nil
}
