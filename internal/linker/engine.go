package linker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kokkai-archive/kokkaid/models"
)

// LinkStore is the persistence surface the engine mutates. Implementations
// must enforce active-link uniqueness per (minutes_source_id, segment_id)
// pair and per segment, and report racing writers as models.ErrStoreConflict.
type LinkStore interface {
	ActiveLinksByMinutes(ctx context.Context, minutesSourceID string) ([]models.Link, error)
	InsertLink(ctx context.Context, l models.Link) error
	SupersedeLink(ctx context.Context, oldID string, replacement models.Link) error
}

// Config tunes the engine. Aliases and FuzzyThreshold come from
// configuration; see config.LinkingConfig.
type Config struct {
	Aliases        AliasTable
	FuzzyThreshold int
}

// Report summarizes one linking run for the operator.
type Report struct {
	Linked     []models.Link      `json:"linked"`
	Superseded []models.Link      `json:"superseded"`
	Unmatched  []models.Unmatched `json:"unmatched"`
	Kept       int                `json:"kept"`
	Conflicts  int                `json:"conflicts"`
}

// Engine links minutes records to the tv segments that broadcast the same
// committee sitting. It is re-entrant: running it twice over unchanged
// inputs yields an identical link set.
type Engine struct {
	store   LinkStore
	matcher Matcher
	logger  *log.Logger
}

func New(store LinkStore, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[LINKER] ", log.LstdFlags)
	}
	return &Engine{
		store:   store,
		matcher: Matcher{Aliases: cfg.Aliases, FuzzyThreshold: cfg.FuzzyThreshold},
		logger:  logger,
	}
}

type bucketKey struct {
	chamber models.Chamber
	date    string
}

type pair struct {
	minutes models.MinutesRecord
	segment models.TvSegment
	tier    models.ConfidenceTier
}

// Run matches the given records and persists the resulting links. Records
// are only ever compared within their (chamber, date) bucket. Store I/O
// errors abort the run; matching shortfalls never do, they land in the
// report instead.
func (e *Engine) Run(ctx context.Context, minutes []models.MinutesRecord, segments []models.TvSegment) (*Report, error) {
	buckets := make(map[bucketKey]*bucket)
	for _, m := range minutes {
		k := bucketKey{m.Chamber, m.Date.Format("2006-01-02")}
		b := buckets[k]
		if b == nil {
			b = &bucket{}
			buckets[k] = b
		}
		b.minutes = append(b.minutes, m)
	}
	for _, s := range segments {
		k := bucketKey{s.Chamber, s.BroadcastDate.Format("2006-01-02")}
		b := buckets[k]
		if b == nil {
			b = &bucket{}
			buckets[k] = b
		}
		b.segments = append(b.segments, s)
	}

	keys := make([]bucketKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].chamber < keys[j].chamber
	})

	report := &Report{}
	for _, k := range keys {
		b := buckets[k]
		pairs, unmatched := e.matchBucket(b)
		report.Unmatched = append(report.Unmatched, unmatched...)
		if err := e.persistBucket(ctx, pairs, report); err != nil {
			return report, fmt.Errorf("bucket %s/%s: %w", k.chamber, k.date, err)
		}
	}
	e.logger.Printf("run complete: %d linked, %d superseded, %d kept, %d unmatched, %d conflicts",
		len(report.Linked), len(report.Superseded), report.Kept, len(report.Unmatched), report.Conflicts)
	return report, nil
}

type bucket struct {
	minutes  []models.MinutesRecord
	segments []models.TvSegment
}

// matchBucket assigns segments to minutes records within one (chamber, date)
// bucket. Minutes are walked in (committee, sequence) order and segments in
// broadcast start order, so multiple sittings of one committee pair up with
// broadcast blocks in proceeding order. That ordering is a heuristic, not a
// guarantee; the confidence tier still comes from the name match alone.
func (e *Engine) matchBucket(b *bucket) ([]pair, []models.Unmatched) {
	mins := append([]models.MinutesRecord(nil), b.minutes...)
	sort.SliceStable(mins, func(i, j int) bool {
		ci, cj := NormalizeCommitteeName(mins[i].Committee), NormalizeCommitteeName(mins[j].Committee)
		if ci != cj {
			return ci < cj
		}
		if mins[i].Sequence != mins[j].Sequence {
			return mins[i].Sequence < mins[j].Sequence
		}
		return mins[i].SourceID < mins[j].SourceID
	})

	segs := append([]models.TvSegment(nil), b.segments...)
	sort.SliceStable(segs, func(i, j int) bool {
		si, sj := segs[i].StartTime, segs[j].StartTime
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return false // ties keep stable input order
	})

	consumed := make([]bool, len(segs))
	minutesBySeg := make([]int, len(segs)) // how many minutes records score with each segment
	scored := make([]bool, len(mins))
	for mi, m := range mins {
		for si, s := range segs {
			if _, ok := e.matcher.Score(m.Committee, s.Committee); ok {
				scored[mi] = true
				minutesBySeg[si]++
			}
		}
	}

	// Assignment runs one pass per tier, best first, so a fuzzy candidate can
	// never consume a segment that another record in the bucket matches
	// exactly. Within a pass the walk order keeps sittings paired with
	// broadcast blocks in proceeding order.
	chosen := make([]int, len(mins))
	for i := range chosen {
		chosen[i] = -1
	}
	var pairs []pair
	for _, want := range []models.ConfidenceTier{models.TierExact, models.TierAlias, models.TierFuzzy} {
		for mi, m := range mins {
			if chosen[mi] >= 0 {
				continue
			}
			for si, s := range segs {
				if consumed[si] {
					continue
				}
				tier, ok := e.matcher.Score(m.Committee, s.Committee)
				if !ok || tier != want {
					continue
				}
				chosen[mi] = si
				consumed[si] = true
				pairs = append(pairs, pair{minutes: m, segment: s, tier: want})
				break
			}
		}
	}

	var unmatched []models.Unmatched
	for mi, m := range mins {
		if chosen[mi] >= 0 {
			continue
		}
		reason := models.ReasonNoMatchFound
		if len(segs) == 0 {
			reason = models.ReasonNoSegmentSameDay
		} else if scored[mi] {
			reason = models.ReasonInsufficientSegments
		}
		unmatched = append(unmatched, models.Unmatched{
			MinutesSourceID: m.SourceID,
			Chamber:         m.Chamber,
			Date:            m.Date,
			Reason:          reason,
		})
	}

	// A sitting may span several broadcast blocks. Leftover segments attach
	// to a minutes record only when exactly one record in the bucket scores
	// with them; ambiguous leftovers are reported, not guessed.
	for i, s := range segs {
		if consumed[i] {
			continue
		}
		if minutesBySeg[i] == 1 {
			for _, m := range mins {
				if tier, ok := e.matcher.Score(m.Committee, s.Committee); ok {
					consumed[i] = true
					pairs = append(pairs, pair{minutes: m, segment: s, tier: tier})
					break
				}
			}
			continue
		}
		unmatched = append(unmatched, models.Unmatched{
			SegmentID: s.SegmentID,
			Chamber:   s.Chamber,
			Date:      s.BroadcastDate,
			Reason:    models.ReasonNoMatchFound,
		})
	}
	return pairs, unmatched
}

// persistBucket applies the idempotence and supersession policy for every
// computed pair. Store conflicts are retried once with a fresh read, then
// logged and counted.
func (e *Engine) persistBucket(ctx context.Context, pairs []pair, report *Report) error {
	computed := make(map[string]map[string]bool) // minutes source id -> segment ids assigned this run
	for _, p := range pairs {
		if computed[p.minutes.SourceID] == nil {
			computed[p.minutes.SourceID] = make(map[string]bool)
		}
		computed[p.minutes.SourceID][p.segment.SegmentID] = true
	}
	for _, p := range pairs {
		err := e.reconcile(ctx, p, computed[p.minutes.SourceID], report)
		if errors.Is(err, models.ErrStoreConflict) {
			// concurrent writer; one retry against fresh state
			err = e.reconcile(ctx, p, computed[p.minutes.SourceID], report)
			if errors.Is(err, models.ErrStoreConflict) {
				e.logger.Printf("warning: persistent conflict linking %s -> %s", p.minutes.SourceID, p.segment.SegmentID)
				report.Conflicts++
				continue
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) reconcile(ctx context.Context, p pair, computedSegs map[string]bool, report *Report) error {
	existing, err := e.store.ActiveLinksByMinutes(ctx, p.minutes.SourceID)
	if err != nil {
		return err
	}

	newLink := models.Link{
		ID:              uuid.NewString(),
		MinutesSourceID: p.minutes.SourceID,
		SegmentID:       p.segment.SegmentID,
		Tier:            p.tier,
		CreatedAt:       time.Now().UTC(),
	}
	if p.tier != models.TierExact {
		newLink.AliasVersion = e.matcher.Aliases.Version
	}

	for _, l := range existing {
		if l.SegmentID != p.segment.SegmentID {
			continue
		}
		if p.tier.Rank() > l.Tier.Rank() {
			// corrected data raised the confidence for the same pair
			if err := e.store.SupersedeLink(ctx, l.ID, newLink); err != nil {
				return err
			}
			report.Superseded = append(report.Superseded, l)
			report.Linked = append(report.Linked, newLink)
			return nil
		}
		report.Kept++
		return nil
	}

	// An active link to a segment this run no longer assigns: replace it only
	// when the new candidate is strictly more confident.
	for _, l := range existing {
		if computedSegs[l.SegmentID] {
			continue
		}
		if p.tier.Rank() > l.Tier.Rank() {
			if err := e.store.SupersedeLink(ctx, l.ID, newLink); err != nil {
				return err
			}
			report.Superseded = append(report.Superseded, l)
			report.Linked = append(report.Linked, newLink)
		} else {
			report.Kept++
		}
		return nil
	}

	if err := e.store.InsertLink(ctx, newLink); err != nil {
		return err
	}
	report.Linked = append(report.Linked, newLink)
	return nil
}
