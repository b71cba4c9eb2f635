package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"
)

// Scheduler drives the periodic sync and link jobs. Redis SetNX locks keep
// multiple replicas from running the same job concurrently.
type Scheduler struct {
	Svc  *Service
	Rdb  *redis.Client
	Stop chan struct{}

	lastSync *time.Time
	lastLink *time.Time
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	logger := log.New(log.Writer(), "[SCHED] ", log.LstdFlags)

	if isDue(s.Svc.Cfg.Schedule.SyncCron, s.lastSync) {
		if s.acquire(ctx, "sched:lock:sync") {
			now := time.Now()
			s.lastSync = &now
			go func() {
				defer s.release(ctx, "sched:lock:sync")
				// jitter to avoid stampedes
				time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)
				if err := s.Svc.SyncAll(ctx, time.Time{}, time.Time{}); err != nil {
					logger.Printf("sync failed: %v", err)
				}
			}()
		}
	}

	if isDue(s.Svc.Cfg.Schedule.LinkCron, s.lastLink) {
		if s.acquire(ctx, "sched:lock:link") {
			now := time.Now()
			s.lastLink = &now
			go func() {
				defer s.release(ctx, "sched:lock:link")
				if _, err := s.Svc.LinkRun(ctx, time.Time{}, time.Time{}); err != nil {
					logger.Printf("link run failed: %v", err)
				}
			}()
		}
	}
}

func (s *Scheduler) acquire(ctx context.Context, key string) bool {
	if s.Rdb == nil {
		return true
	}
	ok, _ := s.Rdb.SetNX(ctx, key, "1", 30*time.Minute).Result()
	return ok
}

func (s *Scheduler) release(ctx context.Context, key string) {
	if s.Rdb != nil {
		s.Rdb.Del(ctx, key)
	}
}

// isDue determines if a job with cronSpec should run now based on its last
// run time. Supports "@daily", "@hourly", and 5-field cron expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
