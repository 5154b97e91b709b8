package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"

	"github.com/mavik-ai/prescreen/internal/store"
)

// Cleaner prunes old run-audit rows on a cron cadence.
type Cleaner struct {
	Store  *store.Store
	Cron   string
	MaxAge time.Duration
	Stop   chan struct{}
	Logger *log.Logger

	lastRun *time.Time
}

func (cl *Cleaner) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-cl.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				cl.tick()
			}
		}
	}()
}

func (cl *Cleaner) tick() {
	if !isDue(cl.Cron, cl.lastRun) {
		return
	}
	now := time.Now()
	cl.lastRun = &now

	maxAge := cl.MaxAge
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	deleted, err := cl.Store.PruneRunsBefore(ctx, now.Add(-maxAge))
	if err != nil {
		cl.Logger.Printf("prune failed: %v", err)
		return
	}
	if deleted > 0 {
		cl.Logger.Printf("pruned %d runs older than %s", deleted, maxAge)
	}
}

// isDue determines whether the cron spec is due given the last run time.
// Supports "@daily", "@hourly", and standard 5-field cron expressions.
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
			// Fallback: treat as @daily if invalid
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
