package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"habbo-sync/internal/models"
)

// UserSyncer is what the scheduler and registrar need from the per-user
// orchestrator.
type UserSyncer interface {
	SyncOne(ctx context.Context, user models.TrackedUser) models.SyncResult
}

type SchedulerOptions struct {
	BatchSize       int
	InterBatchDelay time.Duration
}

// Scheduler runs one full pass over the active tracked set in
// fixed-size chunks with bounded concurrency and inter-chunk pacing.
type Scheduler struct {
	log       *slog.Logger
	store     Store
	syncer    UserSyncer
	batchSize int
	delay     time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewScheduler(log *slog.Logger, store Store, syncer UserSyncer, opts SchedulerOptions) *Scheduler {
	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 5
	}
	delay := opts.InterBatchDelay
	if delay < 0 {
		delay = 2 * time.Second
	}

	return &Scheduler{
		log:       log,
		store:     store,
		syncer:    syncer,
		batchSize: batchSize,
		delay:     delay,
		sleep:     sleepCtx,
	}
}

// Run loads the active tracked set fresh (the table is the single source
// of truth, no cached registry) and syncs it chunk by chunk. The
// inter-chunk delay is a hard pacing contract against the hotel APIs.
// Only a failed initial load is a top-level error; per-user failures are
// recorded and the pass continues.
func (s *Scheduler) Run(ctx context.Context) (models.BatchSyncReport, error) {
	report := models.BatchSyncReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	users, err := s.store.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("load tracked users: %w", err)
	}

	report.TotalUsers = len(users)
	report.PerUserResults = make([]models.SyncResult, len(users))

	s.log.Info("sync_cycle_started",
		"run_id", report.RunID,
		"total_users", len(users),
		"batch_size", s.batchSize,
	)

	cancelled := false
	for start := 0; start < len(users); start += s.batchSize {
		end := start + s.batchSize
		if end > len(users) {
			end = len(users)
		}
		chunk := users[start:end]

		if cancelled {
			// ainda devolvemos uma entrada por usuário, mesmo sem tentar
			for i, u := range chunk {
				report.PerUserResults[start+i] = models.SyncResult{
					HabboName: u.HabboName,
					Hotel:     u.Hotel,
					Error:     "run cancelled: " + ctx.Err().Error(),
				}
			}
			continue
		}

		var wg sync.WaitGroup
		for i, u := range chunk {
			wg.Add(1)
			go func(idx int, user models.TrackedUser) {
				defer wg.Done()
				report.PerUserResults[idx] = s.syncer.SyncOne(ctx, user)
			}(start+i, u)
		}
		wg.Wait()

		// pausa apenas ENTRE chunks; nunca depois do último
		if end < len(users) {
			if err := s.sleep(ctx, s.delay); err != nil {
				cancelled = true
			}
		}
	}

	for _, r := range report.PerUserResults {
		if r.Success {
			report.SuccessCount++
			report.TotalActivitiesCreated += r.ActivitiesCreated
		} else {
			report.ErrorCount++
		}
	}
	report.FinishedAt = time.Now().UTC()

	s.log.Info("sync_cycle_completed",
		"run_id", report.RunID,
		"total_users", report.TotalUsers,
		"success", report.SuccessCount,
		"errors", report.ErrorCount,
		"activities", report.TotalActivitiesCreated,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).String(),
	)

	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
