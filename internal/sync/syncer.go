package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"habbo-sync/internal/habbo"
	"habbo-sync/internal/models"
)

// Store is the narrow persistence contract the sync engine consumes.
// The schema behind it is externally owned; this engine only needs
// upsert-by-unique-key and append semantics.
type Store interface {
	ListActive(ctx context.Context) ([]models.TrackedUser, error)
	FindTracked(ctx context.Context, habboID, hotel string) (*models.TrackedUser, error)
	InsertTracked(ctx context.Context, u models.TrackedUser) error
	ReactivateTracked(ctx context.Context, habboID, hotel, habboName string) error

	// LoadSnapshot returns (nil, nil) when the user has never synced.
	LoadSnapshot(ctx context.Context, habboID, hotel string) (*models.ProfileSnapshot, error)

	// ApplySync commits the activity events and the replacement snapshot
	// atomically: the new snapshot must never become visible without its
	// events, or the log stops being a faithful history of transitions.
	ApplySync(ctx context.Context, habboID, hotel string, snap models.ProfileSnapshot, events []models.ActivityEvent) error
}

type ProfileFetcher interface {
	FetchProfile(ctx context.Context, habboName, hotel string) (*models.Profile, error)
}

// Syncer runs the fetch → diff → persist pipeline for one tracked user.
type Syncer struct {
	log     *slog.Logger
	store   Store
	fetcher ProfileFetcher
	locks   *userLocks
}

func NewSyncer(log *slog.Logger, store Store, fetcher ProfileFetcher) *Syncer {
	return &Syncer{
		log:     log,
		store:   store,
		fetcher: fetcher,
		locks:   newUserLocks(),
	}
}

// SyncOne performs a single sync attempt for one user. Every failure is
// converted into a failed SyncResult here; nothing propagates to the
// batch scheduler. No retries — the next scheduled run retries naturally.
func (s *Syncer) SyncOne(ctx context.Context, user models.TrackedUser) models.SyncResult {
	result := models.SyncResult{
		HabboName: user.HabboName,
		Hotel:     user.Hotel,
	}

	unlock := s.locks.acquire(user.HabboID + "|" + user.Hotel)
	defer unlock()

	prev, err := s.store.LoadSnapshot(ctx, user.HabboID, user.Hotel)
	if err != nil {
		s.log.Warn("snapshot_load_failed", "habbo_id", user.HabboID, "hotel", user.Hotel, "error", err)
		result.Error = "snapshot load failed: " + err.Error()
		return result
	}

	profile, err := s.fetcher.FetchProfile(ctx, user.HabboName, user.Hotel)
	if err != nil {
		// NotFound não é retryable neste ciclo mas também não desativa o
		// tracking: perfil pode estar temporariamente privado
		if errors.Is(err, habbo.ErrProfileNotFound) {
			s.log.Info("profile_not_found", "habbo_name", user.HabboName, "hotel", user.Hotel)
		} else {
			s.log.Warn("profile_fetch_failed", "habbo_name", user.HabboName, "hotel", user.Hotel, "error", err)
		}
		result.Error = err.Error()
		return result
	}

	events, next := Diff(user, prev, *profile, time.Now().UTC())

	if err := s.store.ApplySync(ctx, user.HabboID, user.Hotel, next, events); err != nil {
		// fetch+diff ok mas persistência falhou: ainda é falha, nunca
		// reportar sucesso falso
		s.log.Error("sync_persist_failed", "habbo_id", user.HabboID, "hotel", user.Hotel, "error", err)
		result.Error = "persist failed: " + err.Error()
		return result
	}

	result.Success = true
	result.ActivitiesCreated = len(events)

	if len(events) > 0 {
		s.log.Info("activities_recorded",
			"habbo_id", user.HabboID,
			"hotel", user.Hotel,
			"count", len(events),
		)
	}

	return result
}
