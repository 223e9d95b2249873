package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"habbo-sync/internal/habbo"
	"habbo-sync/internal/models"
	"habbo-sync/internal/redis"
	"habbo-sync/internal/security"
)

// ErrInvalidInput marks caller-supplied fields that are missing or
// malformed. Never retried; HTTP layer maps it to 400.
var ErrInvalidInput = errors.New("sync: invalid input")

type Action string

const (
	ActionAdded          Action = "added"
	ActionReactivated    Action = "reactivated"
	ActionAlreadyTracked Action = "already_tracked"
)

// Registrar implements the idempotent "ensure tracked" operation:
// insert or reactivate the tracking row, then fire one immediate sync.
type Registrar struct {
	log    *slog.Logger
	store  Store
	syncer UserSyncer
	redis  *redis.Client // optional; dedups immediate triggers

	syncTimeout time.Duration
}

func NewRegistrar(log *slog.Logger, store Store, syncer UserSyncer, redisClient *redis.Client) *Registrar {
	return &Registrar{
		log:         log,
		store:       store,
		syncer:      syncer,
		redis:       redisClient,
		syncTimeout: 30 * time.Second,
	}
}

// EnsureTracked registers (habboName, habboID, hotel) for tracking.
// Lookup is by (habboID, hotel) — never by name, names change. Safe to
// call repeatedly: the second identical call is a no-op returning
// already_tracked.
func (r *Registrar) EnsureTracked(ctx context.Context, habboName, habboID, hotel string) (Action, error) {
	habboName = strings.TrimSpace(habboName)
	habboID = strings.ToLower(strings.TrimSpace(habboID))

	if habboName == "" || habboID == "" || strings.TrimSpace(hotel) == "" {
		return "", fmt.Errorf("%w: habbo_name, habbo_id and hotel are required", ErrInvalidInput)
	}
	if err := security.ValidateHabboID(habboID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	domain, err := habbo.NormalizeHotel(hotel)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	existing, err := r.store.FindTracked(ctx, habboID, domain)
	if err != nil {
		return "", fmt.Errorf("lookup tracked user: %w", err)
	}

	var action Action
	switch {
	case existing == nil:
		now := time.Now().UTC()
		user := models.TrackedUser{
			HabboName: habboName,
			HabboID:   habboID,
			Hotel:     domain,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.store.InsertTracked(ctx, user); err != nil {
			return "", fmt.Errorf("insert tracked user: %w", err)
		}
		action = ActionAdded

	case !existing.IsActive:
		// reativar em vez de duplicar; nome pode ter mudado desde então
		if err := r.store.ReactivateTracked(ctx, habboID, domain, habboName); err != nil {
			return "", fmt.Errorf("reactivate tracked user: %w", err)
		}
		action = ActionReactivated

	default:
		return ActionAlreadyTracked, nil
	}

	r.log.Info("user_tracked",
		"habbo_name", habboName,
		"habbo_id", habboID,
		"hotel", domain,
		"action", string(action),
	)

	r.triggerSync(ctx, models.TrackedUser{
		HabboName: habboName,
		HabboID:   habboID,
		Hotel:     domain,
		IsActive:  true,
	})

	return action, nil
}

// triggerSync fires one background sync for the user just registered.
// Fire-and-forget with respect to the registrar's response, but with its
// own bounded timeout, and failures are logged — never silently dropped.
func (r *Registrar) triggerSync(ctx context.Context, user models.TrackedUser) {
	if r.redis != nil {
		key := fmt.Sprintf("sync:trigger:%s:%s", user.Hotel, user.HabboID)
		ok, err := r.redis.SetNX(ctx, key, "1", 30*time.Second)
		if err == nil && !ok {
			r.log.Debug("sync_trigger_deduped", "habbo_id", user.HabboID, "hotel", user.Hotel)
			return
		}
	}

	go func() {
		syncCtx, cancel := context.WithTimeout(context.Background(), r.syncTimeout)
		defer cancel()

		res := r.syncer.SyncOne(syncCtx, user)
		if !res.Success {
			r.log.Warn("registration_sync_failed",
				"habbo_name", user.HabboName,
				"hotel", user.Hotel,
				"error", res.Error,
			)
		} else {
			r.log.Info("registration_sync_completed",
				"habbo_name", user.HabboName,
				"hotel", user.Hotel,
				"activities", res.ActivitiesCreated,
			)
		}
	}()
}
