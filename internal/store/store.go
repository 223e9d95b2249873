package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"habbo-sync/internal/db"
	"habbo-sync/internal/models"
)

// Postgres implements the sync engine's store contract on top of the
// externally-owned schema: tracked_users keyed by (habbo_id, hotel),
// profile_snapshots fully replaced per sync, append-only activity_events
// and the figure_archive queue for the avatar archiver.
type Postgres struct {
	db  *db.DB
	log *slog.Logger
}

func NewPostgres(dbConn *db.DB, log *slog.Logger) *Postgres {
	return &Postgres{db: dbConn, log: log}
}

func (p *Postgres) ListActive(ctx context.Context) ([]models.TrackedUser, error) {
	rows, err := p.db.Pool.Query(ctx,
		`SELECT habbo_name, habbo_id, hotel, is_active, created_at, updated_at
		 FROM tracked_users
		 WHERE is_active = TRUE
		 ORDER BY hotel, habbo_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active tracked users: %w", err)
	}
	defer rows.Close()

	var users []models.TrackedUser
	for rows.Next() {
		var u models.TrackedUser
		if err := rows.Scan(&u.HabboName, &u.HabboID, &u.Hotel, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan tracked user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (p *Postgres) FindTracked(ctx context.Context, habboID, hotel string) (*models.TrackedUser, error) {
	var u models.TrackedUser
	err := p.db.Pool.QueryRow(ctx,
		`SELECT habbo_name, habbo_id, hotel, is_active, created_at, updated_at
		 FROM tracked_users
		 WHERE habbo_id = $1 AND hotel = $2`,
		habboID, hotel,
	).Scan(&u.HabboName, &u.HabboID, &u.Hotel, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find tracked user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) InsertTracked(ctx context.Context, u models.TrackedUser) error {
	// ON CONFLICT DO NOTHING: registro concorrente do mesmo usuário não
	// pode virar linha duplicada
	_, err := p.db.Pool.Exec(ctx,
		`INSERT INTO tracked_users (habbo_name, habbo_id, hotel, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, TRUE, $4, $5)
		 ON CONFLICT (habbo_id, hotel) DO NOTHING`,
		u.HabboName, u.HabboID, u.Hotel, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tracked user: %w", err)
	}
	return nil
}

func (p *Postgres) ReactivateTracked(ctx context.Context, habboID, hotel, habboName string) error {
	_, err := p.db.Pool.Exec(ctx,
		`UPDATE tracked_users
		 SET habbo_name = $3, is_active = TRUE, updated_at = NOW()
		 WHERE habbo_id = $1 AND hotel = $2`,
		habboID, hotel, habboName,
	)
	if err != nil {
		return fmt.Errorf("reactivate tracked user: %w", err)
	}
	return nil
}

func (p *Postgres) LoadSnapshot(ctx context.Context, habboID, hotel string) (*models.ProfileSnapshot, error) {
	var s models.ProfileSnapshot
	err := p.db.Pool.QueryRow(ctx,
		`SELECT motto, figure_string, online, badge_codes, friend_ids, photo_ids, last_synced_at
		 FROM profile_snapshots
		 WHERE habbo_id = $1 AND hotel = $2`,
		habboID, hotel,
	).Scan(&s.Motto, &s.FigureString, &s.Online, &s.BadgeCodes, &s.FriendIDs, &s.PhotoIDs, &s.LastSyncedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // primeiro sync: nada para comparar
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return &s, nil
}

// ApplySync commits events and the replacement snapshot in one
// transaction, events first. A crash between the two can therefore never
// produce a snapshot whose transition events are missing.
func (p *Postgres) ApplySync(ctx context.Context, habboID, hotel string, snap models.ProfileSnapshot, events []models.ActivityEvent) error {
	tx, err := p.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin sync tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if len(events) > 0 {
		rows := make([][]any, 0, len(events))
		for _, ev := range events {
			details, err := json.Marshal(ev.Details)
			if err != nil {
				return fmt.Errorf("marshal event details: %w", err)
			}
			rows = append(rows, []any{ev.OwnerHabboID, ev.Hotel, ev.Kind, details, ev.CreatedAt})
		}

		if _, err := db.CopyInto(ctx, tx,
			"activity_events",
			[]string{"owner_habbo_id", "hotel", "kind", "details", "created_at"},
			rows,
		); err != nil {
			return fmt.Errorf("append activity events: %w", err)
		}

		// avatar novo entra na fila de arquivamento da imagem renderizada
		for _, ev := range events {
			if ev.Kind != models.KindAvatarUpdate {
				continue
			}
			figure, _ := ev.Details["new"].(string)
			if figure == "" {
				continue
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO figure_archive (habbo_id, hotel, figure_string, created_at)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (habbo_id, hotel, figure_string) DO NOTHING`,
				ev.OwnerHabboID, ev.Hotel, figure, ev.CreatedAt,
			); err != nil {
				return fmt.Errorf("queue figure archive: %w", err)
			}
		}
	}

	// snapshot é substituído por inteiro, nunca mesclado
	if _, err := tx.Exec(ctx,
		`INSERT INTO profile_snapshots (habbo_id, hotel, motto, figure_string, online, badge_codes, friend_ids, photo_ids, last_synced_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (habbo_id, hotel) DO UPDATE SET
			motto = EXCLUDED.motto,
			figure_string = EXCLUDED.figure_string,
			online = EXCLUDED.online,
			badge_codes = EXCLUDED.badge_codes,
			friend_ids = EXCLUDED.friend_ids,
			photo_ids = EXCLUDED.photo_ids,
			last_synced_at = EXCLUDED.last_synced_at`,
		habboID, hotel, snap.Motto, snap.FigureString, snap.Online,
		snap.BadgeCodes, snap.FriendIDs, snap.PhotoIDs, snap.LastSyncedAt,
	); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit sync tx: %w", err)
	}
	return nil
}

// ListUnarchivedFigures returns queued avatar renders still missing an
// archive URL, oldest first.
func (p *Postgres) ListUnarchivedFigures(ctx context.Context, limit int) ([]models.FigureArchiveItem, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := p.db.Pool.Query(ctx,
		`SELECT id, habbo_id, hotel, figure_string
		 FROM figure_archive
		 WHERE archive_url IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list unarchived figures: %w", err)
	}
	defer rows.Close()

	var items []models.FigureArchiveItem
	for rows.Next() {
		var it models.FigureArchiveItem
		if err := rows.Scan(&it.ID, &it.HabboID, &it.Hotel, &it.FigureString); err != nil {
			return nil, fmt.Errorf("scan figure archive row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (p *Postgres) MarkFigureArchived(ctx context.Context, id int64, url string) error {
	_, err := p.db.Pool.Exec(ctx,
		`UPDATE figure_archive SET archive_url = $1 WHERE id = $2`,
		url, id,
	)
	if err != nil {
		return fmt.Errorf("mark figure archived: %w", err)
	}
	return nil
}

// ListActivities returns the newest activity events for a tracked user.
func (p *Postgres) ListActivities(ctx context.Context, habboID, hotel string, limit, offset int) ([]models.ActivityEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := p.db.Pool.Query(ctx,
		`SELECT id, owner_habbo_id, hotel, kind, details, created_at
		 FROM activity_events
		 WHERE owner_habbo_id = $1 AND hotel = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3 OFFSET $4`,
		habboID, hotel, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var events []models.ActivityEvent
	for rows.Next() {
		var ev models.ActivityEvent
		var details []byte
		if err := rows.Scan(&ev.ID, &ev.OwnerHabboID, &ev.Hotel, &ev.Kind, &details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &ev.Details); err != nil {
				p.log.Warn("activity_details_unmarshal_failed", "event_id", ev.ID, "error", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
