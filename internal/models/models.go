package models

import "time"

type TrackedUser struct {
	HabboName string    `json:"habbo_name"`
	HabboID   string    `json:"habbo_id"`
	Hotel     string    `json:"hotel"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile é o resultado completo de um fetch na API pública do Habbo.
// Badges/friends/photos vêm de chamadas separadas mas fazem parte do
// mesmo contrato de fetch.
type Profile struct {
	UniqueID     string    `json:"unique_id"`
	Name         string    `json:"name"`
	Motto        string    `json:"motto"`
	FigureString string    `json:"figure_string"`
	Online       bool      `json:"online"`
	MemberSince  string    `json:"member_since,omitempty"`
	BadgeCodes   []string  `json:"badge_codes"`
	FriendIDs    []string  `json:"friend_ids"`
	PhotoIDs     []string  `json:"photo_ids"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// ProfileSnapshot is the last-known state of a tracked user, fully
// replaced on every successful sync.
type ProfileSnapshot struct {
	Motto        string    `json:"motto"`
	FigureString string    `json:"figure_string"`
	Online       bool      `json:"online"`
	BadgeCodes   []string  `json:"badge_codes"`
	FriendIDs    []string  `json:"friend_ids"`
	PhotoIDs     []string  `json:"photo_ids"`
	LastSyncedAt time.Time `json:"last_synced_at"`
}

// Activity event kinds. One event per kind per sync cycle.
const (
	KindMottoChange  = "motto_change"
	KindAvatarUpdate = "avatar_update"
	KindNewBadge     = "new_badge"
	KindNewFriend    = "new_friend"
	KindNewPhoto     = "new_photo"
	KindOnlineChange = "online_change"
)

type ActivityEvent struct {
	ID           int64          `json:"id,omitempty"`
	OwnerHabboID string         `json:"owner_habbo_id"`
	Hotel        string         `json:"hotel"`
	Kind         string         `json:"kind"`
	Details      map[string]any `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// FigureArchiveItem is a queued avatar render awaiting archival.
type FigureArchiveItem struct {
	ID           int64  `json:"id"`
	HabboID      string `json:"habbo_id"`
	Hotel        string `json:"hotel"`
	FigureString string `json:"figure_string"`
}

// SyncResult is transient, one per user per batch run.
type SyncResult struct {
	HabboName         string `json:"habbo_name"`
	Hotel             string `json:"hotel"`
	Success           bool   `json:"success"`
	ActivitiesCreated int    `json:"activities_created"`
	Error             string `json:"error,omitempty"`
}

type BatchSyncReport struct {
	RunID                  string       `json:"run_id"`
	TotalUsers             int          `json:"total_users"`
	SuccessCount           int          `json:"success_count"`
	ErrorCount             int          `json:"error_count"`
	TotalActivitiesCreated int          `json:"total_activities_created"`
	PerUserResults         []SyncResult `json:"per_user_results"`
	StartedAt              time.Time    `json:"started_at"`
	FinishedAt             time.Time    `json:"finished_at"`
}
