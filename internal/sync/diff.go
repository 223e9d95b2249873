package sync

import (
	"time"

	"habbo-sync/internal/models"
)

// Diff compara o último snapshot com o perfil recém-buscado e produz os
// eventos de atividade + o próximo snapshot. Função pura, sem I/O.
//
// Rules:
//   - prev == nil (first sync) emits zero events; the snapshot is still
//     produced, so the first contact never floods the feed.
//   - one event per changed category per cycle; multiple new badges
//     collapse into a single new_badge event carrying every new code.
//   - removals are not modeled (additions-only).
//   - category order is fixed: motto, avatar, online, badges, friends,
//     photos — output is deterministic for a given input pair.
func Diff(owner models.TrackedUser, prev *models.ProfileSnapshot, cur models.Profile, now time.Time) ([]models.ActivityEvent, models.ProfileSnapshot) {
	next := models.ProfileSnapshot{
		Motto:        cur.Motto,
		FigureString: cur.FigureString,
		Online:       cur.Online,
		BadgeCodes:   append([]string(nil), cur.BadgeCodes...),
		FriendIDs:    append([]string(nil), cur.FriendIDs...),
		PhotoIDs:     append([]string(nil), cur.PhotoIDs...),
		LastSyncedAt: now,
	}

	if prev == nil {
		return nil, next
	}

	var events []models.ActivityEvent

	emit := func(kind string, details map[string]any) {
		events = append(events, models.ActivityEvent{
			OwnerHabboID: owner.HabboID,
			Hotel:        owner.Hotel,
			Kind:         kind,
			Details:      details,
			CreatedAt:    now,
		})
	}

	if cur.Motto != prev.Motto && cur.Motto != "" {
		emit(models.KindMottoChange, map[string]any{
			"old": prev.Motto,
			"new": cur.Motto,
		})
	}

	if cur.FigureString != prev.FigureString {
		emit(models.KindAvatarUpdate, map[string]any{
			"old": prev.FigureString,
			"new": cur.FigureString,
		})
	}

	if cur.Online != prev.Online {
		emit(models.KindOnlineChange, map[string]any{
			"from": prev.Online,
			"to":   cur.Online,
		})
	}

	if added := addedItems(prev.BadgeCodes, cur.BadgeCodes); len(added) > 0 {
		emit(models.KindNewBadge, map[string]any{"codes": added})
	}

	if added := addedItems(prev.FriendIDs, cur.FriendIDs); len(added) > 0 {
		emit(models.KindNewFriend, map[string]any{"ids": added})
	}

	if added := addedItems(prev.PhotoIDs, cur.PhotoIDs); len(added) > 0 {
		emit(models.KindNewPhoto, map[string]any{"ids": added})
	}

	return events, next
}

// addedItems returns cur − prev as a set difference, preserving cur's
// element order so output never depends on map iteration.
func addedItems(prev, cur []string) []string {
	if len(cur) == 0 {
		return nil
	}

	known := make(map[string]struct{}, len(prev))
	for _, v := range prev {
		known[v] = struct{}{}
	}

	var added []string
	for _, v := range cur {
		if _, ok := known[v]; ok {
			continue
		}
		known[v] = struct{}{} // dedupe repeats within cur
		added = append(added, v)
	}
	return added
}
