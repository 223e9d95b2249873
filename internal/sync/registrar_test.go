package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"habbo-sync/internal/models"
)

type signalSyncer struct {
	fakeSyncer
	synced chan models.TrackedUser
}

func newSignalSyncer() *signalSyncer {
	return &signalSyncer{synced: make(chan models.TrackedUser, 8)}
}

func (s *signalSyncer) SyncOne(ctx context.Context, user models.TrackedUser) models.SyncResult {
	res := s.fakeSyncer.SyncOne(ctx, user)
	s.synced <- user
	return res
}

func TestEnsureTrackedAdded(t *testing.T) {
	st := newFakeStore()
	syncer := newSignalSyncer()
	reg := NewRegistrar(discardLogger(), st, syncer, nil)

	action, err := reg.EnsureTracked(context.Background(), "jal0usie", "hhbr-abc123def456", "br")
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, action)

	require.Len(t, st.inserted, 1)
	assert.Equal(t, "jal0usie", st.inserted[0].HabboName)
	assert.Equal(t, "com.br", st.inserted[0].Hotel, "hotel must be stored normalized")
	assert.True(t, st.inserted[0].IsActive)

	// sync imediato dispara em background
	select {
	case u := <-syncer.synced:
		assert.Equal(t, "hhbr-abc123def456", u.HabboID)
	case <-time.After(2 * time.Second):
		t.Fatal("immediate sync never fired")
	}
}

func TestEnsureTrackedIdempotent(t *testing.T) {
	st := newFakeStore()
	syncer := newSignalSyncer()
	reg := NewRegistrar(discardLogger(), st, syncer, nil)

	ctx := context.Background()

	action, err := reg.EnsureTracked(ctx, "jal0usie", "hhbr-abc123def456", "br")
	require.NoError(t, err)
	assert.Equal(t, ActionAdded, action)

	action, err = reg.EnsureTracked(ctx, "jal0usie", "hhbr-abc123def456", "br")
	require.NoError(t, err)
	assert.Equal(t, ActionAlreadyTracked, action)

	assert.Len(t, st.inserted, 1, "second call must not insert again")
}

func TestEnsureTrackedReactivates(t *testing.T) {
	st := newFakeStore()
	st.tracked[key("hhbr-abc123def456", "com.br")] = &models.TrackedUser{
		HabboName: "oldname",
		HabboID:   "hhbr-abc123def456",
		Hotel:     "com.br",
		IsActive:  false,
	}
	syncer := newSignalSyncer()
	reg := NewRegistrar(discardLogger(), st, syncer, nil)

	action, err := reg.EnsureTracked(context.Background(), "newname", "hhbr-abc123def456", "br")
	require.NoError(t, err)
	assert.Equal(t, ActionReactivated, action)

	u, _ := st.FindTracked(context.Background(), "hhbr-abc123def456", "com.br")
	require.NotNil(t, u)
	assert.True(t, u.IsActive)
	assert.Equal(t, "newname", u.HabboName, "reactivation refreshes the display name")
}

func TestEnsureTrackedIDNormalization(t *testing.T) {
	st := newFakeStore()
	syncer := newSignalSyncer()
	reg := NewRegistrar(discardLogger(), st, syncer, nil)

	ctx := context.Background()

	_, err := reg.EnsureTracked(ctx, "jal0usie", "  HHBR-ABC123DEF456  ", "br")
	require.NoError(t, err)

	// mesma identidade com casing diferente => already_tracked
	action, err := reg.EnsureTracked(ctx, "jal0usie", "hhbr-abc123def456", "br")
	require.NoError(t, err)
	assert.Equal(t, ActionAlreadyTracked, action)
}

func TestEnsureTrackedInvalidInput(t *testing.T) {
	st := newFakeStore()
	syncer := newSignalSyncer()
	reg := NewRegistrar(discardLogger(), st, syncer, nil)

	ctx := context.Background()

	tests := []struct {
		name      string
		habboName string
		habboID   string
		hotel     string
	}{
		{"empty name", "", "hhbr-abc123def456", "br"},
		{"empty id", "jal0usie", "", "br"},
		{"empty hotel", "jal0usie", "hhbr-abc123def456", ""},
		{"unknown hotel", "jal0usie", "hhbr-abc123def456", "xx"},
		{"malformed id", "jal0usie", "not-a-habbo-id!", "br"},
		{"id without hh prefix", "jal0usie", "xxbr-abc123def456", "br"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.EnsureTracked(ctx, tt.habboName, tt.habboID, tt.hotel)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	assert.Empty(t, st.inserted)
}

func TestSyncerReportsPersistFailure(t *testing.T) {
	st := newFakeStore()
	st.applyErr = assert.AnError
	fetcher := &fakeFetcher{profile: &models.Profile{UniqueID: "hhbr-abc123def456", Name: "jal0usie"}}

	syncer := NewSyncer(discardLogger(), st, fetcher)

	res := syncer.SyncOne(context.Background(), testOwner)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "persist failed")
}

func TestSyncerFirstSyncPersistsSnapshotWithoutEvents(t *testing.T) {
	st := newFakeStore()
	fetcher := &fakeFetcher{profile: &models.Profile{
		UniqueID:   "hhbr-abc123def456",
		Name:       "jal0usie",
		Motto:      "oi",
		BadgeCodes: []string{"ADM"},
	}}

	syncer := NewSyncer(discardLogger(), st, fetcher)

	res := syncer.SyncOne(context.Background(), testOwner)
	require.True(t, res.Success)
	assert.Equal(t, 0, res.ActivitiesCreated)

	snap, _ := st.LoadSnapshot(context.Background(), testOwner.HabboID, testOwner.Hotel)
	require.NotNil(t, snap)
	assert.Equal(t, "oi", snap.Motto)

	// segundo ciclo com motto novo gera exatamente um evento
	fetcher.profile.Motto = "tchau"
	res = syncer.SyncOne(context.Background(), testOwner)
	require.True(t, res.Success)
	assert.Equal(t, 1, res.ActivitiesCreated)
}

type fakeFetcher struct {
	profile *models.Profile
	err     error
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, habboName, hotel string) (*models.Profile, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.profile
	return &cp, nil
}
