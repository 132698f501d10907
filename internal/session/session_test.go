package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlashIsShownOnceOnTheNextRequest(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour)

	first, err := m.Load(ctx, "")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	first.Flash(FlashError, "You have suspended shift.")
	assert.Empty(t, first.Flashes(FlashError), "flashes added now belong to the next request")
	require.NoError(t, m.Save(ctx, first))

	second, err := m.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"You have suspended shift."}, second.Flashes(FlashError))
	require.NoError(t, m.Save(ctx, second))

	third, err := m.Load(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, third.Flashes(FlashError))
}

func TestValuesSurviveUntilPulled(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour)

	s, err := m.Load(ctx, "")
	require.NoError(t, err)
	s.Put(KeyIntendedURL, "/shifts/clock-out")
	require.NoError(t, m.Save(ctx, s))

	again, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "/shifts/clock-out", again.Pull(KeyIntendedURL))
	assert.Empty(t, again.Get(KeyIntendedURL))
	require.NoError(t, m.Save(ctx, again))

	last, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, last.Get(KeyIntendedURL))
}

func TestUnknownIDStartsFreshSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour)

	s, err := m.Load(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", s.ID)
}

func TestMemoryStoreExpiresEntries(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "abc", &Data{Values: map[string]string{"k": "v"}}, time.Minute))
	_, ok, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDestroyRemovesSession(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStore(), time.Hour)

	s, err := m.Load(ctx, "")
	require.NoError(t, err)
	s.Put("k", "v")
	require.NoError(t, m.Save(ctx, s))
	require.NoError(t, m.Destroy(ctx, s.ID))

	again, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, again.ID)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	addr := os.Getenv("KASIRINAJA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set KASIRINAJA_TEST_REDIS_ADDR to run redis integration test")
	}

	ctx := context.Background()
	store := NewRedisStore(addr, "", 0)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Ping(ctx))

	m := NewManager(store, time.Minute)
	s, err := m.Load(ctx, "")
	require.NoError(t, err)
	s.Flash(FlashSuccess, "Clocked in.")
	require.NoError(t, m.Save(ctx, s))
	t.Cleanup(func() { _ = m.Destroy(ctx, s.ID) })

	again, err := m.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clocked in."}, again.Flashes(FlashSuccess))
}
