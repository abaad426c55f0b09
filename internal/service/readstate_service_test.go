package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// manualTimer captures debounce callbacks so tests decide when writes fire.
type manualTimer struct {
	mu    sync.Mutex
	fns   []func()
	calls int
}

func (m *manualTimer) after(_ time.Duration, fn func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.fns = append(m.fns, fn)
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func (m *manualTimer) fireLast() {
	m.mu.Lock()
	fn := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	fn()
}

func (m *manualTimer) scheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// countingStore wraps a store and counts writes, optionally failing them.
type countingStore struct {
	repository.StateStore
	mu   sync.Mutex
	sets int
	fail bool
}

func (c *countingStore) Set(ctx context.Context, key, value, origin string) error {
	c.mu.Lock()
	c.sets++
	fail := c.fail
	c.mu.Unlock()
	if fail {
		return appErrors.ErrInternal
	}
	return c.StateStore.Set(ctx, key, value, origin)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

func newReadStateFixture() (*ReadStateService, *repository.MemoryStateStore, *manualTimer) {
	store := repository.NewMemoryStateStore()
	mt := &manualTimer{}
	svc := NewReadStateService(ReadStateParams{
		Store:   store,
		TimerFn: mt.after,
	})
	return svc, store, mt
}

func TestReadStateMarkReadPersistsSortedSet(t *testing.T) {
	svc, store, mt := newReadStateFixture()
	svc.Bind(context.Background(), "1001")

	svc.MarkRead(3)
	svc.MarkRead(1)
	mt.fireLast()

	raw, err := store.Get(context.Background(), "campus_portal_read_notifications_1001")
	require.NoError(t, err)
	assert.Equal(t, "[1,3]", raw)
	assert.True(t, svc.IsRead(1))
	assert.False(t, svc.IsRead(2))
}

func TestReadStateIdempotentMarkSchedulesNothing(t *testing.T) {
	svc, _, mt := newReadStateFixture()
	svc.Bind(context.Background(), "1001")

	svc.MarkRead(1)
	scheduled := mt.scheduled()
	svc.MarkRead(1)
	assert.Equal(t, scheduled, mt.scheduled())

	mt.fireLast()
	svc.MarkUnread(2)
	assert.Equal(t, scheduled, mt.scheduled())
}

func TestReadStateBurstCoalescesToOnePersistPerField(t *testing.T) {
	store := &countingStore{StateStore: repository.NewMemoryStateStore()}
	mt := &manualTimer{}
	svc := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
	svc.Bind(context.Background(), "1001")

	svc.MarkRead(1)
	svc.MarkRead(2)
	svc.MarkRead(3)
	mt.fireLast()

	assert.Equal(t, 1, store.setCount())
}

func TestReadStateBindLoadsPersistedState(t *testing.T) {
	store := repository.NewMemoryStateStore()
	require.NoError(t, store.Set(context.Background(), "campus_portal_read_notifications_1001", "[5,7]", ""))
	require.NoError(t, store.Set(context.Background(), "campus_portal_hidden_notifications_1001", "[9]", ""))
	require.NoError(t, store.Set(context.Background(), "campus_portal_archive_cleared_time_1001", "1736500000000", ""))

	mt := &manualTimer{}
	svc := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
	svc.Bind(context.Background(), "1001")

	assert.True(t, svc.IsRead(5))
	assert.True(t, svc.IsRead(7))
	assert.True(t, svc.IsHidden(9))
	snap := svc.Snapshot()
	assert.Equal(t, int64(1736500000000), snap.ArchiveClearedAt)
}

func TestReadStateMalformedKeyResetsOnlyThatField(t *testing.T) {
	store := repository.NewMemoryStateStore()
	require.NoError(t, store.Set(context.Background(), "campus_portal_read_notifications_1001", "{broken", ""))
	require.NoError(t, store.Set(context.Background(), "campus_portal_hidden_notifications_1001", "[9]", ""))

	mt := &manualTimer{}
	svc := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
	svc.Bind(context.Background(), "1001")

	assert.False(t, svc.IsRead(5))
	assert.True(t, svc.IsHidden(9))
}

func TestReadStateBindFlushesPreviousUser(t *testing.T) {
	svc, store, _ := newReadStateFixture()
	svc.Bind(context.Background(), "1001")

	svc.MarkRead(1)
	svc.Bind(context.Background(), "2002")

	raw, err := store.Get(context.Background(), "campus_portal_read_notifications_1001")
	require.NoError(t, err)
	assert.Equal(t, "[1]", raw)

	// The new user starts clean.
	assert.False(t, svc.IsRead(1))
	_, err = store.Get(context.Background(), "campus_portal_read_notifications_2002")
	assert.Error(t, err)
}

func TestReadStateGuestNamespace(t *testing.T) {
	svc, store, mt := newReadStateFixture()
	svc.Bind(context.Background(), "")

	svc.MarkRead(1)
	mt.fireLast()

	raw, err := store.Get(context.Background(), "campus_portal_read_notifications_guest")
	require.NoError(t, err)
	assert.Equal(t, "[1]", raw)
}

func TestReadStateClearArchiveEvaluatesLive(t *testing.T) {
	svc, _, _ := newReadStateFixture()
	svc.Bind(context.Background(), "1001")

	rec := models.NotificationRecord{ID: 1, Title: "t", Level: 2}
	assert.False(t, svc.IsClearedFromArchive(rec))

	svc.MarkRead(1)
	svc.ClearArchive()
	assert.True(t, svc.IsClearedFromArchive(rec))

	// Watermark suppresses whatever is read when asked, even reads that
	// happen after the clear.
	rec2 := models.NotificationRecord{ID: 2, Title: "t2", Level: 2}
	assert.False(t, svc.IsClearedFromArchive(rec2))
	svc.MarkRead(2)
	assert.True(t, svc.IsClearedFromArchive(rec2))
}

func TestReadStateApplyChangeReplacesField(t *testing.T) {
	svc, _, _ := newReadStateFixture()
	svc.Bind(context.Background(), "1001")
	svc.MarkRead(1)

	svc.ApplyChange(models.StateChange{
		Key:   "campus_portal_read_notifications_1001",
		Value: "[2,3]",
	})

	// Replacement, not merge.
	assert.False(t, svc.IsRead(1))
	assert.True(t, svc.IsRead(2))
	assert.True(t, svc.IsRead(3))
}

func TestReadStateApplyChangeIgnoresOtherUsers(t *testing.T) {
	svc, _, _ := newReadStateFixture()
	svc.Bind(context.Background(), "1001")
	svc.MarkRead(1)

	svc.ApplyChange(models.StateChange{
		Key:   "campus_portal_read_notifications_2002",
		Value: "[9]",
	})

	assert.True(t, svc.IsRead(1))
	assert.False(t, svc.IsRead(9))
}

func TestReadStateApplyChangeMalformedResets(t *testing.T) {
	svc, _, _ := newReadStateFixture()
	svc.Bind(context.Background(), "1001")
	svc.MarkRead(1)

	svc.ApplyChange(models.StateChange{
		Key:   "campus_portal_read_notifications_1001",
		Value: "not-json",
	})

	assert.False(t, svc.IsRead(1))
}

func TestReadStateApplyChangeSkipsOwnEchoes(t *testing.T) {
	svc, _, mt := newReadStateFixture()
	svc.Bind(context.Background(), "1001")

	svc.MarkRead(1)
	mt.fireLast()
	svc.MarkRead(2)

	// The echoed event of the first persist arrives after a newer local
	// mutation; applying it would revert the second read mark.
	svc.ApplyChange(models.StateChange{
		Key:    "campus_portal_read_notifications_1001",
		Value:  "[1]",
		Origin: svc.Origin(),
	})
	assert.True(t, svc.IsRead(1))
	assert.True(t, svc.IsRead(2))

	// A sibling session's write still replaces the field.
	svc.ApplyChange(models.StateChange{
		Key:    "campus_portal_read_notifications_1001",
		Value:  "[3]",
		Origin: "sibling-session",
	})
	assert.False(t, svc.IsRead(2))
	assert.True(t, svc.IsRead(3))
}

func TestReadStatePersistFailureStaysDirty(t *testing.T) {
	store := &countingStore{StateStore: repository.NewMemoryStateStore()}
	mt := &manualTimer{}
	svc := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
	svc.Bind(context.Background(), "1001")

	store.mu.Lock()
	store.fail = true
	store.mu.Unlock()

	svc.MarkRead(1)
	mt.fireLast()

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	// The field stayed dirty, so the next write carries it too.
	svc.MarkRead(2)
	mt.fireLast()

	raw, err := store.StateStore.Get(context.Background(), "campus_portal_read_notifications_1001")
	require.NoError(t, err)
	assert.Equal(t, "[1,2]", raw)
}
