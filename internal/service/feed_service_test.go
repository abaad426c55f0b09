package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

func newFeedFixture(t *testing.T, upstream *fakeUpstream) *FeedService {
	t.Helper()
	store := repository.NewMemoryStateStore()
	mt := &manualTimer{}
	readState := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
	notifications := NewNotificationService(upstream, CacheOptions{Enabled: true}, nil, nil, nil)
	feed := NewFeedService(FeedParams{
		Notifications: notifications,
		ReadState:     readState,
	})
	notifications.SetNotifier(feed)
	feed.Bind(context.Background(), "1001")
	return feed
}

func TestFeedRefreshBuildsViews(t *testing.T) {
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
		record(2, 4, "2025-01-10 10:00:00"),
	}}
	feed := newFeedFixture(t, upstream)

	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))

	view := feed.Views()
	assert.Len(t, view.UnreadPriority, 1)
	assert.Len(t, view.Level4Messages, 1)

	stats := feed.UnreadStats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Emergency)
	assert.Equal(t, 1, stats.Level4)
	assert.False(t, feed.LastSync().IsZero())
}

func TestFeedMarkReadRecomputesSynchronously(t *testing.T) {
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
	}}
	feed := newFeedFixture(t, upstream)
	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))

	feed.MarkRead(1)

	view := feed.Views()
	assert.Empty(t, view.UnreadPriority)
	require.Len(t, view.ReadArchive, 1)
	assert.True(t, view.ReadArchive[0].IsRead)

	feed.MarkUnread(1)
	view = feed.Views()
	assert.Len(t, view.UnreadPriority, 1)
	assert.Empty(t, view.ReadArchive)
}

func TestFeedHideAndClearArchive(t *testing.T) {
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
		record(2, 2, "2025-01-10 10:00:00"),
	}}
	feed := newFeedFixture(t, upstream)
	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))

	feed.Hide(1)
	view := feed.Views()
	require.Len(t, view.UnreadPriority, 1)
	assert.Equal(t, int64(2), view.UnreadPriority[0].ID)

	feed.MarkRead(2)
	feed.ClearArchive()
	view = feed.Views()
	assert.Empty(t, view.ReadArchive)
	assert.Empty(t, view.UnreadPriority)
}

func TestFeedBindEmptyUserClearsSession(t *testing.T) {
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
	}}
	feed := newFeedFixture(t, upstream)
	ctx := context.Background()
	require.NoError(t, feed.Refresh(ctx, repository.ListParams{PageNo: 1}, true))
	feed.MarkRead(1)

	feed.Bind(ctx, "")

	assert.Empty(t, feed.Records())
	assert.True(t, feed.LastSync().IsZero())
	assert.Empty(t, feed.DrainNotices())
	assert.Empty(t, feed.Views().UnreadPriority)

	// Persisted state survives the logout: rebinding the user sees the
	// read mark again.
	feed.Bind(ctx, "1001")
	require.NoError(t, feed.Refresh(ctx, repository.ListParams{PageNo: 1}, true))
	view := feed.Views()
	assert.Empty(t, view.UnreadPriority)
	assert.Len(t, view.ReadArchive, 1)
}

func TestFeedFallbackEmitsOneNotice(t *testing.T) {
	upstream := &fakeUpstream{listErr: appErrors.ErrUpstream}
	feed := newFeedFixture(t, upstream)

	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))

	records := feed.Records()
	assert.Len(t, records, 3)

	notices := feed.DrainNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, "warning", notices[0].Severity)
	assert.NotEmpty(t, notices[0].ID)

	// Drained notices do not reappear.
	assert.Empty(t, feed.DrainNotices())
}

func TestFeedApplyExternalChangeReconciles(t *testing.T) {
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
	}}
	feed := newFeedFixture(t, upstream)
	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))

	feed.ApplyExternalChange(models.StateChange{
		Key:   "campus_portal_read_notifications_1001",
		Value: "[1]",
	})

	view := feed.Views()
	assert.Empty(t, view.UnreadPriority)
	assert.Len(t, view.ReadArchive, 1)
}

func TestFeedRegistryIsolatesUsers(t *testing.T) {
	store := repository.NewMemoryStateStore()
	upstream := &fakeUpstream{records: []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
	}}
	registry := NewFeedRegistry(func(string) *FeedService {
		mt := &manualTimer{}
		readState := NewReadStateService(ReadStateParams{Store: store, TimerFn: mt.after})
		notifications := NewNotificationService(upstream, CacheOptions{Enabled: true}, nil, nil, nil)
		feed := NewFeedService(FeedParams{Notifications: notifications, ReadState: readState})
		notifications.SetNotifier(feed)
		return feed
	})

	ctx := context.Background()
	alice := registry.Session(ctx, "1001")
	bob := registry.Session(ctx, "2002")
	require.NotSame(t, alice, bob)
	assert.Same(t, alice, registry.Session(ctx, "1001"))

	require.NoError(t, alice.Refresh(ctx, repository.ListParams{PageNo: 1}, true))
	require.NoError(t, bob.Refresh(ctx, repository.ListParams{PageNo: 1}, true))

	alice.MarkRead(1)
	assert.Empty(t, alice.Views().UnreadPriority)
	assert.Len(t, bob.Views().UnreadPriority, 1)

	// The empty user id is the shared guest session.
	assert.Same(t, registry.Session(ctx, ""), registry.Session(ctx, models.GuestUserKey))
}
