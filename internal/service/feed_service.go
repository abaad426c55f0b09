package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// PreloadOptions control detail pre-warming after a feed refresh.
type PreloadOptions struct {
	Enabled  bool
	MaxItems int
	MaxLevel int
}

// FeedService is one user's notification session: the raw records from the
// school server, the user's read state, and the categorized views derived
// from both. Every mutation recomputes the views synchronously so readers
// never observe a stale partition.
type FeedService struct {
	notifications *NotificationService
	readState     *ReadStateService
	preload       PreloadOptions
	dispatch      func(records []models.NotificationRecord)
	metrics       *MetricsService
	logger        *zap.Logger

	mu       sync.Mutex
	records  []models.NotificationRecord
	view     models.CategorizedView
	notices  []models.Notice
	lastSync time.Time
}

// FeedParams bundles the dependencies of NewFeedService. Dispatch routes
// preload batches to a background worker; when nil a plain goroutine runs
// them.
type FeedParams struct {
	Notifications *NotificationService
	ReadState     *ReadStateService
	Preload       PreloadOptions
	Dispatch      func(records []models.NotificationRecord)
	Metrics       *MetricsService
	Logger        *zap.Logger
}

// NewFeedService constructs a session for one user.
func NewFeedService(params FeedParams) *FeedService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedService{
		notifications: params.Notifications,
		readState:     params.ReadState,
		preload:       params.Preload,
		dispatch:      params.Dispatch,
		metrics:       params.Metrics,
		logger:        logger,
		view:          models.EmptyCategorizedView(),
	}
}

// Notify implements Notifier by queueing a one-shot notice for the next
// DrainNotices call.
func (s *FeedService) Notify(severity, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, models.Notice{
		ID:       uuid.NewString(),
		Severity: severity,
		Message:  message,
		IssuedAt: time.Now(),
	})
}

// DrainNotices returns queued notices and clears the queue.
func (s *FeedService) DrainNotices() []models.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	drained := s.notices
	s.notices = nil
	return drained
}

// Bind switches the session to userID, flushing the previous user's pending
// writes and recomputing views against the new user's state. An empty userID
// is a logout: the in-memory list, sync marker and queued notices are
// cleared, while persisted state is left untouched.
func (s *FeedService) Bind(ctx context.Context, userID string) {
	s.readState.Bind(ctx, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" {
		s.records = nil
		s.lastSync = time.Time{}
		s.notices = nil
	}
	s.recomputeLocked()
}

// Refresh fetches the notification list and rebuilds the views. A fetch
// superseded by a newer one leaves the session untouched.
func (s *FeedService) Refresh(ctx context.Context, params repository.ListParams, useCache bool) error {
	records, err := s.notifications.FetchList(ctx, params, useCache)
	if err != nil {
		if appErrors.IsCancelled(err) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	s.records = records
	s.lastSync = time.Now()
	s.recomputeLocked()
	preloadCandidates := s.preloadCandidatesLocked()
	s.mu.Unlock()

	if s.preload.Enabled && len(preloadCandidates) > 0 {
		if s.dispatch != nil {
			s.dispatch(preloadCandidates)
		} else {
			go s.notifications.Preload(context.WithoutCancel(ctx), preloadCandidates, s.preload.MaxItems, s.preload.MaxLevel)
		}
	}
	return nil
}

// preloadCandidatesLocked picks the unread priority records worth
// pre-warming, already level-sorted by categorization.
func (s *FeedService) preloadCandidatesLocked() []models.NotificationRecord {
	if !s.preload.Enabled {
		return nil
	}
	candidates := make([]models.NotificationRecord, len(s.view.UnreadPriority))
	copy(candidates, s.view.UnreadPriority)
	return candidates
}

// Detail fetches one notification through the detail cache, optionally
// marking it read the way opening it in the portal does.
func (s *FeedService) Detail(ctx context.Context, id int64, markRead bool) (*models.NotificationRecord, error) {
	record, err := s.notifications.FetchDetail(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if markRead {
		s.MarkRead(id)
	}
	record.IsRead = s.readState.IsRead(id)
	return record, nil
}

// MarkRead marks id read and rebuilds the views.
func (s *FeedService) MarkRead(id int64) {
	s.readState.MarkRead(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// MarkUnread moves id back to the unread buckets.
func (s *FeedService) MarkUnread(id int64) {
	s.readState.MarkUnread(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// Hide removes id from every view until state is reset.
func (s *FeedService) Hide(id int64) {
	s.readState.Hide(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// MarkBulkRead marks every listed id read with a single recompute.
func (s *FeedService) MarkBulkRead(ids []int64) {
	for _, id := range ids {
		s.readState.MarkRead(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// ClearArchive stamps the archive-clear watermark, emptying the read
// archive of everything published before now.
func (s *FeedService) ClearArchive() {
	s.readState.ClearArchive()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// ApplyExternalChange folds a sibling session's write into this one.
func (s *FeedService) ApplyExternalChange(change models.StateChange) {
	s.readState.ApplyChange(change)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recomputeLocked()
}

// WatchExternal reconciles sibling-session writes until ctx is done.
func (s *FeedService) WatchExternal(ctx context.Context, watcher repository.StateWatcher) error {
	events, err := watcher.Watch(ctx, s.readState.prefix)
	if err != nil {
		return err
	}
	go func() {
		for change := range events {
			s.ApplyExternalChange(change)
		}
	}()
	return nil
}

// Views returns the current categorized partition.
func (s *FeedService) Views() models.CategorizedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Records returns the raw fetched records.
func (s *FeedService) Records() []models.NotificationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NotificationRecord, len(s.records))
	copy(out, s.records)
	return out
}

// UnreadStats derives unread counters from the current views.
func (s *FeedService) UnreadStats() models.UnreadStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UnreadStatsFrom(s.view)
}

// LastSync reports when the records were last fetched.
func (s *FeedService) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// ReadState exposes the session's read-state service.
func (s *FeedService) ReadState() *ReadStateService {
	return s.readState
}

// Notifications exposes the session's notification service, mainly for the
// cache admin endpoints.
func (s *FeedService) Notifications() *NotificationService {
	return s.notifications
}

// Close flushes pending read-state writes.
func (s *FeedService) Close() {
	s.readState.Close()
}

// recomputeLocked rebuilds the views. Categorization of hostile upstream
// data must never take the session down, so a panic degrades to the empty
// partition instead.
func (s *FeedService) recomputeLocked() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("categorization panic, serving empty views", zap.Any("panic", r))
			s.view = models.EmptyCategorizedView()
		}
	}()
	start := time.Now()
	s.view = Categorize(s.records, s.readState)
	if s.metrics != nil {
		s.metrics.ObserveCategorize(time.Since(start))
	}
}

// FeedRegistry hands out one FeedService per user, creating sessions
// lazily.
type FeedRegistry struct {
	factory func(userID string) *FeedService

	mu       sync.Mutex
	sessions map[string]*FeedService
}

// NewFeedRegistry constructs a registry around a session factory.
func NewFeedRegistry(factory func(userID string) *FeedService) *FeedRegistry {
	return &FeedRegistry{
		factory:  factory,
		sessions: make(map[string]*FeedService),
	}
}

// Session returns the feed session for userID, creating and binding one on
// first use. The empty user id maps to the shared guest session.
func (r *FeedRegistry) Session(ctx context.Context, userID string) *FeedService {
	if userID == "" {
		userID = models.GuestUserKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID]
	if !ok {
		session = r.factory(userID)
		session.Bind(ctx, userID)
		r.sessions[userID] = session
	}
	return session
}

// Close flushes every session.
func (r *FeedRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		session.Close()
	}
}
