package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/schedule"
)

// ReadStateService owns one user's read/hidden/archive-cleared state. State
// mutations update memory immediately and persist through a debounced write,
// matching the web client's 300ms localStorage throttle. Mutators never
// block on storage and never surface storage errors.
type ReadStateService struct {
	store    repository.StateStore
	prefix   string
	origin   string
	interval time.Duration
	timerFn  schedule.TimerFunc
	logger   *zap.Logger
	metrics  *MetricsService

	mu               sync.RWMutex
	userID           string
	readIDs          map[int64]struct{}
	hiddenIDs        map[int64]struct{}
	archiveClearedAt int64
	dirty            map[string]struct{}
	saver            *schedule.Debouncer
}

// ReadStateParams configures a ReadStateService.
type ReadStateParams struct {
	Store            repository.StateStore
	KeyPrefix        string
	DebounceInterval time.Duration
	TimerFn          schedule.TimerFunc
	Logger           *zap.Logger
	Metrics          *MetricsService
}

// NewReadStateService constructs the service bound to the guest namespace.
func NewReadStateService(params ReadStateParams) *ReadStateService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.KeyPrefix == "" {
		params.KeyPrefix = "campus_portal"
	}
	if params.DebounceInterval <= 0 {
		params.DebounceInterval = 300 * time.Millisecond
	}
	s := &ReadStateService{
		store:     params.Store,
		prefix:    params.KeyPrefix,
		origin:    uuid.NewString(),
		interval:  params.DebounceInterval,
		timerFn:   params.TimerFn,
		logger:    params.Logger,
		metrics:   params.Metrics,
		readIDs:   make(map[int64]struct{}),
		hiddenIDs: make(map[int64]struct{}),
		dirty:     make(map[string]struct{}),
	}
	s.saver = schedule.NewDebouncerWithTimer(s.interval, s.persist, s.timerFn)
	return s
}

// Bind switches the service to userID's namespace, flushing any pending
// write for the previous user first and loading the new user's state. An
// empty userID selects the guest namespace.
func (s *ReadStateService) Bind(ctx context.Context, userID string) {
	s.Flush()

	s.mu.Lock()
	s.userID = userID
	s.readIDs = make(map[int64]struct{})
	s.hiddenIDs = make(map[int64]struct{})
	s.archiveClearedAt = 0
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	s.load(ctx)
}

// UserID returns the bound user namespace ("" for guest).
func (s *ReadStateService) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Origin returns this session's write-origin id. Change events carrying it
// are echoes of this service's own persists.
func (s *ReadStateService) Origin() string {
	return s.origin
}

// load reads the three persisted keys. Each key loads independently so one
// malformed value cannot wipe the others.
func (s *ReadStateService) load(ctx context.Context) {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ids, ok := s.loadIDSet(ctx, models.ReadStateFieldRead); ok {
		s.readIDs = ids
	}
	if ids, ok := s.loadIDSet(ctx, models.ReadStateFieldHidden); ok {
		s.hiddenIDs = ids
	}

	key := models.ReadStateKey(s.prefix, models.ReadStateFieldArchiveCleared, s.userID)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return
	}
	cleared, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Warn("malformed archive-cleared value, resetting", zap.String("key", key), zap.Error(err))
		return
	}
	s.archiveClearedAt = cleared
}

func (s *ReadStateService) loadIDSet(ctx context.Context, field string) (map[int64]struct{}, bool) {
	key := models.ReadStateKey(s.prefix, field, s.userID)
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	ids, err := parseIDSet(raw)
	if err != nil {
		s.logger.Warn("malformed id set, resetting field", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return ids, true
}

func parseIDSet(raw string) (map[int64]struct{}, error) {
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// MarkRead records id as read. Already-read ids are a no-op and do not
// re-trigger persistence.
func (s *ReadStateService) MarkRead(id int64) {
	s.mutateIDSet(id, models.ReadStateFieldRead, true)
}

// MarkUnread removes id from the read set.
func (s *ReadStateService) MarkUnread(id int64) {
	s.mutateIDSet(id, models.ReadStateFieldRead, false)
}

// Hide permanently removes id from view. There is no unhide.
func (s *ReadStateService) Hide(id int64) {
	s.mutateIDSet(id, models.ReadStateFieldHidden, true)
}

func (s *ReadStateService) mutateIDSet(id int64, field string, add bool) {
	s.mu.Lock()
	set := s.readIDs
	if field == models.ReadStateFieldHidden {
		set = s.hiddenIDs
	}
	_, exists := set[id]
	if add == exists {
		s.mu.Unlock()
		return
	}
	if add {
		set[id] = struct{}{}
	} else {
		delete(set, id)
	}
	s.dirty[field] = struct{}{}
	s.mu.Unlock()

	s.saver.Trigger()
}

// ClearArchive stamps the clear watermark at now. Every currently-read
// notification drops out of the archive; notifications read later are
// unaffected because the cleared predicate re-evaluates read status live.
func (s *ReadStateService) ClearArchive() {
	s.mu.Lock()
	s.archiveClearedAt = time.Now().UnixMilli()
	s.dirty[models.ReadStateFieldArchiveCleared] = struct{}{}
	s.mu.Unlock()

	s.saver.Trigger()
}

// IsRead reports whether id has been marked read.
func (s *ReadStateService) IsRead(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.readIDs[id]
	return ok
}

// IsHidden reports whether id has been permanently hidden.
func (s *ReadStateService) IsHidden(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.hiddenIDs[id]
	return ok
}

// IsClearedFromArchive reports whether record is suppressed by an archive
// clear. The watermark applies to whatever is read at evaluation time, not
// to the record's own timestamp.
func (s *ReadStateService) IsClearedFromArchive(record models.NotificationRecord) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.archiveClearedAt == 0 {
		return false
	}
	_, read := s.readIDs[record.ID]
	return read
}

// Snapshot returns a copy of the current state with deterministic ordering.
func (s *ReadStateService) Snapshot() models.ReadStateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.ReadStateSnapshot{
		ReadIDs:          sortedIDs(s.readIDs),
		HiddenIDs:        sortedIDs(s.hiddenIDs),
		ArchiveClearedAt: s.archiveClearedAt,
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Flush persists any pending changes immediately.
func (s *ReadStateService) Flush() {
	s.saver.Flush()
}

// Close flushes pending writes and stops the debouncer.
func (s *ReadStateService) Close() {
	s.saver.Flush()
	s.saver.Stop()
}

// persist writes every dirty field. Failures are logged and the field stays
// dirty for the next write.
func (s *ReadStateService) persist() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	userID := s.userID
	pending := make(map[string]string, len(s.dirty))
	for field := range s.dirty {
		switch field {
		case models.ReadStateFieldRead:
			pending[field] = encodeIDSet(s.readIDs)
		case models.ReadStateFieldHidden:
			pending[field] = encodeIDSet(s.hiddenIDs)
		case models.ReadStateFieldArchiveCleared:
			pending[field] = strconv.FormatInt(s.archiveClearedAt, 10)
		}
	}
	s.dirty = make(map[string]struct{})
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for field, value := range pending {
		key := models.ReadStateKey(s.prefix, field, userID)
		if err := s.store.Set(ctx, key, value, s.origin); err != nil {
			s.logger.Warn("read-state persist failed", zap.String("key", key), zap.Error(err))
			s.mu.Lock()
			s.dirty[field] = struct{}{}
			s.mu.Unlock()
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordStatePersist()
		}
	}
}

func encodeIDSet(set map[int64]struct{}) string {
	payload, err := json.Marshal(sortedIDs(set))
	if err != nil {
		return "[]"
	}
	return string(payload)
}

// ApplyChange reconciles an externally observed write to one of this user's
// persisted keys by replacing the affected field wholesale. Events for other
// users or unknown fields are ignored; malformed payloads reset the field.
// Echoes of this session's own persists are skipped, otherwise an event
// arriving after a newer local mutation would silently revert it.
func (s *ReadStateService) ApplyChange(change models.StateChange) {
	if change.Origin != "" && change.Origin == s.origin {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch change.Key {
	case models.ReadStateKey(s.prefix, models.ReadStateFieldRead, s.userID):
		ids, err := parseIDSet(change.Value)
		if err != nil {
			s.logger.Warn("malformed external read set", zap.Error(err))
			ids = make(map[int64]struct{})
		}
		s.readIDs = ids
	case models.ReadStateKey(s.prefix, models.ReadStateFieldHidden, s.userID):
		ids, err := parseIDSet(change.Value)
		if err != nil {
			s.logger.Warn("malformed external hidden set", zap.Error(err))
			ids = make(map[int64]struct{})
		}
		s.hiddenIDs = ids
	case models.ReadStateKey(s.prefix, models.ReadStateFieldArchiveCleared, s.userID):
		cleared, err := strconv.ParseInt(change.Value, 10, 64)
		if err != nil {
			s.logger.Warn("malformed external archive-cleared value", zap.Error(err))
			cleared = 0
		}
		s.archiveClearedAt = cleared
	}
}

// WatchExternal consumes change events from watcher until ctx is done,
// reconciling this user's fields as sibling sessions write them.
func (s *ReadStateService) WatchExternal(ctx context.Context, watcher repository.StateWatcher) error {
	events, err := watcher.Watch(ctx, s.prefix)
	if err != nil {
		return err
	}
	go func() {
		for change := range events {
			s.ApplyChange(change)
		}
	}()
	return nil
}
