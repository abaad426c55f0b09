package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

type upstreamClient interface {
	List(ctx context.Context, params repository.ListParams) (*repository.ListResult, error)
	Detail(ctx context.Context, id int64) (*models.NotificationRecord, error)
}

// Notifier receives one-shot, non-blocking user-visible notices.
type Notifier interface {
	Notify(severity, message string)
}

// CacheOptions tune the in-memory notification cache at runtime.
type CacheOptions struct {
	Enabled bool
	TTL     time.Duration
	MaxSize int
}

type cacheEntry struct {
	value     interface{}
	timestamp time.Time
	ttl       time.Duration
}

type inflight struct {
	cancel context.CancelFunc
	gen    uint64
}

// NotificationService wraps the school server client with a TTL cache and
// the portal's degradation contract: upstream failure yields the fixed
// offline dataset plus a warning notice, never an error.
//
// Overlapping fetches of the same logical slot de-duplicate by cancelling
// the older request; its continuation is discarded without touching the
// cache or emitting notices.
type NotificationService struct {
	upstream upstreamClient
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger

	mu      sync.Mutex
	opts    CacheOptions
	entries map[string]cacheEntry
	order   []string
	slots   map[string]*inflight
	genSeq  uint64
}

// NewNotificationService constructs the service.
func NewNotificationService(upstream upstreamClient, opts CacheOptions, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 200
	}
	return &NotificationService{
		upstream: upstream,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
		entries:  make(map[string]cacheEntry),
		slots:    make(map[string]*inflight),
	}
}

// SetNotifier installs the notice sink. Sessions own their notification
// service but are constructed after it, so the sink arrives late.
func (s *NotificationService) SetNotifier(notifier Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = notifier
}

func (s *NotificationService) notify(severity, message string) {
	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.Notify(severity, message)
	}
}

// FetchList returns notifications for params, serving the cache when fresh.
// Upstream failure degrades to the fallback dataset; only a superseded
// (cancelled) fetch returns an error, and that error is ErrCancelled.
func (s *NotificationService) FetchList(ctx context.Context, params repository.ListParams, useCache bool) ([]models.NotificationRecord, error) {
	cacheKey := listCacheKey(params)

	if useCache {
		if cached, ok := s.getFromCache(cacheKey); ok {
			if records, ok := cached.([]models.NotificationRecord); ok {
				return records, nil
			}
		}
	}

	fetchCtx, gen := s.claimSlot(ctx, "list")
	start := time.Now()
	result, err := s.upstream.List(fetchCtx, params)
	if s.metrics != nil {
		s.metrics.ObserveUpstream("list", err, time.Since(start))
	}

	if !s.releaseSlot("list", gen) {
		// A newer fetch owns the slot; this continuation must not touch
		// shared state, including the failure branches below.
		return nil, appErrors.Clone(appErrors.ErrCancelled, "list fetch superseded")
	}

	if err != nil {
		if appErrors.IsCancelled(err) {
			return nil, err
		}
		s.logger.Warn("notification list degraded to offline dataset", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordFallback()
		}
		s.notify("warning", "通知数据获取失败，已切换到离线模式")
		return repository.FallbackNotifications(), nil
	}

	if useCache {
		s.setToCache(cacheKey, result.Records, 0)
	}
	return result.Records, nil
}

// FetchDetail returns a single notification, cached per id. Unlike the list
// path there is no fallback; a missing or failed detail surfaces as an
// error for the caller to translate.
func (s *NotificationService) FetchDetail(ctx context.Context, id int64, useCache bool) (*models.NotificationRecord, error) {
	cacheKey := fmt.Sprintf("notification_detail_%d", id)

	if useCache {
		if cached, ok := s.getFromCache(cacheKey); ok {
			if record, ok := cached.(models.NotificationRecord); ok {
				return &record, nil
			}
		}
	}

	slot := fmt.Sprintf("detail_%d", id)
	fetchCtx, gen := s.claimSlot(ctx, slot)
	start := time.Now()
	record, err := s.upstream.Detail(fetchCtx, id)
	if s.metrics != nil {
		s.metrics.ObserveUpstream("detail", err, time.Since(start))
	}

	if !s.releaseSlot(slot, gen) {
		return nil, appErrors.Clone(appErrors.ErrCancelled, "detail fetch superseded")
	}

	if err != nil {
		return nil, err
	}

	if useCache {
		s.setToCache(cacheKey, *record, 0)
	}
	return record, nil
}

// Preload pre-warms detail caches for the first maxItems records at or
// below maxLevel. Fire-and-forget; every failure is swallowed.
func (s *NotificationService) Preload(ctx context.Context, records []models.NotificationRecord, maxItems, maxLevel int) {
	if maxItems <= 0 || maxLevel <= 0 {
		return
	}
	loaded := 0
	for _, record := range records {
		if loaded >= maxItems {
			break
		}
		if record.Level > maxLevel {
			continue
		}
		if _, err := s.FetchDetail(ctx, record.ID, true); err != nil {
			s.logger.Debug("detail preload failed", zap.Int64("id", record.ID), zap.Error(err))
		}
		loaded++
	}
}

// claimSlot cancels any in-flight request for the logical slot and claims it
// for a new fetch.
func (s *NotificationService) claimSlot(ctx context.Context, slot string) (context.Context, uint64) {
	fetchCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if prev, ok := s.slots[slot]; ok {
		prev.cancel()
	}
	s.genSeq++
	gen := s.genSeq
	s.slots[slot] = &inflight{cancel: cancel, gen: gen}
	s.mu.Unlock()
	return fetchCtx, gen
}

// releaseSlot reports whether the fetch identified by gen still owns the
// slot, clearing it when it does.
func (s *NotificationService) releaseSlot(slot string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.slots[slot]
	if !ok || current.gen != gen {
		return false
	}
	delete(s.slots, slot)
	return true
}

// getFromCache returns a fresh entry, lazily evicting expired ones.
func (s *NotificationService) getFromCache(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled {
		return nil, false
	}
	entry, ok := s.entries[key]
	if !ok {
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
		return nil, false
	}
	if time.Now().After(entry.timestamp.Add(entry.ttl)) {
		s.removeKeyLocked(key)
		if s.metrics != nil {
			s.metrics.RecordCacheLookup(false)
		}
		return nil, false
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(true)
	}
	return entry.value, true
}

// setToCache inserts, evicting the oldest-inserted entry at capacity.
func (s *NotificationService) setToCache(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opts.Enabled {
		return
	}
	if ttl <= 0 {
		ttl = s.opts.TTL
	}
	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.opts.MaxSize {
		if len(s.order) > 0 {
			oldest := s.order[0]
			s.removeKeyLocked(oldest)
			if s.metrics != nil {
				s.metrics.RecordCacheEviction()
			}
		}
	}
	if _, exists := s.entries[key]; !exists {
		s.order = append(s.order, key)
	}
	s.entries[key] = cacheEntry{value: value, timestamp: time.Now(), ttl: ttl}
}

func (s *NotificationService) removeKeyLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Invalidate clears all cached entries, or only those whose key starts with
// prefix.
func (s *NotificationService) Invalidate(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prefix == "" {
		s.entries = make(map[string]cacheEntry)
		s.order = nil
		return
	}
	kept := s.order[:0]
	for _, key := range s.order {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(s.entries, key)
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
}

// CacheStats reports the cached keys in insertion order.
func (s *NotificationService) CacheStats() (int, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return len(s.entries), keys
}

// Configure replaces the cache options at runtime. Disabling skips both
// read and write paths without dropping already-cached entries.
func (s *NotificationService) Configure(opts CacheOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.TTL <= 0 {
		opts.TTL = s.opts.TTL
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = s.opts.MaxSize
	}
	s.opts = opts
}

// Options returns the current cache options.
func (s *NotificationService) Options() CacheOptions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opts
}

func listCacheKey(params repository.ListParams) string {
	return fmt.Sprintf("notifications_p%d_s%d_l%d_%s", params.PageNo, params.PageSize, params.Level, params.Scope)
}
