package service

import (
	"sort"
	"strings"
	"time"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
)

// Sort modes accepted by the presenter.
const (
	SortTimeDesc      = "time_desc"
	SortTimeAsc       = "time_asc"
	SortLevelThenTime = "level_then_time"
	SortPublisher     = "publisher"
)

// Read-status filter values.
const (
	ReadStatusAll    = "all"
	ReadStatusRead   = "read"
	ReadStatusUnread = "unread"
)

// FeedFilter narrows the presented list. Zero values mean "no constraint".
type FeedFilter struct {
	Level      int
	Scope      models.NotificationScope
	ReadStatus string
	Keyword    string
	From       time.Time
	To         time.Time
}

// PresentedPage is one page of filtered, sorted notifications.
type PresentedPage struct {
	Records    []models.NotificationRecord `json:"records"`
	Pagination models.Pagination           `json:"pagination"`
}

// FeedPresenter projects a feed session into a filtered, sorted, paginated
// list for the management-style views. It derives everything from the
// session on each call, so it never holds stale records.
type FeedPresenter struct {
	feed *FeedService

	filter   FeedFilter
	sortMode string
	page     int
	pageSize int
}

// NewFeedPresenter constructs a presenter over feed with the default sort
// (newest first) and page size.
func NewFeedPresenter(feed *FeedService, pageSize int) *FeedPresenter {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &FeedPresenter{
		feed:     feed,
		sortMode: SortTimeDesc,
		page:     1,
		pageSize: pageSize,
	}
}

// SetFilter replaces the filter and snaps back to the first page.
func (p *FeedPresenter) SetFilter(filter FeedFilter) {
	p.filter = filter
	p.page = 1
}

// SetSort switches the sort mode, keeping the current page. Unknown modes
// fall back to newest first.
func (p *FeedPresenter) SetSort(mode string) {
	switch mode {
	case SortTimeAsc, SortLevelThenTime, SortPublisher:
		p.sortMode = mode
	default:
		p.sortMode = SortTimeDesc
	}
}

// Filter returns the active filter.
func (p *FeedPresenter) Filter() FeedFilter { return p.filter }

// Page returns the current filtered, sorted page.
func (p *FeedPresenter) Page() PresentedPage {
	filtered := p.filtered()
	p.sortRecords(filtered)

	total := len(filtered)
	totalPages := (total + p.pageSize - 1) / p.pageSize
	if totalPages > 0 && p.page > totalPages {
		p.page = totalPages
	}

	start := (p.page - 1) * p.pageSize
	end := start + p.pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	pageRecords := make([]models.NotificationRecord, end-start)
	copy(pageRecords, filtered[start:end])

	return PresentedPage{
		Records: pageRecords,
		Pagination: models.Pagination{
			Page:       p.page,
			PageSize:   p.pageSize,
			TotalCount: total,
			TotalPages: totalPages,
		},
	}
}

// Next advances one page, clamped to the last.
func (p *FeedPresenter) Next() {
	p.page++
}

// Prev steps back one page, clamped to the first.
func (p *FeedPresenter) Prev() {
	if p.page > 1 {
		p.page--
	}
}

// GoTo jumps to page n. Out-of-range values clamp on the next Page call;
// values below one clamp immediately.
func (p *FeedPresenter) GoTo(n int) {
	if n < 1 {
		n = 1
	}
	p.page = n
}

// OpenDetail returns the record by id from the session and marks it read,
// matching the portal behavior of opening a notification.
func (p *FeedPresenter) OpenDetail(id int64) (*models.NotificationRecord, bool) {
	for _, record := range p.feed.Records() {
		if record.ID == id {
			p.feed.MarkRead(id)
			record.IsRead = true
			return &record, true
		}
	}
	return nil, false
}

// MarkFilteredAsRead marks every record matching the active filter read.
func (p *FeedPresenter) MarkFilteredAsRead() int {
	filtered := p.filtered()
	ids := make([]int64, 0, len(filtered))
	state := p.feed.ReadState()
	for _, record := range filtered {
		if !state.IsRead(record.ID) {
			ids = append(ids, record.ID)
		}
	}
	if len(ids) > 0 {
		p.feed.MarkBulkRead(ids)
	}
	return len(ids)
}

func (p *FeedPresenter) filtered() []models.NotificationRecord {
	state := p.feed.ReadState()
	keyword := strings.ToLower(strings.TrimSpace(p.filter.Keyword))

	var out []models.NotificationRecord
	for _, record := range p.feed.Records() {
		if state.IsHidden(record.ID) {
			continue
		}
		if p.filter.Level > 0 && record.Level != p.filter.Level {
			continue
		}
		if p.filter.Scope != "" && record.Scope != p.filter.Scope {
			continue
		}
		read := state.IsRead(record.ID)
		switch p.filter.ReadStatus {
		case ReadStatusRead:
			if !read {
				continue
			}
		case ReadStatusUnread:
			if read {
				continue
			}
		}
		if keyword != "" && !matchesKeyword(record, keyword) {
			continue
		}
		created := record.CreatedAt()
		if !p.filter.From.IsZero() && created.Before(p.filter.From) {
			continue
		}
		if !p.filter.To.IsZero() && created.After(p.filter.To) {
			continue
		}
		record.IsRead = read
		out = append(out, record)
	}
	return out
}

func matchesKeyword(record models.NotificationRecord, keyword string) bool {
	return strings.Contains(strings.ToLower(record.Title), keyword) ||
		strings.Contains(strings.ToLower(record.Content), keyword) ||
		strings.Contains(strings.ToLower(record.Summary), keyword) ||
		strings.Contains(strings.ToLower(record.PublisherName), keyword)
}

func (p *FeedPresenter) sortRecords(records []models.NotificationRecord) {
	switch p.sortMode {
	case SortTimeAsc:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CreatedAt().Before(records[j].CreatedAt())
		})
	case SortLevelThenTime:
		sortByLevelThenTime(records)
	case SortPublisher:
		sort.SliceStable(records, func(i, j int) bool {
			if records[i].PublisherName != records[j].PublisherName {
				return records[i].PublisherName < records[j].PublisherName
			}
			return records[i].CreatedAt().After(records[j].CreatedAt())
		})
	default:
		sortByTimeDesc(records)
	}
}
