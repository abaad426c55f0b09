package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/repository"
)

func newPresenterFixture(t *testing.T, records []models.NotificationRecord, pageSize int) (*FeedPresenter, *FeedService) {
	t.Helper()
	feed := newFeedFixture(t, &fakeUpstream{records: records})
	require.NoError(t, feed.Refresh(context.Background(), repository.ListParams{PageNo: 1}, true))
	return NewFeedPresenter(feed, pageSize), feed
}

func presenterRecords(n int) []models.NotificationRecord {
	records := make([]models.NotificationRecord, 0, n)
	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		rec := record(int64(i), (i%4)+1, base.AddDate(0, 0, i).Format("2006-01-02 15:04:05"))
		records = append(records, rec)
	}
	return records
}

func TestPresenterDefaultSortNewestFirst(t *testing.T) {
	presenter, _ := newPresenterFixture(t, presenterRecords(3), 10)

	page := presenter.Page()
	require.Len(t, page.Records, 3)
	assert.Equal(t, int64(3), page.Records[0].ID)
	assert.Equal(t, int64(1), page.Records[2].ID)
}

func TestPresenterSortModes(t *testing.T) {
	records := []models.NotificationRecord{
		record(1, 3, "2025-01-10 09:00:00"),
		record(2, 1, "2025-01-11 09:00:00"),
		record(3, 1, "2025-01-12 09:00:00"),
	}
	presenter, _ := newPresenterFixture(t, records, 10)

	presenter.SetSort(SortTimeAsc)
	page := presenter.Page()
	assert.Equal(t, int64(1), page.Records[0].ID)

	presenter.SetSort(SortLevelThenTime)
	page = presenter.Page()
	assert.Equal(t, int64(3), page.Records[0].ID)
	assert.Equal(t, int64(2), page.Records[1].ID)
	assert.Equal(t, int64(1), page.Records[2].ID)

	presenter.SetSort("bogus")
	page = presenter.Page()
	assert.Equal(t, int64(3), page.Records[0].ID)
}

func TestPresenterSortByPublisher(t *testing.T) {
	a := record(1, 2, "2025-01-10 09:00:00")
	a.PublisherName = "学生处"
	b := record(2, 2, "2025-01-11 09:00:00")
	b.PublisherName = "教务处"
	c := record(3, 2, "2025-01-12 09:00:00")
	c.PublisherName = "学生处"
	presenter, _ := newPresenterFixture(t, []models.NotificationRecord{a, b, c}, 10)

	// Code-point order: 学 (U+5B66) sorts before 教 (U+6559); equal
	// publishers fall back to newest first.
	presenter.SetSort(SortPublisher)
	page := presenter.Page()
	assert.Equal(t, int64(3), page.Records[0].ID)
	assert.Equal(t, int64(1), page.Records[1].ID)
	assert.Equal(t, "教务处", page.Records[2].PublisherName)
}

func TestPresenterFilters(t *testing.T) {
	records := []models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
		record(2, 2, "2025-01-11 09:00:00"),
		record(3, 2, "2025-01-12 09:00:00"),
	}
	records[2].Title = "期末考试安排"
	presenter, feed := newPresenterFixture(t, records, 10)

	presenter.SetFilter(FeedFilter{Level: 2})
	assert.Equal(t, 2, presenter.Page().Pagination.TotalCount)

	presenter.SetFilter(FeedFilter{Keyword: "期末"})
	page := presenter.Page()
	require.Equal(t, 1, page.Pagination.TotalCount)
	assert.Equal(t, int64(3), page.Records[0].ID)

	feed.MarkRead(1)
	presenter.SetFilter(FeedFilter{ReadStatus: ReadStatusUnread})
	assert.Equal(t, 2, presenter.Page().Pagination.TotalCount)
	presenter.SetFilter(FeedFilter{ReadStatus: ReadStatusRead})
	page = presenter.Page()
	require.Equal(t, 1, page.Pagination.TotalCount)
	assert.True(t, page.Records[0].IsRead)

	feed.Hide(2)
	presenter.SetFilter(FeedFilter{})
	assert.Equal(t, 2, presenter.Page().Pagination.TotalCount)
}

func TestPresenterDateRangeFilter(t *testing.T) {
	presenter, _ := newPresenterFixture(t, presenterRecords(5), 10)

	presenter.SetFilter(FeedFilter{
		From: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	})
	page := presenter.Page()
	assert.Equal(t, 2, page.Pagination.TotalCount)
}

func TestPresenterPagination(t *testing.T) {
	presenter, _ := newPresenterFixture(t, presenterRecords(7), 3)

	page := presenter.Page()
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, 7, page.Pagination.TotalCount)
	assert.Len(t, page.Records, 3)

	presenter.Next()
	assert.Equal(t, 2, presenter.Page().Pagination.Page)

	presenter.GoTo(99)
	page = presenter.Page()
	assert.Equal(t, 3, page.Pagination.Page)
	assert.Len(t, page.Records, 1)

	presenter.Prev()
	presenter.Prev()
	presenter.Prev()
	presenter.Prev()
	assert.Equal(t, 1, presenter.Page().Pagination.Page)

	// A new filter snaps back to the first page.
	presenter.GoTo(3)
	presenter.SetFilter(FeedFilter{Level: 1})
	assert.Equal(t, 1, presenter.Page().Pagination.Page)
}

func TestPresenterEmptyResultHasZeroPages(t *testing.T) {
	presenter, _ := newPresenterFixture(t, presenterRecords(3), 3)

	presenter.SetFilter(FeedFilter{Keyword: "不存在"})
	page := presenter.Page()
	assert.Empty(t, page.Records)
	assert.Zero(t, page.Pagination.TotalPages)
	assert.Zero(t, page.Pagination.TotalCount)
}

func TestPresenterOpenDetailMarksRead(t *testing.T) {
	presenter, feed := newPresenterFixture(t, presenterRecords(2), 10)

	rec, ok := presenter.OpenDetail(1)
	require.True(t, ok)
	assert.True(t, rec.IsRead)
	assert.True(t, feed.ReadState().IsRead(1))

	_, ok = presenter.OpenDetail(999)
	assert.False(t, ok)
}

func TestPresenterMarkFilteredAsRead(t *testing.T) {
	records := []models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
		record(2, 2, "2025-01-11 09:00:00"),
		record(3, 1, "2025-01-12 09:00:00"),
	}
	presenter, feed := newPresenterFixture(t, records, 10)

	presenter.SetFilter(FeedFilter{Level: 2})
	marked := presenter.MarkFilteredAsRead()
	assert.Equal(t, 2, marked)
	assert.True(t, feed.ReadState().IsRead(1))
	assert.True(t, feed.ReadState().IsRead(2))
	assert.False(t, feed.ReadState().IsRead(3))

	// Already-read records add nothing on a second pass.
	assert.Equal(t, 0, presenter.MarkFilteredAsRead())
}
