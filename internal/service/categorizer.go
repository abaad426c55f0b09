package service

import (
	"sort"
	"strings"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
)

// ReadStateReader is the read-only slice of read-state the categorizer
// consumes.
type ReadStateReader interface {
	IsRead(id int64) bool
	IsHidden(id int64) bool
	IsClearedFromArchive(record models.NotificationRecord) bool
}

// systemPublisherName is the school server's display name for the system
// account, carried over from the portal's announcement matching rules.
const systemPublisherName = "系统管理员"

// isSystemPublisher applies the portal's announcement heuristic: the
// SYSTEM_ADMIN role, the SYSTEM role under the known system account name, or
// a publisher name that mentions "System". Known to be string-fragile;
// tightening it would silently reclassify existing notifications.
func isSystemPublisher(record models.NotificationRecord) bool {
	if record.PublisherRole == models.RoleSystemAdmin {
		return true
	}
	if record.PublisherRole == models.RoleSystem && record.PublisherName == systemPublisherName {
		return true
	}
	return strings.Contains(record.PublisherName, "System")
}

// Categorize partitions records into the portal's six display buckets in a
// single forward pass. Hidden and archive-cleared records are excluded from
// every bucket. Output records carry the derived IsRead flag; the input
// slice is never mutated.
//
// Bucket rules:
//   - level 1: emergency, plus unreadPriority when unread, else readArchive
//   - level 2-3: important, plus unreadPriority when unread, else readArchive
//   - level 4: level4Messages only while unread; once read it lives solely
//     in readArchive
//   - system publishers below level 4 land in systemAnnouncements, which is
//     then cut to its single most recent entry
//
// Records with a level outside 1-4 join no level bucket but may still
// surface as a system announcement.
func Categorize(records []models.NotificationRecord, state ReadStateReader) models.CategorizedView {
	view := models.EmptyCategorizedView()
	if state == nil {
		state = emptyReadState{}
	}

	for _, record := range records {
		if record.ID == 0 && record.Title == "" {
			// Zero-value rows from a bad upstream page carry no identity.
			continue
		}
		if state.IsHidden(record.ID) || state.IsClearedFromArchive(record) {
			continue
		}

		enriched := record
		enriched.IsRead = state.IsRead(record.ID)

		if isSystemPublisher(record) && record.Level != models.LevelReminder {
			view.SystemAnnouncements = append(view.SystemAnnouncements, enriched)
		}

		switch record.Level {
		case models.LevelEmergency:
			view.Emergency = append(view.Emergency, enriched)
			if enriched.IsRead {
				view.ReadArchive = append(view.ReadArchive, enriched)
			} else {
				view.UnreadPriority = append(view.UnreadPriority, enriched)
			}
		case models.LevelImportant, models.LevelNormal:
			view.Important = append(view.Important, enriched)
			if enriched.IsRead {
				view.ReadArchive = append(view.ReadArchive, enriched)
			} else {
				view.UnreadPriority = append(view.UnreadPriority, enriched)
			}
		case models.LevelReminder:
			if enriched.IsRead {
				view.ReadArchive = append(view.ReadArchive, enriched)
			} else {
				view.Level4Messages = append(view.Level4Messages, enriched)
			}
		}
	}

	sortByLevelThenTime(view.UnreadPriority)
	sortByTimeDesc(view.ReadArchive)
	sortByTimeDesc(view.Level4Messages)

	sortByTimeDesc(view.SystemAnnouncements)
	if len(view.SystemAnnouncements) > 1 {
		view.SystemAnnouncements = view.SystemAnnouncements[:1]
	}

	return view
}

// UnreadStatsFrom derives unread counters from a categorized view, so the
// numbers always match bucket sizes.
func UnreadStatsFrom(view models.CategorizedView) models.UnreadStats {
	stats := models.UnreadStats{
		Level4: len(view.Level4Messages),
	}
	for _, record := range view.UnreadPriority {
		if record.Level == models.LevelEmergency {
			stats.Emergency++
		} else {
			stats.Important++
		}
	}
	stats.Total = len(view.UnreadPriority) + stats.Level4
	return stats
}

// sortByLevelThenTime orders level ascending, then create time descending.
// Stable so equal pairs keep input order.
func sortByLevelThenTime(records []models.NotificationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Level != records[j].Level {
			return records[i].Level < records[j].Level
		}
		return records[i].CreatedAt().After(records[j].CreatedAt())
	})
}

func sortByTimeDesc(records []models.NotificationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt().After(records[j].CreatedAt())
	})
}

// emptyReadState treats everything as unread and visible.
type emptyReadState struct{}

func (emptyReadState) IsRead(int64) bool                                   { return false }
func (emptyReadState) IsHidden(int64) bool                                 { return false }
func (emptyReadState) IsClearedFromArchive(models.NotificationRecord) bool { return false }
