package models

import (
	"strings"
	"time"
)

// Notification levels, mirroring the school server's level enum.
const (
	LevelEmergency = 1
	LevelImportant = 2
	LevelNormal    = 3
	LevelReminder  = 4
)

// NotificationScope defines who a notification targets.
type NotificationScope string

const (
	ScopeSchoolWide NotificationScope = "SCHOOL_WIDE"
	ScopeDepartment NotificationScope = "DEPARTMENT"
	ScopeGrade      NotificationScope = "GRADE"
	ScopeClass      NotificationScope = "CLASS"
)

// PublisherRole identifies who published a notification. SYSTEM_ADMIN and
// SYSTEM publishers feed the system announcement board.
type PublisherRole string

const (
	RoleSystemAdmin   PublisherRole = "SYSTEM_ADMIN"
	RoleSystem        PublisherRole = "SYSTEM"
	RolePrincipal     PublisherRole = "PRINCIPAL"
	RoleAcademicAdmin PublisherRole = "ACADEMIC_ADMIN"
	RoleTeacher       PublisherRole = "TEACHER"
)

// NotificationRecord is a single feed entry as served by the school server.
// All fields except IsRead are server truth; IsRead is derived per user at
// categorization time.
type NotificationRecord struct {
	ID            int64             `json:"id"`
	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Summary       string            `json:"summary,omitempty"`
	Level         int               `json:"level"`
	LevelColor    string            `json:"levelColor,omitempty"`
	PublisherName string            `json:"publisherName"`
	PublisherRole PublisherRole     `json:"publisherRole"`
	CreateTime    string            `json:"createTime"`
	Scope         NotificationScope `json:"scope"`
	Status        string            `json:"status"`
	IsRead        bool              `json:"isRead"`
}

var createTimeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreatedAt parses the record's create time. Unparsable values yield the
// zero time, which orders them last under the feed's descending sorts.
func (n NotificationRecord) CreatedAt() time.Time {
	raw := strings.TrimSpace(n.CreateTime)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range createTimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// LevelColor returns the portal display color for a level.
func LevelColor(level int) string {
	switch level {
	case LevelEmergency:
		return "#F56C6C"
	case LevelImportant:
		return "#E6A23C"
	case LevelNormal:
		return "#409EFF"
	case LevelReminder:
		return "#67C23A"
	default:
		return "#909399"
	}
}

// LevelText returns the portal display label for a level.
func LevelText(level int) string {
	switch level {
	case LevelEmergency:
		return "紧急"
	case LevelImportant:
		return "重要"
	case LevelNormal:
		return "常规"
	case LevelReminder:
		return "提醒"
	default:
		return "未知"
	}
}

// CategorizedView holds the six derived display buckets. It is recomputed
// from (records, read-state) and never persisted.
type CategorizedView struct {
	UnreadPriority      []NotificationRecord `json:"unreadPriority"`
	ReadArchive         []NotificationRecord `json:"readArchive"`
	Level4Messages      []NotificationRecord `json:"level4Messages"`
	SystemAnnouncements []NotificationRecord `json:"systemAnnouncements"`
	Emergency           []NotificationRecord `json:"emergencyNotifications"`
	Important           []NotificationRecord `json:"importantNotifications"`
}

// EmptyCategorizedView returns a view with all buckets allocated empty, the
// degraded shape served when categorization fails.
func EmptyCategorizedView() CategorizedView {
	return CategorizedView{
		UnreadPriority:      []NotificationRecord{},
		ReadArchive:         []NotificationRecord{},
		Level4Messages:      []NotificationRecord{},
		SystemAnnouncements: []NotificationRecord{},
		Emergency:           []NotificationRecord{},
		Important:           []NotificationRecord{},
	}
}

// UnreadStats summarises currently-unread, visible records.
type UnreadStats struct {
	Total     int `json:"total"`
	Emergency int `json:"emergency"`
	Important int `json:"important"`
	Level4    int `json:"level4"`
}

// Notice is a one-shot, non-blocking user-visible warning, the server-side
// analog of the web client's toast messages.
type Notice struct {
	ID       string    `json:"id"`
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	IssuedAt time.Time `json:"issued_at"`
}

// Pagination describes a page of results.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}
