package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
)

type fakeReadState struct {
	read    map[int64]bool
	hidden  map[int64]bool
	cleared bool
}

func (f *fakeReadState) IsRead(id int64) bool   { return f.read[id] }
func (f *fakeReadState) IsHidden(id int64) bool { return f.hidden[id] }
func (f *fakeReadState) IsClearedFromArchive(record models.NotificationRecord) bool {
	return f.cleared && f.read[record.ID]
}

func newFakeReadState() *fakeReadState {
	return &fakeReadState{read: map[int64]bool{}, hidden: map[int64]bool{}}
}

func record(id int64, level int, createTime string) models.NotificationRecord {
	return models.NotificationRecord{
		ID:            id,
		Title:         "通知",
		Content:       "内容",
		Level:         level,
		PublisherName: "教务处",
		PublisherRole: models.RoleAcademicAdmin,
		CreateTime:    createTime,
	}
}

func TestCategorizeUnreadPriorityOrdering(t *testing.T) {
	records := []models.NotificationRecord{
		record(1, 3, "2025-01-10 09:00:00"),
		record(2, 1, "2025-01-09 09:00:00"),
		record(3, 2, "2025-01-11 09:00:00"),
		record(4, 1, "2025-01-12 09:00:00"),
	}

	view := Categorize(records, newFakeReadState())

	require.Len(t, view.UnreadPriority, 4)
	gotIDs := []int64{view.UnreadPriority[0].ID, view.UnreadPriority[1].ID, view.UnreadPriority[2].ID, view.UnreadPriority[3].ID}
	// Level ascending, newest first within a level.
	assert.Equal(t, []int64{4, 2, 3, 1}, gotIDs)
}

func TestCategorizeReadMovesToArchive(t *testing.T) {
	state := newFakeReadState()
	state.read[1] = true

	view := Categorize([]models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
		record(2, 4, "2025-01-10 10:00:00"),
	}, state)

	assert.Empty(t, view.UnreadPriority)
	require.Len(t, view.ReadArchive, 1)
	assert.Equal(t, int64(1), view.ReadArchive[0].ID)
	assert.True(t, view.ReadArchive[0].IsRead)
	require.Len(t, view.Level4Messages, 1)
	assert.Equal(t, int64(2), view.Level4Messages[0].ID)
}

func TestCategorizeLevel4UnreadOnly(t *testing.T) {
	state := newFakeReadState()
	state.read[2] = true

	view := Categorize([]models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
		record(2, 4, "2025-01-10 10:00:00"),
	}, state)

	require.Len(t, view.UnreadPriority, 1)
	assert.Equal(t, int64(1), view.UnreadPriority[0].ID)
	assert.Empty(t, view.Level4Messages)

	stats := UnreadStatsFrom(view)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Emergency)
	assert.Equal(t, 0, stats.Level4)
}

func TestCategorizeHiddenExcludedEverywhere(t *testing.T) {
	state := newFakeReadState()
	state.hidden[1] = true

	view := Categorize([]models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
	}, state)

	assert.Empty(t, view.UnreadPriority)
	assert.Empty(t, view.Emergency)
	assert.Empty(t, view.ReadArchive)
}

func TestCategorizeArchiveClearWatermark(t *testing.T) {
	state := newFakeReadState()
	state.read[1] = true
	state.cleared = true

	view := Categorize([]models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
		record(2, 2, "2025-01-10 10:00:00"),
	}, state)

	// Cleared read records vanish; unread stay visible.
	assert.Empty(t, view.ReadArchive)
	require.Len(t, view.UnreadPriority, 1)
	assert.Equal(t, int64(2), view.UnreadPriority[0].ID)

	// Marking the survivor read after the clear keeps it out of the archive
	// under live watermark evaluation.
	state.read[2] = true
	view = Categorize([]models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
		record(2, 2, "2025-01-10 10:00:00"),
	}, state)
	assert.Empty(t, view.ReadArchive)
	assert.Empty(t, view.UnreadPriority)
}

func TestCategorizeSystemAnnouncements(t *testing.T) {
	sysAdmin := record(1, 3, "2025-01-10 09:00:00")
	sysAdmin.PublisherRole = models.RoleSystemAdmin
	sysAdmin.PublisherName = "教务系统"

	sysNamed := record(2, 3, "2025-01-11 09:00:00")
	sysNamed.PublisherRole = models.RoleSystem
	sysNamed.PublisherName = "系统管理员"

	sysEnglish := record(3, 3, "2025-01-12 09:00:00")
	sysEnglish.PublisherRole = ""
	sysEnglish.PublisherName = "Portal System Bot"

	sysLevel4 := record(4, 4, "2025-01-13 09:00:00")
	sysLevel4.PublisherRole = models.RoleSystemAdmin

	plain := record(5, 3, "2025-01-14 09:00:00")

	view := Categorize([]models.NotificationRecord{sysAdmin, sysNamed, sysEnglish, sysLevel4, plain}, newFakeReadState())

	// Only the newest announcement is kept, and level 4 system posts route
	// to the message bucket instead.
	require.Len(t, view.SystemAnnouncements, 1)
	assert.Equal(t, int64(3), view.SystemAnnouncements[0].ID)
	require.Len(t, view.Level4Messages, 1)
	assert.Equal(t, int64(4), view.Level4Messages[0].ID)
}

func TestCategorizeEmergencyAndImportantBuckets(t *testing.T) {
	state := newFakeReadState()
	state.read[2] = true

	view := Categorize([]models.NotificationRecord{
		record(1, 1, "2025-01-10 09:00:00"),
		record(2, 1, "2025-01-11 09:00:00"),
		record(3, 2, "2025-01-12 09:00:00"),
	}, state)

	// Level buckets keep read records; the unread split does not.
	assert.Len(t, view.Emergency, 2)
	assert.Len(t, view.Important, 1)
	assert.Len(t, view.UnreadPriority, 2)
	require.Len(t, view.ReadArchive, 1)
	assert.Equal(t, int64(2), view.ReadArchive[0].ID)
}

func TestCategorizeSkipsZeroValueRecords(t *testing.T) {
	view := Categorize([]models.NotificationRecord{
		{},
		record(1, 2, "2025-01-10 09:00:00"),
	}, newFakeReadState())

	assert.Len(t, view.UnreadPriority, 1)
}

func TestCategorizeNilStateTreatedAsEmpty(t *testing.T) {
	view := Categorize([]models.NotificationRecord{
		record(1, 2, "2025-01-10 09:00:00"),
	}, nil)

	assert.Len(t, view.UnreadPriority, 1)
	assert.Empty(t, view.ReadArchive)
}
