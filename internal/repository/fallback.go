package repository

import "github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"

// FallbackNotifications is the fixed offline dataset served when the school
// server is unreachable or reports failure. It keeps the workbench rendering
// something sensible instead of an empty error page.
func FallbackNotifications() []models.NotificationRecord {
	return []models.NotificationRecord{
		{
			ID:            1,
			Title:         "期末考试时间安排通知",
			Content:       "2025年春季学期期末考试将于1月15日开始，请各位同学做好准备...",
			Level:         models.LevelImportant,
			LevelColor:    models.LevelColor(models.LevelImportant),
			PublisherName: "教务处",
			PublisherRole: models.RoleAcademicAdmin,
			CreateTime:    "2025-01-08 10:00:00",
			Scope:         models.ScopeSchoolWide,
			Status:        "PUBLISHED",
		},
		{
			ID:            2,
			Title:         "校园安全提醒",
			Content:       "近期天气寒冷，路面结冰，请同学们注意出行安全...",
			Level:         models.LevelEmergency,
			LevelColor:    models.LevelColor(models.LevelEmergency),
			PublisherName: "保卫处",
			PublisherRole: models.RolePrincipal,
			CreateTime:    "2025-01-08 08:00:00",
			Scope:         models.ScopeSchoolWide,
			Status:        "PUBLISHED",
		},
		{
			ID:            3,
			Title:         "图书馆开放时间调整",
			Content:       "因系统维护，图书馆开放时间临时调整为9:00-21:00...",
			Level:         models.LevelNormal,
			LevelColor:    models.LevelColor(models.LevelNormal),
			PublisherName: "图书馆",
			PublisherRole: models.RoleSystemAdmin,
			CreateTime:    "2025-01-07 09:00:00",
			Scope:         models.ScopeSchoolWide,
			Status:        "PUBLISHED",
		},
	}
}
