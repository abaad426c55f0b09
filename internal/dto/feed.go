package dto

import "github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"

// FeedListQuery captures GET /notifications query parameters.
type FeedListQuery struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
	Level      int    `form:"level" binding:"omitempty,min=1,max=4"`
	Scope      string `form:"scope"`
	ReadStatus string `form:"readStatus" binding:"omitempty,oneof=all read unread"`
	Keyword    string `form:"keyword"`
	From       string `form:"from"`
	To         string `form:"to"`
	Sort       string `form:"sort" binding:"omitempty,oneof=time_desc time_asc level_then_time publisher"`
	Refresh    bool   `form:"refresh"`
}

// BulkReadRequest captures POST /notifications/bulk-read payload.
type BulkReadRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// CacheConfigRequest captures PATCH /cache/config payload. Nil fields keep
// the current value.
type CacheConfigRequest struct {
	Enabled *bool  `json:"enabled"`
	TTLMs   *int64 `json:"ttlMs" binding:"omitempty,min=1"`
	MaxSize *int   `json:"maxSize" binding:"omitempty,min=1"`
}

// CacheStatsResponse reports cache occupancy.
type CacheStatsResponse struct {
	Size    int      `json:"size"`
	MaxSize int      `json:"maxSize"`
	TTLMs   int64    `json:"ttlMs"`
	Enabled bool     `json:"enabled"`
	Keys    []string `json:"keys"`
}

// FeedViewsResponse bundles the categorized buckets with unread counters
// and the session's last sync time.
type FeedViewsResponse struct {
	Views      models.CategorizedView `json:"views"`
	Stats      models.UnreadStats     `json:"stats"`
	LastSyncMs int64                  `json:"lastSyncMs"`
}

// ReadStateResponse is the persisted read-state snapshot for the current
// user.
type ReadStateResponse struct {
	UserID string                   `json:"userId"`
	State  models.ReadStateSnapshot `json:"state"`
}

// DevLoginRequest captures the development token mint payload.
type DevLoginRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// DevLoginResponse carries the minted token.
type DevLoginResponse struct {
	Token string `json:"token"`
}
