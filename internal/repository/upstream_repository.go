package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/config"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
)

// ListParams filter the upstream notification list.
type ListParams struct {
	PageNo   int
	PageSize int
	Level    int
	Scope    string
}

// ListResult is a page of notifications from the school server.
type ListResult struct {
	Records []models.NotificationRecord
	Total   int
}

// UpstreamRepository calls the legacy school server's notification endpoints
// and normalises its historically inconsistent response shapes.
type UpstreamRepository struct {
	baseURL    string
	listPath   string
	detailPath string
	pageSize   int
	client     *http.Client
	logger     *zap.Logger
}

// NewUpstreamRepository constructs the repository.
func NewUpstreamRepository(cfg config.UpstreamConfig, client *http.Client, logger *zap.Logger) *UpstreamRepository {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	return &UpstreamRepository{
		baseURL:    cfg.BaseURL,
		listPath:   cfg.ListPath,
		detailPath: cfg.DetailPath,
		pageSize:   pageSize,
		client:     client,
		logger:     logger,
	}
}

// upstreamEnvelope is the school server's response wrapper. Older endpoints
// return {code, data, msg}; newer ones {success, data, message}.
type upstreamEnvelope struct {
	Code    *int            `json:"code"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
}

func (e upstreamEnvelope) ok() bool {
	if e.Code != nil {
		return *e.Code == 0
	}
	if e.Success != nil {
		return *e.Success
	}
	return false
}

func (e upstreamEnvelope) errorMessage() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Message
}

// upstreamRecord is a raw notification row; field names differ between the
// mock and real school APIs (scope vs targetScope, total vs totalCount).
type upstreamRecord struct {
	ID            int64  `json:"id"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Summary       string `json:"summary"`
	Level         int    `json:"level"`
	PublisherName string `json:"publisherName"`
	PublisherRole string `json:"publisherRole"`
	CreateTime    string `json:"createTime"`
	Scope         string `json:"scope"`
	TargetScope   string `json:"targetScope"`
	Status        string `json:"status"`
}

type upstreamListData struct {
	List          []upstreamRecord `json:"list"`
	Notifications []upstreamRecord `json:"notifications"`
	Records       []upstreamRecord `json:"records"`
	Total         int              `json:"total"`
	TotalCount    int              `json:"totalCount"`
}

// List fetches a page of notifications. Transport errors and server-reported
// failures both surface as ErrUpstream; the service layer decides fallback.
func (r *UpstreamRepository) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := url.Values{}
	pageNo := params.PageNo
	if pageNo <= 0 {
		pageNo = 1
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = r.pageSize
	}
	query.Set("pageNo", strconv.Itoa(pageNo))
	query.Set("pageSize", strconv.Itoa(pageSize))
	if params.Level > 0 {
		query.Set("level", strconv.Itoa(params.Level))
	}
	if params.Scope != "" {
		query.Set("scope", params.Scope)
	}

	envelope, err := r.get(ctx, r.listPath, query)
	if err != nil {
		return nil, err
	}

	var data upstreamListData
	if len(envelope.Data) > 0 {
		// data may be a bare array or an object with one of three list keys.
		if err := json.Unmarshal(envelope.Data, &data.List); err != nil {
			if err := json.Unmarshal(envelope.Data, &data); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unrecognised list payload")
			}
		}
	}

	raw := data.List
	if len(raw) == 0 && len(data.Notifications) > 0 {
		raw = data.Notifications
	}
	if len(raw) == 0 && len(data.Records) > 0 {
		raw = data.Records
	}

	records := make([]models.NotificationRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, normalizeRecord(item))
	}

	total := data.Total
	if total == 0 {
		total = data.TotalCount
	}
	if total == 0 {
		total = len(records)
	}

	return &ListResult{Records: records, Total: total}, nil
}

// Detail fetches a single notification by id.
func (r *UpstreamRepository) Detail(ctx context.Context, id int64) (*models.NotificationRecord, error) {
	query := url.Values{}
	query.Set("id", strconv.FormatInt(id, 10))

	envelope, err := r.get(ctx, r.detailPath, query)
	if err != nil {
		return nil, err
	}

	var raw upstreamRecord
	if err := json.Unmarshal(envelope.Data, &raw); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "unrecognised detail payload")
	}
	if raw.ID == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
	}

	record := normalizeRecord(raw)
	return &record, nil
}

func (r *UpstreamRepository) get(ctx context.Context, path string, query url.Values) (*upstreamEnvelope, error) {
	endpoint := r.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "build upstream request")
	}
	if token, ok := ctx.Value(authTokenKey{}).(string); ok && token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Context cancellation keeps its own reason so dedup can swallow it.
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "upstream request cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "upstream request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, "upstream request cancelled")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "read upstream response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("upstream returned %d", resp.StatusCode))
	}

	var envelope upstreamEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode upstream response")
	}
	if !envelope.ok() {
		msg := envelope.errorMessage()
		if msg == "" {
			msg = "upstream reported failure"
		}
		r.logger.Warn("upstream rejected request", zap.String("path", path), zap.String("message", msg))
		return nil, appErrors.Clone(appErrors.ErrUpstream, msg)
	}

	return &envelope, nil
}

func normalizeRecord(raw upstreamRecord) models.NotificationRecord {
	scope := raw.TargetScope
	if scope == "" {
		scope = raw.Scope
	}
	return models.NotificationRecord{
		ID:            raw.ID,
		Title:         raw.Title,
		Content:       raw.Content,
		Summary:       raw.Summary,
		Level:         raw.Level,
		LevelColor:    models.LevelColor(raw.Level),
		PublisherName: raw.PublisherName,
		PublisherRole: models.PublisherRole(raw.PublisherRole),
		CreateTime:    raw.CreateTime,
		Scope:         models.NotificationScope(scope),
		Status:        raw.Status,
	}
}

type authTokenKey struct{}

// WithAuthToken stores the caller's bearer token for upstream requests.
func WithAuthToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, authTokenKey{}, token)
}
