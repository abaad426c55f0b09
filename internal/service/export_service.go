package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	appErrors "github.com/zhenzhu143321/hxci-campus-portal-system/pkg/errors"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/export"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/storage"
)

// Export formats accepted by the archive export endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

type exportRequest struct {
	UserID string `validate:"max=64"`
	Format string `validate:"required,export_format"`
}

// ExportService renders a user's read archive to downloadable files.
type ExportService struct {
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	validate := validator.New()
	validate.RegisterValidation("export_format", func(fl validator.FieldLevel) bool { //nolint:errcheck
		switch fl.Field().String() {
		case ExportFormatCSV, ExportFormatPDF:
			return true
		}
		return false
	})
	return &ExportService{
		storage:   store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

var archiveExportHeaders = []string{"ID", "Title", "Level", "Publisher", "Scope", "Published At", "Status"}

// Generate renders the archive records in the requested format, stores the
// file and returns a signed download URL.
func (s *ExportService) Generate(userID, format string, records []models.NotificationRecord) (*ExportResult, error) {
	if err := s.validator.Struct(exportRequest{UserID: userID, Format: format}); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if userID == "" {
		userID = models.GuestUserKey
	}

	dataset := buildArchiveDataset(records)

	var payload []byte
	var err error
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Notification Archive %s", userID))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	filename := buildExportFilename(userID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(userID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/archive/export/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string) (userID, relPath string, err error) {
	userID, relPath, _, err = s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid download token")
	}
	return userID, relPath, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func buildArchiveDataset(records []models.NotificationRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		status := "unread"
		if record.IsRead {
			status = "read"
		}
		rows = append(rows, map[string]string{
			"ID":           fmt.Sprintf("%d", record.ID),
			"Title":        record.Title,
			"Level":        models.LevelText(record.Level),
			"Publisher":    record.PublisherName,
			"Scope":        string(record.Scope),
			"Published At": record.CreateTime,
			"Status":       status,
		})
	}
	return export.Dataset{Headers: archiveExportHeaders, Rows: rows}
}

func buildExportFilename(userID, format string) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("archive_%s_%s.%s", sanitizeFilename(userID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "guest"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 64 {
		return result[:64]
	}
	return result
}
