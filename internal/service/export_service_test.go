package service

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhenzhu143321/hxci-campus-portal-system/internal/models"
	"github.com/zhenzhu143321/hxci-campus-portal-system/pkg/storage"
)

type fakeFileStorage struct {
	saved map[string][]byte
}

func (f *fakeFileStorage) Save(filename string, data []byte) (string, error) {
	if f.saved == nil {
		f.saved = map[string][]byte{}
	}
	f.saved[filename] = data
	return filename, nil
}

func (f *fakeFileStorage) Open(string) (*os.File, error) { return nil, os.ErrNotExist }
func (f *fakeFileStorage) Delete(string) error           { return nil }
func (f *fakeFileStorage) CleanupOlderThan(time.Duration) ([]string, error) {
	return nil, nil
}

func newExportFixture() (*ExportService, *fakeFileStorage) {
	store := &fakeFileStorage{}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewExportService(store, signer, ExportConfig{APIPrefix: "/api/v1"}, nil)
	return svc, store
}

func archiveRecords() []models.NotificationRecord {
	rec := record(1, 2, "2025-01-10 09:00:00")
	rec.IsRead = true
	return []models.NotificationRecord{rec}
}

func TestExportGenerateCSV(t *testing.T) {
	svc, store := newExportFixture()

	result, err := svc.Generate("1001", ExportFormatCSV, archiveRecords())
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/archive/export/"))
	assert.True(t, strings.HasSuffix(result.RelativePath, ".csv"))

	payload := string(store.saved[result.RelativePath])
	assert.Contains(t, payload, "通知")
	assert.Contains(t, payload, "read")

	userID, relPath, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "1001", userID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGeneratePDF(t *testing.T) {
	svc, store := newExportFixture()

	result, err := svc.Generate("", ExportFormatPDF, archiveRecords())
	require.NoError(t, err)
	assert.Contains(t, result.RelativePath, "archive_guest_")

	payload := store.saved[result.RelativePath]
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))

	// Guest sessions sign under the guest namespace.
	userID, relPath, err := svc.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, models.GuestUserKey, userID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportGenerateRejectsUnknownFormat(t *testing.T) {
	svc, _ := newExportFixture()

	_, err := svc.Generate("1001", "xlsx", archiveRecords())
	require.Error(t, err)
}

func TestExportParseTokenRejectsTampering(t *testing.T) {
	svc, _ := newExportFixture()

	result, err := svc.Generate("1001", ExportFormatCSV, archiveRecords())
	require.NoError(t, err)

	_, _, err = svc.ParseToken(result.Token + "x")
	require.Error(t, err)
}
