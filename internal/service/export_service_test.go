package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
	"github.com/pepschool/asset-insight-api/pkg/storage"
)

type fakeDocumentProvider struct {
	doc    *models.SchoolDocument
	err    error
	claims *models.JWTClaims
}

func (p *fakeDocumentProvider) DocumentFor(ctx context.Context, claims *models.JWTClaims) (*models.SchoolDocument, error) {
	p.claims = claims
	if p.err != nil {
		return nil, p.err
	}
	return p.doc, nil
}

func exportTestDocument() *models.SchoolDocument {
	low := 58.3
	high := 81.2
	return &models.SchoolDocument{
		AtRisk: []models.AtRiskFinding{
			{
				StudentName:  "Binu",
				ClassSection: "6-A",
				FailingCount: 2,
				FailingSubjects: []models.SubjectScore{
					{Subject: "English", Percentage: 44.0},
					{Subject: "Maths", Percentage: 50.0},
				},
			},
		},
		Matrix: models.PerformanceMatrix{
			Classes:  []string{"3-A", "6-A"},
			Subjects: []string{"English", "Maths"},
			Cells: [][]*float64{
				{nil, &low},
				{&high, nil},
			},
		},
	}
}

func newTestExportService(t *testing.T, provider documentProvider) *ExportService {
	t.Helper()
	fs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	return NewExportService(provider, fs, signer, cfg, zap.NewNop(), nil, nil)
}

func TestGenerateAtRiskCSV(t *testing.T) {
	provider := &fakeDocumentProvider{doc: exportTestDocument()}
	svc := newTestExportService(t, provider)
	claims := &models.JWTClaims{Role: models.RoleMiddle, AllowedClasses: []string{"6-A"}}

	result, err := svc.Generate(context.Background(), claims, models.ExportRequest{
		Kind:   models.ExportKindAtRisk,
		Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, models.ExportKindAtRisk, result.Kind)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download/"))
	assert.True(t, result.ExpiresAt.After(time.Now()))
	assert.Same(t, claims, provider.claims)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "Binu")
	assert.Contains(t, content, "English (44.0%); Maths (50.0%)")
}

func TestGenerateMatrixCSVMarksMissingCells(t *testing.T) {
	svc := newTestExportService(t, &fakeDocumentProvider{doc: exportTestDocument()})

	result, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKindMatrix,
		Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)

	content := string(raw)
	assert.Contains(t, content, "N/A")
	assert.Contains(t, content, "58.3")
	assert.Contains(t, content, "81.2")
}

func TestGeneratePDF(t *testing.T) {
	svc := newTestExportService(t, &fakeDocumentProvider{doc: exportTestDocument()})

	result, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKindAtRisk,
		Format: models.ExportFormatPDF,
	})
	require.NoError(t, err)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestGenerateRejectsUnknownKind(t *testing.T) {
	svc := newTestExportService(t, &fakeDocumentProvider{doc: exportTestDocument()})

	_, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKind("grades"),
		Format: models.ExportFormatCSV,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGeneratePropagatesDocumentError(t *testing.T) {
	svc := newTestExportService(t, &fakeDocumentProvider{err: appErrors.Clone(appErrors.ErrForbidden, "nope")})

	_, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKindAtRisk,
		Format: models.ExportFormatCSV,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	svc := newTestExportService(t, &fakeDocumentProvider{doc: exportTestDocument()})

	result, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKindWeaknesses,
		Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)

	id, relPath, expiresAt, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, result.ID, id)
	assert.Equal(t, result.RelativePath, relPath)
	assert.WithinDuration(t, result.ExpiresAt, expiresAt, time.Second)

	_, _, _, err = svc.ParseToken(result.Token+"x", false)
	assert.Error(t, err)
}

func TestCleanupRemovesExpiredExports(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-test-secret", time.Hour)
	svc := NewExportService(&fakeDocumentProvider{doc: exportTestDocument()}, fs, signer,
		ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop(), nil, nil)

	result, err := svc.Generate(context.Background(), nil, models.ExportRequest{
		Kind:   models.ExportKindAtRisk,
		Format: models.ExportFormatCSV,
	})
	require.NoError(t, err)

	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, result.RelativePath), stale, stale))

	removed, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Contains(t, removed, result.RelativePath)

	_, err = svc.Open(result.RelativePath)
	assert.Error(t, err)
}
