package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
	"github.com/pepschool/asset-insight-api/pkg/export"
	"github.com/pepschool/asset-insight-api/pkg/storage"
)

type documentProvider interface {
	DocumentFor(ctx context.Context, claims *models.JWTClaims) (*models.SchoolDocument, error)
}

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

// ExportService renders findings tables into downloadable CSV or PDF files.
type ExportService struct {
	documents documentProvider
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(documents documentProvider, fs fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		documents: documents,
		storage:   fs,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate renders the requested table for the caller's scope and stores the
// file, returning a signed download reference.
func (s *ExportService) Generate(ctx context.Context, claims *models.JWTClaims, req models.ExportRequest) (*models.ExportResult, error) {
	doc, err := s.documents.DocumentFor(ctx, claims)
	if err != nil {
		return nil, err
	}

	dataset, title, err := buildExportDataset(doc, req.Kind)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", req.Format))
	}
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	filename := fmt.Sprintf("%s_%s.%s", req.Kind, time.Now().UTC().Format("20060102_150405"), req.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist export")
	}

	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("export generated",
		zap.String("kind", string(req.Kind)),
		zap.String("format", string(req.Format)),
		zap.String("file", relPath))

	return &models.ExportResult{
		ID:           id,
		Kind:         req.Kind,
		Format:       req.Format,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// StartCleanup prunes exports older than ResultTTL on the given interval
// until ctx is cancelled.
func (s *ExportService) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Cleanup(0)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(removed) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(removed)))
				}
			}
		}
	}()
}

func buildExportDataset(doc *models.SchoolDocument, kind models.ExportKind) (export.Dataset, string, error) {
	switch kind {
	case models.ExportKindAtRisk:
		return buildAtRiskDataset(doc.AtRisk), "At-Risk Students", nil
	case models.ExportKindWeaknesses:
		return buildWeaknessDataset(doc.Weaknesses), "Cross-Grade Skill Weaknesses", nil
	case models.ExportKindAnomalies:
		return buildAnomalyDataset(doc.Anomalies), "Anomalous Skill Profiles", nil
	case models.ExportKindMatrix:
		return buildMatrixDataset(doc.Matrix), "Performance Matrix", nil
	default:
		return export.Dataset{}, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export kind %q", kind))
	}
}

func buildAtRiskDataset(findings []models.AtRiskFinding) export.Dataset {
	rows := make([]map[string]string, 0, len(findings))
	for _, f := range findings {
		subjects := make([]string, 0, len(f.FailingSubjects))
		for _, sub := range f.FailingSubjects {
			subjects = append(subjects, fmt.Sprintf("%s (%.1f%%)", sub.Subject, sub.Percentage))
		}
		rows = append(rows, map[string]string{
			"Class":            f.ClassSection,
			"Student":          f.StudentName,
			"Failing Count":    fmt.Sprintf("%d", f.FailingCount),
			"Failing Subjects": strings.Join(subjects, "; "),
		})
	}
	return export.Dataset{
		Headers: []string{"Class", "Student", "Failing Count", "Failing Subjects"},
		Rows:    rows,
	}
}

func buildWeaknessDataset(findings []models.WeaknessFinding) export.Dataset {
	rows := make([]map[string]string, 0, len(findings))
	for _, f := range findings {
		grades := make([]string, 0, len(f.Grades))
		for _, g := range f.Grades {
			grades = append(grades, fmt.Sprintf("%s: %.1f%%", g.ClassSection, g.SectionPerformance))
		}
		rows = append(rows, map[string]string{
			"Subject":     f.Subject,
			"Skill":       f.SkillName,
			"Grade Count": fmt.Sprintf("%d", f.GradeCount),
			"Grades":      strings.Join(grades, "; "),
		})
	}
	return export.Dataset{
		Headers: []string{"Subject", "Skill", "Grade Count", "Grades"},
		Rows:    rows,
	}
}

func buildAnomalyDataset(findings []models.AnomalyFinding) export.Dataset {
	rows := make([]map[string]string, 0, len(findings))
	for _, f := range findings {
		rows = append(rows, map[string]string{
			"Class":    f.ClassSection,
			"Student":  f.StudentName,
			"Category": string(f.Category),
			"Detail":   f.Evidence.Detail,
		})
	}
	return export.Dataset{
		Headers: []string{"Class", "Student", "Category", "Detail"},
		Rows:    rows,
	}
}

func buildMatrixDataset(matrix models.PerformanceMatrix) export.Dataset {
	headers := append([]string{"Class"}, matrix.Subjects...)
	rows := make([]map[string]string, 0, len(matrix.Classes))
	for i, cls := range matrix.Classes {
		row := map[string]string{"Class": cls}
		for j, subject := range matrix.Subjects {
			cell := matrix.Cells[i][j]
			if cell == nil {
				row[subject] = "N/A"
			} else {
				row[subject] = fmt.Sprintf("%.1f", *cell)
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
