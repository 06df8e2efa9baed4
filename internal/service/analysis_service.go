package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/analysis"
	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
	"github.com/pepschool/asset-insight-api/pkg/jobs"
)

const documentCacheKeyPrefix = "document:"

// DatasetLoader supplies the raw dataset, normally from the CSV drop dirs.
type DatasetLoader interface {
	Load() (*models.Dataset, error)
}

// DatasetStore persists the normalized dataset between runs. Optional.
type DatasetStore interface {
	Replace(ctx context.Context, ds *models.Dataset) error
	Load(ctx context.Context) (*models.Dataset, error)
}

// AnalysisService owns the document lifecycle: ingest, compute, memoize,
// refresh. A computed document is keyed by the dataset content hash, so an
// unchanged dataset never recomputes and a changed one never serves stale
// results.
type AnalysisService struct {
	loader   DatasetLoader
	store    DatasetStore
	pipeline *analysis.Pipeline
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration

	queue *jobs.Queue

	mu      sync.RWMutex
	current *models.SchoolDocument
}

// NewAnalysisService constructs the orchestrator. store may be nil when the
// database is disabled.
func NewAnalysisService(loader DatasetLoader, store DatasetStore, pipeline *analysis.Pipeline, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AnalysisService{
		loader:   loader,
		store:    store,
		pipeline: pipeline,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
	s.queue = jobs.NewQueue("analysis-refresh", s.handleRefreshJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 4,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the refresh worker and computes the initial document.
func (s *AnalysisService) Start(ctx context.Context) error {
	s.queue.Start(ctx)
	_, err := s.Document(ctx)
	return err
}

// Stop drains the refresh worker.
func (s *AnalysisService) Stop() {
	s.queue.Stop()
}

// HasDocument reports whether a computed document is already in memory.
func (s *AnalysisService) HasDocument() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// Document returns the current school document, computing it on first use.
func (s *AnalysisService) Document(ctx context.Context) (*models.SchoolDocument, error) {
	s.mu.RLock()
	doc := s.current
	s.mu.RUnlock()
	if doc != nil {
		return doc, nil
	}
	return s.rebuild(ctx, "startup")
}

// DocumentFor returns the document restricted to the classes the claims may
// see. Management receives the full document unchanged.
func (s *AnalysisService) DocumentFor(ctx context.Context, claims *models.JWTClaims) (*models.SchoolDocument, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return scopeDocument(doc, claims), nil
}

// Report returns a single class/subject report, enforcing class visibility.
func (s *AnalysisService) Report(ctx context.Context, claims *models.JWTClaims, classSection, subject string) (*models.ClassSubjectReport, error) {
	classSection = models.NormalizeClassSection(classSection)
	subject = models.NormalizeSubject(subject)

	if claims != nil && !claims.CanSee(classSection) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class is outside your visibility scope")
	}

	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	for i := range doc.Reports {
		r := &doc.Reports[i]
		if r.ClassSection == classSection && r.Subject == subject {
			return r, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no report for the requested class and subject")
}

// AtRisk returns at-risk students visible to the caller.
func (s *AnalysisService) AtRisk(ctx context.Context, claims *models.JWTClaims) ([]models.AtRiskFinding, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Role == models.RoleManagement {
		return doc.AtRisk, nil
	}
	scoped := make([]models.AtRiskFinding, 0, len(doc.AtRisk))
	for _, f := range doc.AtRisk {
		if claims.CanSee(f.ClassSection) {
			scoped = append(scoped, f)
		}
	}
	return scoped, nil
}

// Weaknesses returns cross-grade skill weaknesses. School-wide findings are
// served unscoped; they carry no per-student data.
func (s *AnalysisService) Weaknesses(ctx context.Context) ([]models.WeaknessFinding, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Weaknesses, nil
}

// Anomalies returns anomaly findings visible to the caller.
func (s *AnalysisService) Anomalies(ctx context.Context, claims *models.JWTClaims) ([]models.AnomalyFinding, error) {
	doc, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	if claims == nil || claims.Role == models.RoleManagement {
		return doc.Anomalies, nil
	}
	scoped := make([]models.AnomalyFinding, 0, len(doc.Anomalies))
	for _, f := range doc.Anomalies {
		if claims.CanSee(f.ClassSection) {
			scoped = append(scoped, f)
		}
	}
	return scoped, nil
}

// Refresh enqueues an asynchronous re-ingest and recompute, returning the
// job identifier for correlation in logs.
func (s *AnalysisService) Refresh() (string, error) {
	jobID := uuid.NewString()
	err := s.queue.Enqueue(jobs.Job{ID: jobID, Type: "refresh"})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue refresh")
	}
	return jobID, nil
}

func (s *AnalysisService) handleRefreshJob(ctx context.Context, job jobs.Job) error {
	s.logger.Info("refresh started", zap.String("job_id", job.ID))
	_, err := s.rebuild(ctx, "refresh")
	if err != nil {
		s.logger.Error("refresh failed", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	s.logger.Info("refresh complete", zap.String("job_id", job.ID))
	return nil
}

// rebuild loads the dataset, reuses a cached document when the content hash
// matches, and recomputes otherwise.
func (s *AnalysisService) rebuild(ctx context.Context, source string) (*models.SchoolDocument, error) {
	start := time.Now()

	ds, err := s.loadDataset(ctx)
	if err != nil {
		return nil, err
	}

	hash := ds.Hash()
	cacheKey := documentCacheKeyPrefix + hash

	var cached models.SchoolDocument
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		s.logger.Info("document served from cache", zap.String("dataset_hash", hash))
		s.setCurrent(&cached)
		return &cached, nil
	}

	doc, err := s.pipeline.Run(ctx, ds)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		if err := s.store.Replace(ctx, ds); err != nil {
			s.logger.Warn("failed to persist dataset", zap.Error(err))
		}
	}

	// An input change makes previously cached documents unreachable by key;
	// drop them rather than letting them age out.
	if err := s.cache.Invalidate(ctx, documentCacheKeyPrefix+"*"); err != nil {
		s.logger.Warn("failed to invalidate stale documents", zap.Error(err))
	}
	if err := s.cache.Set(ctx, cacheKey, doc, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache document", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.ObserveAnalysisRun(source, time.Since(start))
	}

	s.setCurrent(doc)
	return doc, nil
}

func (s *AnalysisService) loadDataset(ctx context.Context) (*models.Dataset, error) {
	if s.loader != nil {
		ds, err := s.loader.Load()
		if err == nil {
			return ds, nil
		}
		if s.store == nil {
			return nil, err
		}
		s.logger.Warn("csv ingest failed, falling back to stored dataset", zap.Error(err))
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "no dataset source configured")
	}
	ds, err := s.store.Load(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load stored dataset")
	}
	return ds, nil
}

func (s *AnalysisService) setCurrent(doc *models.SchoolDocument) {
	s.mu.Lock()
	s.current = doc
	s.mu.Unlock()
}

// scopeDocument narrows a document to the claims' visible classes. Reports,
// matrix rows, grade medians, at-risk findings and anomalies outside the
// scope are removed and school statistics are recomputed over the visible
// reports. Weakness findings carry no per-student data and stay intact.
func scopeDocument(doc *models.SchoolDocument, claims *models.JWTClaims) *models.SchoolDocument {
	if claims == nil || claims.Role == models.RoleManagement {
		return doc
	}

	scoped := *doc

	classes := make([]string, 0, len(doc.Classes))
	for _, cls := range doc.Classes {
		if claims.CanSee(cls) {
			classes = append(classes, cls)
		}
	}
	scoped.Classes = classes

	reports := make([]models.ClassSubjectReport, 0, len(doc.Reports))
	for _, r := range doc.Reports {
		if claims.CanSee(r.ClassSection) {
			reports = append(reports, r)
		}
	}
	scoped.Reports = reports

	medians := make(map[string]models.GradeSummary, len(doc.GradeMedians))
	for cls, summary := range doc.GradeMedians {
		if claims.CanSee(cls) {
			medians[cls] = summary
		}
	}
	scoped.GradeMedians = medians
	scoped.SchoolStatistics = analysis.BuildSchoolStatistics(reports)

	scoped.Matrix = models.PerformanceMatrix{Classes: classes, Subjects: doc.Subjects}
	scoped.Matrix.Cells = make([][]*float64, 0, len(classes))
	for i, cls := range doc.Matrix.Classes {
		if claims.CanSee(cls) {
			scoped.Matrix.Cells = append(scoped.Matrix.Cells, doc.Matrix.Cells[i])
		}
	}

	atRisk := make([]models.AtRiskFinding, 0, len(doc.AtRisk))
	for _, f := range doc.AtRisk {
		if claims.CanSee(f.ClassSection) {
			atRisk = append(atRisk, f)
		}
	}
	scoped.AtRisk = atRisk

	anomalies := make([]models.AnomalyFinding, 0, len(doc.Anomalies))
	for _, f := range doc.Anomalies {
		if claims.CanSee(f.ClassSection) {
			anomalies = append(anomalies, f)
		}
	}
	scoped.Anomalies = anomalies

	return &scoped
}
