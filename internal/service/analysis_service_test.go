package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/analysis"
	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

type stubLoader struct {
	ds    *models.Dataset
	err   error
	calls int
}

func (l *stubLoader) Load() (*models.Dataset, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.ds, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
	gets    int
	sets    int
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.gets++
	raw, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.sets++
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = raw
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range r.entries {
		if strings.HasPrefix(key, prefix) {
			delete(r.entries, key)
		}
	}
	return nil
}

func analysisTestDataset() *models.Dataset {
	return &models.Dataset{
		Scores: []models.ScoreRecord{
			{ClassSection: "3-A", Subject: "Maths", StudentName: "Chitra", Score: 20, TotalQuestions: 40},
			{ClassSection: "6-A", Subject: "Maths", StudentName: "Asha", Score: 30, TotalQuestions: 40},
			{ClassSection: "6-A", Subject: "English", StudentName: "Asha", Score: 20, TotalQuestions: 50},
		},
	}
}

func testPipeline() *analysis.Pipeline {
	return analysis.NewPipeline(analysis.Options{
		RiskThreshold:        60,
		WeaknessThreshold:    65,
		PersistenceMinGrades: 3,
		Anomaly: analysis.AnomalyConfig{
			BlindSpotOverallMin: 75,
			BlindSpotSkillMax:   40,
			SpecialistHighMin:   80,
			SpecialistLowMax:    50,
			InvertedGapMin:      20,
			VarianceHighMin:     80,
			VarianceLowMax:      40,
		},
		Workers: 2,
	}, nil, models.SchoolInfo{SchoolName: "PEP School V2"}, zap.NewNop())
}

func newTestAnalysisService(loader *stubLoader, repo CacheRepository) *AnalysisService {
	cacheSvc := NewCacheService(repo, nil, time.Minute, nil, repo != nil)
	return NewAnalysisService(loader, nil, testPipeline(), cacheSvc, nil, time.Minute, zap.NewNop())
}

func TestDocumentComputesOnce(t *testing.T) {
	loader := &stubLoader{ds: analysisTestDataset()}
	svc := newTestAnalysisService(loader, nil)

	doc, err := svc.Document(context.Background())
	require.NoError(t, err)
	require.Len(t, doc.Reports, 3)
	assert.Equal(t, "PEP School V2", doc.SchoolInfo.SchoolName)
	assert.NotEmpty(t, doc.DatasetHash)

	again, err := svc.Document(context.Background())
	require.NoError(t, err)
	assert.Same(t, doc, again)
	assert.Equal(t, 1, loader.calls)
}

func TestDocumentServedFromCacheByHash(t *testing.T) {
	repo := newMemoryCacheRepo()
	loader := &stubLoader{ds: analysisTestDataset()}

	first := newTestAnalysisService(loader, repo)
	doc, err := first.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.sets)

	// A fresh instance over the same dataset reuses the cached document.
	second := newTestAnalysisService(&stubLoader{ds: analysisTestDataset()}, repo)
	cached, err := second.Document(context.Background())
	require.NoError(t, err)
	assert.Equal(t, doc.DatasetHash, cached.DatasetHash)
	assert.Equal(t, 1, repo.sets)
}

func TestRebuildInvalidatesOnInputChange(t *testing.T) {
	repo := newMemoryCacheRepo()
	loader := &stubLoader{ds: analysisTestDataset()}
	svc := newTestAnalysisService(loader, repo)

	doc, err := svc.Document(context.Background())
	require.NoError(t, err)
	firstHash := doc.DatasetHash

	changed := analysisTestDataset()
	changed.Scores[0].Score = 25
	loader.ds = changed

	doc, err = svc.rebuild(context.Background(), "refresh")
	require.NoError(t, err)
	assert.NotEqual(t, firstHash, doc.DatasetHash)

	// The stale entry is gone; only the new hash remains.
	require.Len(t, repo.entries, 1)
	_, ok := repo.entries[documentCacheKeyPrefix+doc.DatasetHash]
	assert.True(t, ok)
}

func TestDocumentForScopesClasses(t *testing.T) {
	svc := newTestAnalysisService(&stubLoader{ds: analysisTestDataset()}, nil)
	claims := &models.JWTClaims{Role: models.RoleMiddle, AllowedClasses: []string{"6-A", "7-A", "8-A"}}

	doc, err := svc.DocumentFor(context.Background(), claims)
	require.NoError(t, err)

	assert.Equal(t, []string{"6-A"}, doc.Classes)
	for _, r := range doc.Reports {
		assert.Equal(t, "6-A", r.ClassSection)
	}
	assert.Equal(t, []string{"6-A"}, doc.Matrix.Classes)
	require.Len(t, doc.Matrix.Cells, 1)

	require.Contains(t, doc.GradeMedians, "6-A")
	assert.NotContains(t, doc.GradeMedians, "3-A")

	// School statistics cover only the visible reports: Asha's 75% Maths
	// and 40% English.
	assert.Equal(t, 57.5, doc.SchoolStatistics.Median)
	assert.Equal(t, 1, doc.SchoolStatistics.TotalStudents)
	assert.Equal(t, 2, doc.SchoolStatistics.TotalAssessments)

	// Management sees everything untouched.
	full, err := svc.DocumentFor(context.Background(), &models.JWTClaims{Role: models.RoleManagement})
	require.NoError(t, err)
	assert.Len(t, full.Classes, 2)
	assert.Contains(t, full.GradeMedians, "3-A")
	assert.Equal(t, 2, full.SchoolStatistics.TotalStudents)
}

func TestReportEnforcesVisibility(t *testing.T) {
	svc := newTestAnalysisService(&stubLoader{ds: analysisTestDataset()}, nil)
	middle := &models.JWTClaims{Role: models.RoleMiddle, AllowedClasses: []string{"6-A"}}

	report, err := svc.Report(context.Background(), middle, "6 A", "Math")
	require.NoError(t, err)
	assert.Equal(t, "6-A", report.ClassSection)
	assert.Equal(t, "Maths", report.Subject)

	_, err = svc.Report(context.Background(), middle, "3-A", "Maths")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Report(context.Background(), nil, "6-A", "Science")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAtRiskScopedByClaims(t *testing.T) {
	ds := &models.Dataset{
		Scores: []models.ScoreRecord{
			{ClassSection: "3-A", Subject: "Maths", StudentName: "Chitra", Score: 10, TotalQuestions: 40},
			{ClassSection: "3-A", Subject: "English", StudentName: "Chitra", Score: 12, TotalQuestions: 50},
			{ClassSection: "6-A", Subject: "Maths", StudentName: "Asha", Score: 10, TotalQuestions: 40},
			{ClassSection: "6-A", Subject: "English", StudentName: "Asha", Score: 12, TotalQuestions: 50},
		},
	}
	svc := newTestAnalysisService(&stubLoader{ds: ds}, nil)

	all, err := svc.AtRisk(context.Background(), &models.JWTClaims{Role: models.RoleManagement})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := svc.AtRisk(context.Background(), &models.JWTClaims{Role: models.RoleElementary, AllowedClasses: []string{"3-A"}})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "Chitra", scoped[0].StudentName)
}

func TestLoadDatasetFallsBackToStore(t *testing.T) {
	stored := analysisTestDataset()
	store := &stubStore{ds: stored}
	loader := &stubLoader{err: appErrors.Clone(appErrors.ErrSchema, "no files")}

	cacheSvc := NewCacheService(nil, nil, time.Minute, nil, false)
	svc := NewAnalysisService(loader, store, testPipeline(), cacheSvc, nil, time.Minute, zap.NewNop())

	doc, err := svc.Document(context.Background())
	require.NoError(t, err)
	assert.Len(t, doc.Reports, 3)
	assert.Equal(t, 1, store.loads)
}

type stubStore struct {
	ds       *models.Dataset
	loads    int
	replaces int
}

func (s *stubStore) Replace(ctx context.Context, ds *models.Dataset) error {
	s.replaces++
	return nil
}

func (s *stubStore) Load(ctx context.Context) (*models.Dataset, error) {
	s.loads++
	return s.ds, nil
}
