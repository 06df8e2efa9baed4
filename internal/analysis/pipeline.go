package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// Options is the full tuning surface of one analysis run.
type Options struct {
	RiskThreshold        float64
	WeaknessThreshold    float64
	PersistenceMinGrades int
	Anomaly              AnomalyConfig
	Workers              int
}

// Pipeline runs the complete analysis: assemble per-partition reports in
// parallel, join, then aggregate and classify over the full report set.
// Every derived value is a pure function of the dataset; a run never
// mutates its input or its own prior output.
type Pipeline struct {
	opts   Options
	tags   SkillTagMap
	school models.SchoolInfo
	logger *zap.Logger
}

// NewPipeline constructs a pipeline. tags may be nil; the inverted skill
// pattern then stays silent.
func NewPipeline(opts Options, tags SkillTagMap, school models.SchoolInfo, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{opts: opts, tags: tags, school: school, logger: logger}
}

// Run produces the complete school document for a validated dataset. The
// aggregator and the detectors only start after every partition finished;
// that join is the single synchronization point of the whole computation.
func (p *Pipeline) Run(ctx context.Context, ds *models.Dataset) (*models.SchoolDocument, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	assembler := NewAssembler(p.opts.Workers, p.opts.RiskThreshold, p.logger)
	reports, issues := assembler.Assemble(ctx, ds)

	classes := ds.Classes()
	subjects := ds.Subjects()

	doc := &models.SchoolDocument{
		SchoolInfo:       p.school,
		Classes:          classes,
		Subjects:         subjects,
		Reports:          reports,
		GradeMedians:     BuildGradeSummaries(reports, p.opts.RiskThreshold),
		SchoolStatistics: BuildSchoolStatistics(reports),
		Matrix:           BuildMatrix(reports, classes, subjects),
		AtRisk:           ClassifyAtRisk(reports, p.opts.RiskThreshold),
		Weaknesses:       DetectPersistentWeaknesses(reports, p.opts.WeaknessThreshold, p.opts.PersistenceMinGrades),
		Anomalies:        NewAnomalyDetector(p.opts.Anomaly, p.tags).Detect(reports),
		IntegrityIssues:  issues,
		DatasetHash:      ds.Hash(),
	}

	p.logger.Info("analysis run complete",
		zap.Int("reports", len(reports)),
		zap.Int("integrity_issues", len(issues)),
		zap.Int("at_risk", len(doc.AtRisk)),
		zap.Int("weaknesses", len(doc.Weaknesses)),
		zap.Int("anomalies", len(doc.Anomalies)),
		zap.Duration("elapsed", time.Since(start)))
	return doc, nil
}
