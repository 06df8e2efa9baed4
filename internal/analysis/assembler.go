package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// Assembler builds one ClassSubjectReport per (class_section, subject)
// partition discovered in the dataset. Partitions are independent and are
// built in parallel over a bounded worker pool; the returned slices are the
// join point every downstream aggregator waits on.
type Assembler struct {
	workers       int
	riskThreshold float64
	logger        *zap.Logger
}

// NewAssembler constructs an assembler. riskThreshold feeds the
// below_threshold_count statistic of each report.
func NewAssembler(workers int, riskThreshold float64, logger *zap.Logger) *Assembler {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{workers: workers, riskThreshold: riskThreshold, logger: logger}
}

type partition struct {
	classSection string
	subject      string
	hasScores    bool
}

// Assemble returns reports in deterministic (class order, subject) order
// along with integrity issues found in individual partitions. An integrity
// issue drops its own partition only; unrelated partitions still produce
// reports.
func (a *Assembler) Assemble(ctx context.Context, ds *models.Dataset) ([]models.ClassSubjectReport, []models.IntegrityIssue) {
	partitions := discoverPartitions(ds)

	results := make([]*models.ClassSubjectReport, len(partitions))
	issues := make([]*models.IntegrityIssue, len(partitions))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < a.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report, issue := a.buildPartition(ds, partitions[idx])
				results[idx] = report
				issues[idx] = issue
			}
		}()
	}

	for idx := range partitions {
		select {
		case <-ctx.Done():
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	reports := make([]models.ClassSubjectReport, 0, len(partitions))
	var collected []models.IntegrityIssue
	for idx := range partitions {
		if issues[idx] != nil {
			collected = append(collected, *issues[idx])
			continue
		}
		if results[idx] != nil {
			reports = append(reports, *results[idx])
		}
	}
	return reports, collected
}

// discoverPartitions unions the (class, subject) pairs of both record sets.
// Pairs present only in skills still get a report (with an empty roster)
// because skill coverage and roster coverage are independently sourced.
func discoverPartitions(ds *models.Dataset) []partition {
	scored := map[string]struct{}{}
	seen := map[string]partition{}
	for _, rec := range ds.Scores {
		key := rec.ClassSection + "|" + rec.Subject
		scored[key] = struct{}{}
		seen[key] = partition{classSection: rec.ClassSection, subject: rec.Subject, hasScores: true}
	}
	for _, rec := range ds.Skills {
		key := rec.ClassSection + "|" + rec.Subject
		if _, ok := seen[key]; !ok {
			seen[key] = partition{classSection: rec.ClassSection, subject: rec.Subject}
		}
	}

	partitions := make([]partition, 0, len(seen))
	for _, p := range seen {
		partitions = append(partitions, p)
	}
	classes := make([]string, 0, len(partitions))
	for _, p := range partitions {
		classes = append(classes, p.classSection)
	}
	models.SortClassSections(classes)
	order := make(map[string]int, len(classes))
	for i, cls := range classes {
		if _, ok := order[cls]; !ok {
			order[cls] = i
		}
	}
	sort.Slice(partitions, func(i, j int) bool {
		if order[partitions[i].classSection] != order[partitions[j].classSection] {
			return order[partitions[i].classSection] < order[partitions[j].classSection]
		}
		return partitions[i].subject < partitions[j].subject
	})
	return partitions
}

func (a *Assembler) buildPartition(ds *models.Dataset, p partition) (*models.ClassSubjectReport, *models.IntegrityIssue) {
	var scores []models.ScoreRecord
	for _, rec := range ds.Scores {
		if rec.ClassSection == p.classSection && rec.Subject == p.subject {
			scores = append(scores, rec)
		}
	}
	var skills []models.SkillRecord
	for _, rec := range ds.Skills {
		if rec.ClassSection == p.classSection && rec.Subject == p.subject {
			skills = append(skills, rec)
		}
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].SkillName < skills[j].SkillName })

	report := &models.ClassSubjectReport{
		ClassSection: p.classSection,
		Subject:      p.subject,
		Skills:       skills,
	}
	if len(skills) == 0 {
		report.Skills = []models.SkillRecord{}
	}

	if len(scores) == 0 {
		// Skill-only partition: report an empty roster, no statistics.
		report.Students = []models.StudentResult{}
		return report, nil
	}

	totalQuestions := scores[0].TotalQuestions
	for _, rec := range scores[1:] {
		if rec.TotalQuestions != totalQuestions {
			a.logger.Warn("inconsistent total_questions in partition",
				zap.String("class", p.classSection),
				zap.String("subject", p.subject))
			return nil, &models.IntegrityIssue{
				ClassSection: p.classSection,
				Subject:      p.subject,
				Detail: fmt.Sprintf("inconsistent total_questions: %d vs %d for %s",
					totalQuestions, rec.TotalQuestions, rec.StudentName),
			}
		}
	}

	students := make([]models.StudentResult, 0, len(scores))
	percentages := make([]float64, 0, len(scores))
	for _, rec := range scores {
		pct := rec.Percentage()
		students = append(students, models.StudentResult{
			Name:             rec.StudentName,
			Score:            rec.Score,
			TotalQuestions:   rec.TotalQuestions,
			Percentage:       pct,
			SkillPerformance: rec.SkillPerformance,
		})
		percentages = append(percentages, pct)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })

	stats, err := Describe(percentages, a.riskThreshold)
	if err != nil {
		// Unreachable: the roster is non-empty here.
		return nil, &models.IntegrityIssue{ClassSection: p.classSection, Subject: p.subject, Detail: err.Error()}
	}

	report.StudentCount = len(students)
	report.TotalQuestions = totalQuestions
	report.MeanPercentage = stats.Mean
	report.MedianPercentage = stats.Median
	report.Statistics = stats
	report.Students = students
	return report, nil
}
