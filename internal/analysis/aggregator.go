package analysis

import (
	"github.com/pepschool/asset-insight-api/internal/models"
)

// BuildGradeSummaries pools every subject's percentages per class section.
// Cross-subject pooling is sound because every percentage is already
// normalised to 0-100. Requires the complete report set.
func BuildGradeSummaries(reports []models.ClassSubjectReport, riskThreshold float64) map[string]models.GradeSummary {
	pooled := map[string][]float64{}
	perSubject := map[string]map[string]models.SubjectStat{}

	for _, report := range reports {
		if report.StudentCount == 0 {
			continue
		}
		for _, student := range report.Students {
			pooled[report.ClassSection] = append(pooled[report.ClassSection], student.Percentage)
		}
		if perSubject[report.ClassSection] == nil {
			perSubject[report.ClassSection] = map[string]models.SubjectStat{}
		}
		perSubject[report.ClassSection][report.Subject] = models.SubjectStat{
			Median: report.MedianPercentage,
			Mean:   report.MeanPercentage,
		}
	}

	summaries := make(map[string]models.GradeSummary, len(pooled))
	for classSection, percentages := range pooled {
		stats, err := Describe(percentages, riskThreshold)
		if err != nil {
			continue
		}
		summaries[classSection] = models.GradeSummary{
			ClassSection:  classSection,
			OverallMedian: stats.Median,
			OverallMean:   stats.Mean,
			BySubject:     perSubject[classSection],
		}
	}
	return summaries
}

// BuildMatrix lays out class x subject medians for heatmap-style output.
// A missing combination stays a nil cell; it is never coerced to zero,
// which would corrupt downstream coloring and ranking.
func BuildMatrix(reports []models.ClassSubjectReport, classes, subjects []string) models.PerformanceMatrix {
	subjectIdx := make(map[string]int, len(subjects))
	for j, subj := range subjects {
		subjectIdx[subj] = j
	}
	classIdx := make(map[string]int, len(classes))
	for i, cls := range classes {
		classIdx[cls] = i
	}

	cells := make([][]*float64, len(classes))
	for i := range cells {
		cells[i] = make([]*float64, len(subjects))
	}
	for _, report := range reports {
		if report.StudentCount == 0 {
			continue
		}
		i, okClass := classIdx[report.ClassSection]
		j, okSubject := subjectIdx[report.Subject]
		if !okClass || !okSubject {
			continue
		}
		median := report.MedianPercentage
		cells[i][j] = &median
	}

	return models.PerformanceMatrix{Classes: classes, Subjects: subjects, Cells: cells}
}

// BuildSchoolStatistics summarises every assessment in the school. Students
// are counted once per class section by name; the same name in two classes
// counts twice, matching how rosters are sourced.
func BuildSchoolStatistics(reports []models.ClassSubjectReport) models.SchoolStatistics {
	var percentages []float64
	uniqueByClass := map[string]map[string]struct{}{}

	for _, report := range reports {
		for _, student := range report.Students {
			percentages = append(percentages, student.Percentage)
			if uniqueByClass[report.ClassSection] == nil {
				uniqueByClass[report.ClassSection] = map[string]struct{}{}
			}
			uniqueByClass[report.ClassSection][student.Name] = struct{}{}
		}
	}

	stats := models.SchoolStatistics{TotalAssessments: len(percentages)}
	for _, names := range uniqueByClass {
		stats.TotalStudents += len(names)
	}
	if desc, err := Describe(percentages, 0); err == nil {
		stats.Median = desc.Median
		stats.Mean = desc.Mean
	}
	return stats
}
