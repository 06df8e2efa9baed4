package analysis

import (
	"sort"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// ClassifyAtRisk flags students below threshold in two or more subjects
// within their class section. A student covered by a single subject can
// never qualify; that is intended, not a gap. Requires the complete report
// set so every subject a student sat is visible.
//
// Findings are ordered by failing count descending, then class section,
// then student name.
func ClassifyAtRisk(reports []models.ClassSubjectReport, threshold float64) []models.AtRiskFinding {
	type studentKey struct {
		classSection string
		name         string
	}
	scores := map[studentKey]map[string]float64{}

	for _, report := range reports {
		for _, student := range report.Students {
			key := studentKey{classSection: report.ClassSection, name: student.Name}
			if scores[key] == nil {
				scores[key] = map[string]float64{}
			}
			scores[key][report.Subject] = student.Percentage
		}
	}

	var findings []models.AtRiskFinding
	for key, bySubject := range scores {
		var failing []models.SubjectScore
		for subject, pct := range bySubject {
			if pct < threshold {
				failing = append(failing, models.SubjectScore{Subject: subject, Percentage: pct})
			}
		}
		if len(failing) < 2 {
			continue
		}
		sort.Slice(failing, func(i, j int) bool { return failing[i].Subject < failing[j].Subject })
		findings = append(findings, models.AtRiskFinding{
			ClassSection:    key.classSection,
			StudentName:     key.name,
			FailingSubjects: failing,
			FailingCount:    len(failing),
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].FailingCount != findings[j].FailingCount {
			return findings[i].FailingCount > findings[j].FailingCount
		}
		if findings[i].ClassSection != findings[j].ClassSection {
			return models.ClassSectionLess(findings[i].ClassSection, findings[j].ClassSection)
		}
		return findings[i].StudentName < findings[j].StudentName
	})
	return findings
}
