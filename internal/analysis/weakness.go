package analysis

import (
	"sort"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// DetectPersistentWeaknesses flags skills whose class-level performance sits
// below threshold in minGrades or more distinct class sections for the same
// subject. Skill names are matched by exact normalized string across grades;
// there is no fuzzy matching. A skill weak in fewer grades is an individual
// class matter and is not reported.
//
// Findings are ordered by subject, then normalized skill name; the grades
// inside each finding follow class order. The same input always yields the
// same output, byte for byte.
func DetectPersistentWeaknesses(reports []models.ClassSubjectReport, threshold float64, minGrades int) []models.WeaknessFinding {
	type groupKey struct {
		subject string
		skill   string
	}
	type weakEntry struct {
		classSection string
		performance  float64
	}

	displayName := map[groupKey]string{}
	weak := map[groupKey][]weakEntry{}

	for _, report := range reports {
		for _, skill := range report.Skills {
			key := groupKey{subject: report.Subject, skill: models.NormalizeSkillName(skill.SkillName)}
			if _, ok := displayName[key]; !ok {
				displayName[key] = skill.SkillName
			}
			if skill.SectionPerformance < threshold {
				weak[key] = append(weak[key], weakEntry{
					classSection: report.ClassSection,
					performance:  skill.SectionPerformance,
				})
			}
		}
	}

	var findings []models.WeaknessFinding
	for key, entries := range weak {
		distinct := map[string]float64{}
		for _, e := range entries {
			distinct[e.classSection] = e.performance
		}
		if len(distinct) < minGrades {
			continue
		}

		classes := make([]string, 0, len(distinct))
		for cls := range distinct {
			classes = append(classes, cls)
		}
		models.SortClassSections(classes)

		grades := make([]models.GradeSkillValue, 0, len(classes))
		for _, cls := range classes {
			grades = append(grades, models.GradeSkillValue{
				ClassSection:       cls,
				SectionPerformance: distinct[cls],
			})
		}
		findings = append(findings, models.WeaknessFinding{
			Subject:    key.subject,
			SkillName:  displayName[key],
			Grades:     grades,
			GradeCount: len(grades),
		})
	}

	sort.Slice(findings, func(i, j int) bool {
		if findings[i].Subject != findings[j].Subject {
			return findings[i].Subject < findings[j].Subject
		}
		return models.NormalizeSkillName(findings[i].SkillName) < models.NormalizeSkillName(findings[j].SkillName)
	})
	return findings
}
