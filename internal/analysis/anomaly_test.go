package analysis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pepschool/asset-insight-api/internal/models"
)

func defaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		BlindSpotOverallMin: 75,
		BlindSpotSkillMax:   40,
		SpecialistHighMin:   80,
		SpecialistLowMax:    50,
		InvertedGapMin:      20,
		VarianceHighMin:     80,
		VarianceLowMax:      40,
	}
}

func profileReports(class, name string, subjects map[string]float64, skills map[string]map[string]float64) []models.ClassSubjectReport {
	var reports []models.ClassSubjectReport
	for subject, pct := range subjects {
		student := models.StudentResult{Name: name, Percentage: pct}
		if skills != nil {
			student.SkillPerformance = skills[subject]
		}
		reports = append(reports, models.ClassSubjectReport{
			ClassSection: class,
			Subject:      subject,
			StudentCount: 1,
			Students:     []models.StudentResult{student},
		})
	}
	return reports
}

func categories(findings []models.AnomalyFinding) []models.AnomalyCategory {
	out := make([]models.AnomalyCategory, len(findings))
	for i, f := range findings {
		out[i] = f.Category
	}
	return out
}

func TestDetectSpecialistWithLowOverallIsNotBlindSpot(t *testing.T) {
	reports := profileReports("7-A", "Asha",
		map[string]float64{"English": 33, "Maths": 75, "Science": 78},
		map[string]map[string]float64{
			"English": {
				"character analysis": 80,
				"fact recall":        0,
				"vocabulary":         0,
				"text organization":  0,
			},
		})

	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)
	findings := detector.Detect(reports)

	cats := categories(findings)
	assert.NotContains(t, cats, models.AnomalyBlindSpot)
	assert.Contains(t, cats, models.AnomalyCrossVariance)
	// No subject reaches 80, so the specialist contrast cannot fire either.
	assert.NotContains(t, cats, models.AnomalySubjectSpecialist)
}

func TestDetectSubjectSpecialist(t *testing.T) {
	reports := profileReports("6-A", "Binu",
		map[string]float64{"Maths": 92, "English": 45},
		nil)

	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)
	findings := detector.Detect(reports)

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, models.AnomalySubjectSpecialist, f.Category)
	assert.Equal(t, "6-A", f.ClassSection)
	assert.Contains(t, f.Evidence.Detail, "Maths")
	assert.Contains(t, f.Evidence.Detail, "English")
}

func TestDetectBlindSpot(t *testing.T) {
	reports := profileReports("8-A", "Chitra",
		map[string]float64{"Science": 85, "Maths": 80},
		map[string]map[string]float64{
			"Science": {"observation": 90, "explaining processes": 30},
		})

	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)
	findings := detector.Detect(reports)

	cats := categories(findings)
	assert.Contains(t, cats, models.AnomalyBlindSpot)
	for _, f := range findings {
		if f.Category == models.AnomalyBlindSpot {
			require.Len(t, f.Evidence.Skills, 1)
			assert.Equal(t, "explaining processes", f.Evidence.Skills[0].Skill)
		}
	}
}

func TestDetectBlindSpotNeedsSkillData(t *testing.T) {
	reports := profileReports("8-A", "Dev",
		map[string]float64{"Science": 90, "Maths": 88},
		nil)

	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)
	findings := detector.Detect(reports)
	assert.Empty(t, findings)
}

func TestDetectInvertedSkillsRequiresFullTagging(t *testing.T) {
	skills := map[string]map[string]float64{
		"English": {
			"fact recall":        30,
			"character analysis": 70,
		},
	}
	reports := profileReports("7-A", "Esha", map[string]float64{"English": 55}, skills)

	// Fully tagged: the inversion fires.
	tags := SkillTagMap{
		"English|fact recall":        TagBasic,
		"English|character analysis": TagAdvanced,
	}
	findings := NewAnomalyDetector(defaultAnomalyConfig(), tags).Detect(reports)
	assert.Contains(t, categories(findings), models.AnomalyInvertedSkills)

	// One untagged skill in the subject: the whole subject is skipped.
	partial := SkillTagMap{"English|fact recall": TagBasic}
	findings = NewAnomalyDetector(defaultAnomalyConfig(), partial).Detect(reports)
	assert.NotContains(t, categories(findings), models.AnomalyInvertedSkills)

	// No tag file at all behaves the same.
	findings = NewAnomalyDetector(defaultAnomalyConfig(), nil).Detect(reports)
	assert.NotContains(t, categories(findings), models.AnomalyInvertedSkills)
}

func TestDetectExtremeVarianceRequiresExactPerfect(t *testing.T) {
	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)

	perfect := profileReports("6-A", "Fiza", map[string]float64{"Maths": 70},
		map[string]map[string]float64{"Maths": {"algebra": 100, "geometry": 45}})
	findings := detector.Detect(perfect)
	assert.Contains(t, categories(findings), models.AnomalyExtremeVariance)

	nearPerfect := profileReports("6-A", "Fiza", map[string]float64{"Maths": 70},
		map[string]map[string]float64{"Maths": {"algebra": 99.9, "geometry": 45}})
	findings = detector.Detect(nearPerfect)
	assert.NotContains(t, categories(findings), models.AnomalyExtremeVariance)
}

func TestDetectIdempotent(t *testing.T) {
	reports := profileReports("7-A", "Asha",
		map[string]float64{"English": 33, "Maths": 85, "Science": 78},
		map[string]map[string]float64{
			"English": {"fact recall": 0, "character analysis": 80},
		})

	detector := NewAnomalyDetector(defaultAnomalyConfig(), nil)
	first := detector.Detect(reports)
	second := detector.Detect(reports)
	assert.Equal(t, first, second)
}

func TestLoadSkillTags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skill_tags.yaml")
	content := "subjects:\n  English:\n    Fact  Recall: basic\n    character analysis: advanced\n  Math:\n    algebra: advanced\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	tags, err := LoadSkillTags(path)
	require.NoError(t, err)

	tag, ok := tags.Lookup("English", "fact recall")
	require.True(t, ok)
	assert.Equal(t, TagBasic, tag)

	// Subject names are normalised on load ("Math" file entry, "Maths" data).
	tag, ok = tags.Lookup("Maths", "Algebra")
	require.True(t, ok)
	assert.Equal(t, TagAdvanced, tag)

	_, ok = tags.Lookup("Science", "fact recall")
	assert.False(t, ok)
}

func TestLoadSkillTagsRejectsUnknownTag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "skill_tags.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subjects:\n  English:\n    fact recall: medium\n"), 0o600))

	_, err := LoadSkillTags(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "medium")
}
