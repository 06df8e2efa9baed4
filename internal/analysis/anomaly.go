package analysis

import (
	"fmt"
	"sort"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// AnomalyConfig holds every threshold of the pattern detector. All values
// are percentages; InvertedGapMin is a percentage-point gap.
type AnomalyConfig struct {
	BlindSpotOverallMin float64
	BlindSpotSkillMax   float64
	SpecialistHighMin   float64
	SpecialistLowMax    float64
	InvertedGapMin      float64
	VarianceHighMin     float64
	VarianceLowMax      float64
}

// AnomalyDetector classifies students whose skill profiles deviate from a
// uniformly strong or weak shape. Categories are a fixed set of independent
// predicates over a student's profile snapshot, not a hierarchy; each match
// is reported on its own and a student may carry several.
type AnomalyDetector struct {
	cfg  AnomalyConfig
	tags SkillTagMap
}

// NewAnomalyDetector constructs the detector. tags may be nil, in which case
// the inverted skill pattern never fires (fail closed).
func NewAnomalyDetector(cfg AnomalyConfig, tags SkillTagMap) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg, tags: tags}
}

// studentProfile is the fixed snapshot a student is classified over.
type studentProfile struct {
	classSection string
	name         string
	// percentage per subject
	subjects map[string]float64
	// per-subject skill sub-scores; empty when the source lacked
	// question-level answers for this student
	skills map[string]map[string]float64
}

// hasSkillData reports whether any student-level skill granularity exists.
// Categories that need it are skipped without it; class-level skill
// performance is not a substitute.
func (p *studentProfile) hasSkillData() bool {
	for _, skills := range p.skills {
		if len(skills) > 0 {
			return true
		}
	}
	return false
}

// Detect classifies every student found in the reports. Output order is
// stable: class order, then student name, then category declaration order.
// Re-running on identical input yields identical findings.
func (d *AnomalyDetector) Detect(reports []models.ClassSubjectReport) []models.AnomalyFinding {
	profiles := buildProfiles(reports)

	var findings []models.AnomalyFinding
	for _, profile := range profiles {
		findings = append(findings, d.classify(profile)...)
	}
	return findings
}

func buildProfiles(reports []models.ClassSubjectReport) []*studentProfile {
	type key struct {
		classSection string
		name         string
	}
	byStudent := map[key]*studentProfile{}
	for _, report := range reports {
		for _, student := range report.Students {
			k := key{classSection: report.ClassSection, name: student.Name}
			profile, ok := byStudent[k]
			if !ok {
				profile = &studentProfile{
					classSection: report.ClassSection,
					name:         student.Name,
					subjects:     map[string]float64{},
					skills:       map[string]map[string]float64{},
				}
				byStudent[k] = profile
			}
			profile.subjects[report.Subject] = student.Percentage
			if len(student.SkillPerformance) > 0 {
				profile.skills[report.Subject] = student.SkillPerformance
			}
		}
	}

	profiles := make([]*studentProfile, 0, len(byStudent))
	for _, profile := range byStudent {
		profiles = append(profiles, profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].classSection != profiles[j].classSection {
			return models.ClassSectionLess(profiles[i].classSection, profiles[j].classSection)
		}
		return profiles[i].name < profiles[j].name
	})
	return profiles
}

func (d *AnomalyDetector) classify(p *studentProfile) []models.AnomalyFinding {
	var findings []models.AnomalyFinding
	emit := func(category models.AnomalyCategory, evidence models.AnomalyEvidence) {
		findings = append(findings, models.AnomalyFinding{
			ClassSection: p.classSection,
			StudentName:  p.name,
			Category:     category,
			Evidence:     evidence,
		})
	}

	if ev, ok := d.blindSpot(p); ok {
		emit(models.AnomalyBlindSpot, ev)
	}
	if ev, ok := d.subjectSpecialist(p); ok {
		emit(models.AnomalySubjectSpecialist, ev)
	}
	for _, ev := range d.invertedSkills(p) {
		emit(models.AnomalyInvertedSkills, ev)
	}
	for _, ev := range d.extremeVariance(p) {
		emit(models.AnomalyExtremeVariance, ev)
	}
	if ev, ok := d.crossVariance(p); ok {
		emit(models.AnomalyCrossVariance, ev)
	}
	return findings
}

// blindSpot: a strong overall average hiding at least one collapsed skill.
func (d *AnomalyDetector) blindSpot(p *studentProfile) (models.AnomalyEvidence, bool) {
	if !p.hasSkillData() {
		return models.AnomalyEvidence{}, false
	}
	overall := Mean(subjectValues(p.subjects))
	if overall < d.cfg.BlindSpotOverallMin {
		return models.AnomalyEvidence{}, false
	}

	var low []models.SkillScore
	for _, skill := range sortedSkills(p) {
		if skill.Value <= d.cfg.BlindSpotSkillMax {
			low = append(low, skill)
		}
	}
	if len(low) == 0 {
		return models.AnomalyEvidence{}, false
	}
	return models.AnomalyEvidence{
		Detail: fmt.Sprintf("overall average %.1f%% with %d skill(s) at or below %.0f%%",
			models.Round1(overall), len(low), d.cfg.BlindSpotSkillMax),
		Skills: low,
	}, true
}

// subjectSpecialist: one strong subject against one weak subject in the same
// assessment cycle.
func (d *AnomalyDetector) subjectSpecialist(p *studentProfile) (models.AnomalyEvidence, bool) {
	if len(p.subjects) < 2 {
		return models.AnomalyEvidence{}, false
	}
	var high, low []models.SubjectScore
	for _, s := range sortedSubjects(p.subjects) {
		if s.Percentage >= d.cfg.SpecialistHighMin {
			high = append(high, s)
		}
		if s.Percentage <= d.cfg.SpecialistLowMax {
			low = append(low, s)
		}
	}
	if len(high) == 0 || len(low) == 0 {
		return models.AnomalyEvidence{}, false
	}
	return models.AnomalyEvidence{
		Detail: fmt.Sprintf("%s at %.1f%% against %s at %.1f%%",
			high[0].Subject, high[0].Percentage, low[0].Subject, low[0].Percentage),
		Subjects: append(high, low...),
	}, true
}

// invertedSkills: within one subject, higher-order skills outpace
// foundational ones by the configured gap. The check is skipped for any
// subject holding an untagged skill.
func (d *AnomalyDetector) invertedSkills(p *studentProfile) []models.AnomalyEvidence {
	var evidence []models.AnomalyEvidence
	for _, subject := range sortedSubjectKeys(p.skills) {
		skills := p.skills[subject]
		var basic, advanced []float64
		tagged := true
		for _, name := range sortedSkillKeys(skills) {
			tag, ok := d.tags.Lookup(subject, name)
			if !ok {
				tagged = false
				break
			}
			switch tag {
			case TagBasic:
				basic = append(basic, skills[name])
			case TagAdvanced:
				advanced = append(advanced, skills[name])
			}
		}
		if !tagged || len(basic) == 0 || len(advanced) == 0 {
			continue
		}
		gap := Mean(advanced) - Mean(basic)
		if gap < d.cfg.InvertedGapMin {
			continue
		}
		evidence = append(evidence, models.AnomalyEvidence{
			Detail: fmt.Sprintf("%s: advanced skills average %.1f%%, basic skills %.1f%% (gap %.1f points)",
				subject, models.Round1(Mean(advanced)), models.Round1(Mean(basic)), models.Round1(gap)),
			Skills: subjectSkillScores(subject, skills),
		})
	}
	return evidence
}

// Extreme intra-subject variance bounds. The upper bound is exact: only a
// perfect skill score qualifies.
const (
	perfectSkillScore     = 100
	extremeVarianceLowMax = 50
)

// extremeVariance: a perfect skill next to a failing one inside one subject.
func (d *AnomalyDetector) extremeVariance(p *studentProfile) []models.AnomalyEvidence {
	var evidence []models.AnomalyEvidence
	for _, subject := range sortedSubjectKeys(p.skills) {
		skills := p.skills[subject]
		var perfect, failing []models.SkillScore
		for _, name := range sortedSkillKeys(skills) {
			value := skills[name]
			if value == perfectSkillScore {
				perfect = append(perfect, models.SkillScore{Subject: subject, Skill: name, Value: value})
			} else if value <= extremeVarianceLowMax {
				failing = append(failing, models.SkillScore{Subject: subject, Skill: name, Value: value})
			}
		}
		if len(perfect) == 0 || len(failing) == 0 {
			continue
		}
		evidence = append(evidence, models.AnomalyEvidence{
			Detail: fmt.Sprintf("%s: %s at 100%% while %s at %.1f%%",
				subject, perfect[0].Skill, failing[0].Skill, failing[0].Value),
			Skills: append(perfect, failing...),
		})
	}
	return evidence
}

// crossVariance: widely spread skill scores anywhere in the profile. The
// broadest category; matching a large share of students is expected.
func (d *AnomalyDetector) crossVariance(p *studentProfile) (models.AnomalyEvidence, bool) {
	if !p.hasSkillData() {
		return models.AnomalyEvidence{}, false
	}
	var high, low []models.SkillScore
	for _, skill := range sortedSkills(p) {
		if skill.Value >= d.cfg.VarianceHighMin {
			high = append(high, skill)
		}
		if skill.Value <= d.cfg.VarianceLowMax {
			low = append(low, skill)
		}
	}
	if len(high) == 0 || len(low) == 0 {
		return models.AnomalyEvidence{}, false
	}
	return models.AnomalyEvidence{
		Detail: fmt.Sprintf("skills span %.1f%% (%s) down to %.1f%% (%s)",
			high[0].Value, high[0].Skill, low[0].Value, low[0].Skill),
		Skills: append(high, low...),
	}, true
}

func subjectValues(subjects map[string]float64) []float64 {
	values := make([]float64, 0, len(subjects))
	for _, s := range sortedSubjects(subjects) {
		values = append(values, s.Percentage)
	}
	return values
}

func sortedSubjects(subjects map[string]float64) []models.SubjectScore {
	out := make([]models.SubjectScore, 0, len(subjects))
	for subject, pct := range subjects {
		out = append(out, models.SubjectScore{Subject: subject, Percentage: pct})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

func sortedSubjectKeys(skills map[string]map[string]float64) []string {
	keys := make([]string, 0, len(skills))
	for subject := range skills {
		keys = append(keys, subject)
	}
	sort.Strings(keys)
	return keys
}

func sortedSkillKeys(skills map[string]float64) []string {
	keys := make([]string, 0, len(skills))
	for name := range skills {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

func sortedSkills(p *studentProfile) []models.SkillScore {
	var out []models.SkillScore
	for _, subject := range sortedSubjectKeys(p.skills) {
		out = append(out, subjectSkillScores(subject, p.skills[subject])...)
	}
	return out
}

func subjectSkillScores(subject string, skills map[string]float64) []models.SkillScore {
	out := make([]models.SkillScore, 0, len(skills))
	for _, name := range sortedSkillKeys(skills) {
		out = append(out, models.SkillScore{Subject: subject, Skill: name, Value: skills[name]})
	}
	return out
}
