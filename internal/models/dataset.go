package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ScoreRecord is one student's result for one class/subject assessment.
// SkillPerformance carries the student's per-skill sub-scores when the raw
// source included question-level answers; it is nil otherwise.
type ScoreRecord struct {
	ClassSection     string             `db:"class_section" json:"class_section"`
	Subject          string             `db:"subject" json:"subject"`
	StudentName      string             `db:"student_name" json:"student_name"`
	Score            int                `db:"score" json:"score"`
	TotalQuestions   int                `db:"total_questions" json:"total_questions"`
	SkillPerformance map[string]float64 `db:"-" json:"skill_performance,omitempty"`
}

// Percentage returns the score normalised to 0-100, rounded to one decimal.
func (r ScoreRecord) Percentage() float64 {
	if r.TotalQuestions <= 0 {
		return 0
	}
	return Round1(float64(r.Score) / float64(r.TotalQuestions) * 100)
}

// Key returns the record identity (class_section, subject, student_name).
func (r ScoreRecord) Key() string {
	return r.ClassSection + "|" + r.Subject + "|" + r.StudentName
}

// SkillRecord is class-level performance for one tested skill.
type SkillRecord struct {
	ClassSection       string  `db:"class_section" json:"class_section"`
	Subject            string  `db:"subject" json:"subject"`
	SkillName          string  `db:"skill_name" json:"skill_name"`
	QuestionIDs        []int   `db:"-" json:"questions"`
	SectionPerformance float64 `db:"section_performance" json:"section_performance"`
	SchoolPerformance  float64 `db:"school_performance" json:"school_performance"`
}

// Key returns the record identity (class_section, subject, skill_name).
func (r SkillRecord) Key() string {
	return r.ClassSection + "|" + r.Subject + "|" + r.SkillName
}

// Dataset is the validated in-memory input to every analysis run. It is
// treated as immutable once validated; derived reports are pure functions
// of it.
type Dataset struct {
	Scores []ScoreRecord `json:"scores"`
	Skills []SkillRecord `json:"skills"`
}

// Validate enforces record invariants and identity-key uniqueness.
func (d *Dataset) Validate() error {
	seenScores := make(map[string]struct{}, len(d.Scores))
	for _, rec := range d.Scores {
		if rec.TotalQuestions <= 0 {
			return fmt.Errorf("score record %s: total_questions must be positive, got %d", rec.Key(), rec.TotalQuestions)
		}
		if rec.Score < 0 || rec.Score > rec.TotalQuestions {
			return fmt.Errorf("score record %s: score %d out of range [0,%d]", rec.Key(), rec.Score, rec.TotalQuestions)
		}
		if _, dup := seenScores[rec.Key()]; dup {
			return fmt.Errorf("duplicate score record for %s", rec.Key())
		}
		seenScores[rec.Key()] = struct{}{}
	}

	seenSkills := make(map[string]struct{}, len(d.Skills))
	for _, rec := range d.Skills {
		if len(rec.QuestionIDs) == 0 {
			return fmt.Errorf("skill record %s: question list is empty", rec.Key())
		}
		for _, q := range rec.QuestionIDs {
			if q <= 0 {
				return fmt.Errorf("skill record %s: question id %d not positive", rec.Key(), q)
			}
		}
		if rec.SectionPerformance < 0 || rec.SectionPerformance > 100 {
			return fmt.Errorf("skill record %s: section performance %.1f out of range", rec.Key(), rec.SectionPerformance)
		}
		if rec.SchoolPerformance < 0 || rec.SchoolPerformance > 100 {
			return fmt.Errorf("skill record %s: school performance %.1f out of range", rec.Key(), rec.SchoolPerformance)
		}
		if _, dup := seenSkills[rec.Key()]; dup {
			return fmt.Errorf("duplicate skill record for %s", rec.Key())
		}
		seenSkills[rec.Key()] = struct{}{}
	}
	return nil
}

// Hash returns a stable content digest of the dataset, used as the
// memoization key for computed documents. Records are hashed in sorted key
// order so field ordering in the source never changes the digest.
func (d *Dataset) Hash() string {
	lines := make([]string, 0, len(d.Scores)+len(d.Skills))
	for _, rec := range d.Scores {
		lines = append(lines, fmt.Sprintf("s|%s|%d|%d", rec.Key(), rec.Score, rec.TotalQuestions))
	}
	for _, rec := range d.Skills {
		ids := make([]string, len(rec.QuestionIDs))
		for i, q := range rec.QuestionIDs {
			ids[i] = strconv.Itoa(q)
		}
		lines = append(lines, fmt.Sprintf("k|%s|%s|%.1f|%.1f", rec.Key(), strings.Join(ids, ","), rec.SectionPerformance, rec.SchoolPerformance))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Classes returns the distinct class sections across score and skill
// records, in grade order. A class with only skill data still counts.
func (d *Dataset) Classes() []string {
	set := map[string]struct{}{}
	for _, rec := range d.Scores {
		set[rec.ClassSection] = struct{}{}
	}
	for _, rec := range d.Skills {
		set[rec.ClassSection] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for cls := range set {
		classes = append(classes, cls)
	}
	SortClassSections(classes)
	return classes
}

// Subjects returns the distinct subjects across score and skill records,
// sorted.
func (d *Dataset) Subjects() []string {
	set := map[string]struct{}{}
	for _, rec := range d.Scores {
		set[rec.Subject] = struct{}{}
	}
	for _, rec := range d.Skills {
		set[rec.Subject] = struct{}{}
	}
	subjects := make([]string, 0, len(set))
	for subj := range set {
		subjects = append(subjects, subj)
	}
	sort.Strings(subjects)
	return subjects
}

var classSectionPattern = regexp.MustCompile(`^(\d+)[\s\-]*([A-Za-z])`)

// NormalizeClassSection maps raw class labels like "3 A" or "3-A A" onto the
// canonical "3-A" form. Unrecognised labels pass through trimmed.
func NormalizeClassSection(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if m := classSectionPattern.FindStringSubmatch(cleaned); m != nil {
		return m[1] + "-" + strings.ToUpper(m[2])
	}
	return cleaned
}

// NormalizeSubject maps subject name variants onto their canonical form.
func NormalizeSubject(raw string) string {
	subject := strings.TrimSpace(raw)
	if strings.EqualFold(subject, "math") {
		return "Maths"
	}
	return subject
}

// NormalizeSkillName lowers and collapses whitespace so the same skill
// matches across grades regardless of labelling. Matching is exact after
// normalization; there is no fuzzy matching.
func NormalizeSkillName(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

var canonicalClassPattern = regexp.MustCompile(`^(\d+)-([A-Z])$`)

// SortClassSections orders class labels by grade number then section letter.
func SortClassSections(classes []string) {
	sort.Slice(classes, func(i, j int) bool {
		gi, si := classSortKey(classes[i])
		gj, sj := classSortKey(classes[j])
		if gi != gj {
			return gi < gj
		}
		return si < sj
	})
}

// ClassSectionLess orders two class labels by grade number then section.
func ClassSectionLess(a, b string) bool {
	ga, sa := classSortKey(a)
	gb, sb := classSortKey(b)
	if ga != gb {
		return ga < gb
	}
	return sa < sb
}

func classSortKey(cls string) (int, string) {
	if m := canonicalClassPattern.FindStringSubmatch(cls); m != nil {
		grade, _ := strconv.Atoi(m[1])
		return grade, m[2]
	}
	return math.MaxInt32, cls
}

// Round1 rounds to one decimal place, the document-wide percentage precision.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
