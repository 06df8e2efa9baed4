package models

// SubjectScore pairs a subject with a student's percentage in it.
type SubjectScore struct {
	Subject    string  `json:"subject"`
	Percentage float64 `json:"percentage"`
}

// AtRiskFinding flags a student below the risk threshold in two or more
// subjects within one class section.
type AtRiskFinding struct {
	ClassSection    string         `json:"class_section"`
	StudentName     string         `json:"student_name"`
	FailingSubjects []SubjectScore `json:"failing_subjects"`
	FailingCount    int            `json:"failing_count"`
}

// GradeSkillValue is one grade's class-level performance for a skill.
type GradeSkillValue struct {
	ClassSection       string  `json:"class_section"`
	SectionPerformance float64 `json:"section_performance"`
}

// WeaknessFinding reports a skill persistently below the weakness threshold
// across enough distinct grades to indicate a curriculum-level gap rather
// than an individual one.
type WeaknessFinding struct {
	Subject    string            `json:"subject"`
	SkillName  string            `json:"skill_name"`
	Grades     []GradeSkillValue `json:"grades"`
	GradeCount int               `json:"grade_count"`
}

// AnomalyCategory names an unusual student skill-profile shape. Categories
// are non-exclusive; a student may carry several findings.
type AnomalyCategory string

const (
	// AnomalyBlindSpot: strong subject average hiding a collapsed skill.
	AnomalyBlindSpot AnomalyCategory = "blind_spot"
	// AnomalySubjectSpecialist: one strong subject against one weak subject.
	AnomalySubjectSpecialist AnomalyCategory = "subject_specialist"
	// AnomalyInvertedSkills: higher-order skills outpacing foundational ones.
	AnomalyInvertedSkills AnomalyCategory = "inverted_skill_pattern"
	// AnomalyExtremeVariance: a perfect and a failing skill in one subject.
	AnomalyExtremeVariance AnomalyCategory = "extreme_intra_subject_variance"
	// AnomalyCrossVariance: widely spread skill scores across subjects.
	// The broadest category; it commonly matches a large share of students.
	AnomalyCrossVariance AnomalyCategory = "high_cross_subject_variance"
)

// SkillScore locates one skill score inside a student's profile.
type SkillScore struct {
	Subject string  `json:"subject"`
	Skill   string  `json:"skill"`
	Value   float64 `json:"value"`
}

// AnomalyEvidence records the values that triggered a finding.
type AnomalyEvidence struct {
	Detail   string         `json:"detail"`
	Subjects []SubjectScore `json:"subjects,omitempty"`
	Skills   []SkillScore   `json:"skills,omitempty"`
}

// AnomalyFinding is one matched category for one student.
type AnomalyFinding struct {
	ClassSection string          `json:"class_section"`
	StudentName  string          `json:"student_name"`
	Category     AnomalyCategory `json:"category"`
	Evidence     AnomalyEvidence `json:"evidence"`
}
