package models

// GroupStatistics are the descriptive statistics for one non-empty group of
// percentages. Median is the headline value throughout the document; the
// mean is secondary and never drives thresholding. Std is the sample
// standard deviation (n-1), reported as 0 for a single record.
type GroupStatistics struct {
	Median              float64 `json:"median"`
	Mean                float64 `json:"average"`
	Min                 float64 `json:"min"`
	Max                 float64 `json:"max"`
	Q1                  float64 `json:"q1"`
	Q3                  float64 `json:"q3"`
	Std                 float64 `json:"std"`
	Count               int     `json:"count"`
	BelowMedianCount    int     `json:"below_median_count"`
	BelowThresholdCount int     `json:"below_threshold_count"`
}

// StudentResult is one student's line in a class/subject report.
type StudentResult struct {
	Name             string             `json:"name"`
	Score            int                `json:"score"`
	TotalQuestions   int                `json:"total_questions"`
	Percentage       float64            `json:"percentage"`
	SkillPerformance map[string]float64 `json:"skill_performance,omitempty"`
}

// ClassSubjectReport is the immutable per-(class, subject) report. It is
// rebuilt wholesale on every analysis run; nothing mutates it after
// assembly.
type ClassSubjectReport struct {
	ClassSection     string          `json:"class_section"`
	Subject          string          `json:"subject"`
	StudentCount     int             `json:"total_students"`
	TotalQuestions   int             `json:"total_questions"`
	MeanPercentage   float64         `json:"class_average"`
	MedianPercentage float64         `json:"class_median"`
	Statistics       GroupStatistics `json:"statistics"`
	Students         []StudentResult `json:"students"`
	Skills           []SkillRecord   `json:"skills"`
}

// SubjectStat pairs the median and mean for one subject within a grade.
type SubjectStat struct {
	Median float64 `json:"median"`
	Mean   float64 `json:"average"`
}

// GradeSummary pools every subject's percentages for one class section.
type GradeSummary struct {
	ClassSection  string                 `json:"class_section"`
	OverallMedian float64                `json:"overall_median"`
	OverallMean   float64                `json:"overall_average"`
	BySubject     map[string]SubjectStat `json:"by_subject"`
}

// PerformanceMatrix is the class x subject table of median percentages.
// Cells is indexed [class][subject] following the Classes and Subjects
// order; a nil cell means no data for that combination and must never be
// read as zero.
type PerformanceMatrix struct {
	Classes  []string     `json:"classes"`
	Subjects []string     `json:"subjects"`
	Cells    [][]*float64 `json:"cells"`
}

// Cell returns the median for a (class, subject) pair and whether data
// exists for it.
func (m *PerformanceMatrix) Cell(classSection, subject string) (float64, bool) {
	for i, cls := range m.Classes {
		if cls != classSection {
			continue
		}
		for j, subj := range m.Subjects {
			if subj != subject {
				continue
			}
			if m.Cells[i][j] == nil {
				return 0, false
			}
			return *m.Cells[i][j], true
		}
	}
	return 0, false
}

// SchoolInfo carries assessment metadata reported verbatim.
type SchoolInfo struct {
	SchoolName     string `json:"school_name"`
	SchoolCode     string `json:"school_code"`
	AssessmentName string `json:"assessment_name"`
	AssessmentDate string `json:"assessment_date"`
}

// SchoolStatistics summarises the whole school across every assessment.
type SchoolStatistics struct {
	Median           float64 `json:"median"`
	Mean             float64 `json:"average"`
	TotalStudents    int     `json:"total_students"`
	TotalAssessments int     `json:"total_assessments"`
}

// IntegrityIssue reports a partition-fatal dataset inconsistency together
// with the offending key so the source can be corrected and re-run. Other
// partitions proceed normally.
type IntegrityIssue struct {
	ClassSection string `json:"class_section"`
	Subject      string `json:"subject"`
	Detail       string `json:"detail"`
}

// SchoolDocument is the complete analysis output and the sole contract with
// the display layer; consumers render fields and never recompute statistics.
type SchoolDocument struct {
	SchoolInfo       SchoolInfo              `json:"school_info"`
	Classes          []string                `json:"classes"`
	Subjects         []string                `json:"subjects"`
	Reports          []ClassSubjectReport    `json:"reports"`
	GradeMedians     map[string]GradeSummary `json:"grade_medians"`
	SchoolStatistics SchoolStatistics        `json:"school_statistics"`
	Matrix           PerformanceMatrix       `json:"performance_matrix"`
	AtRisk           []AtRiskFinding         `json:"at_risk"`
	Weaknesses       []WeaknessFinding       `json:"persistent_weaknesses"`
	Anomalies        []AnomalyFinding        `json:"anomalies"`
	IntegrityIssues  []IntegrityIssue        `json:"integrity_issues,omitempty"`
	DatasetHash      string                  `json:"dataset_hash"`
}
