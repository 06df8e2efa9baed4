package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

// scoreFile is one parsed student-performance CSV. Per-student answers are
// kept until skills are known so student-level skill sub-scores can be
// derived from the question ids each skill covers.
type scoreFile struct {
	classSection   string
	subject        string
	totalQuestions int
	questionIDs    []int
	correct        map[int]string
	students       []studentRow
}

type studentRow struct {
	name    string
	score   int
	answers map[int]string
}

var questionColumnPattern = regexp.MustCompile(`^Q(\d+)$`)

// parseScoreCSV reads a student performance CSV with the assessment
// provider's layout: class/section and subject metadata rows, a discovered
// "Student Name" header row, a "Correct Answer" row, student rows, and
// trailing section/school average rows that are skipped.
//
// The "Total Score" column is authoritative; scores are never recomputed
// from the answers, which carry their own weighting upstream.
func parseScoreCSV(r io.Reader, name string) (*scoreFile, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, fmt.Sprintf("read %s", name))
	}
	if len(rows) < 3 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: too few rows for the score layout", name))
	}

	file := &scoreFile{
		classSection: models.NormalizeClassSection(metaValue(rows, 0)),
		subject:      models.NormalizeSubject(metaValue(rows, 1)),
		correct:      map[int]string{},
	}

	headerIdx := findHeaderRow(rows, "student name")
	if headerIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: no Student Name header row", name))
	}
	header := trimmedRow(rows[headerIdx])

	scoreCol := -1
	questionCols := map[int]int{}
	for i, col := range header {
		if strings.EqualFold(col, "Total Score") {
			scoreCol = i
			continue
		}
		if m := questionColumnPattern.FindStringSubmatch(col); m != nil {
			qid, _ := strconv.Atoi(m[1])
			questionCols[i] = qid
			file.questionIDs = append(file.questionIDs, qid)
		}
	}
	if scoreCol < 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: missing Total Score column", name))
	}
	file.totalQuestions = len(questionCols)
	if file.totalQuestions == 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: no question columns", name))
	}

	for _, raw := range rows[headerIdx+1:] {
		row := trimmedRow(raw)
		if len(row) == 0 || row[0] == "" {
			continue
		}
		label := row[0]
		if strings.Contains(strings.ToLower(label), "avg section") ||
			strings.Contains(strings.ToLower(label), "avg school") {
			continue
		}
		if strings.EqualFold(label, "Correct Answer") {
			for col, qid := range questionCols {
				if col < len(row) {
					file.correct[qid] = row[col]
				}
			}
			continue
		}

		student := studentRow{name: label, answers: map[int]string{}}
		if scoreCol < len(row) {
			if v, err := strconv.Atoi(row[scoreCol]); err == nil {
				student.score = v
			}
		}
		for col, qid := range questionCols {
			if col < len(row) {
				student.answers[qid] = row[col]
			}
		}
		file.students = append(file.students, student)
	}

	return file, nil
}

// records converts the parsed rows into validated score records, attaching
// the per-skill sub-scores derived from subjectSkills when the answer key
// is present.
func (f *scoreFile) records(subjectSkills []models.SkillRecord) []models.ScoreRecord {
	records := make([]models.ScoreRecord, 0, len(f.students))
	for _, student := range f.students {
		rec := models.ScoreRecord{
			ClassSection:   f.classSection,
			Subject:        f.subject,
			StudentName:    student.name,
			Score:          student.score,
			TotalQuestions: f.totalQuestions,
		}
		if len(f.correct) > 0 && len(subjectSkills) > 0 {
			rec.SkillPerformance = f.skillPerformance(student, subjectSkills)
		}
		records = append(records, rec)
	}
	return records
}

// skillPerformance scores one student on each skill as the share of that
// skill's questions answered correctly. Question ids outside this file's
// columns are skipped; a skill with no scoreable question is omitted
// entirely rather than reported as zero.
func (f *scoreFile) skillPerformance(student studentRow, skills []models.SkillRecord) map[string]float64 {
	perf := map[string]float64{}
	for _, skill := range skills {
		correct, total := 0, 0
		for _, qid := range skill.QuestionIDs {
			key, ok := f.correct[qid]
			if !ok || key == "" {
				continue
			}
			answer, ok := student.answers[qid]
			if !ok {
				continue
			}
			total++
			if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(key)) {
				correct++
			}
		}
		if total == 0 {
			continue
		}
		perf[skill.SkillName] = models.Round1(float64(correct) / float64(total) * 100)
	}
	if len(perf) == 0 {
		return nil
	}
	return perf
}

func metaValue(rows [][]string, idx int) string {
	if idx < len(rows) && len(rows[idx]) > 1 {
		return rows[idx][1]
	}
	return ""
}

func findHeaderRow(rows [][]string, firstColumn string) int {
	for i, row := range rows {
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), firstColumn) {
			return i
		}
	}
	return -1
}

func trimmedRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = strings.TrimSpace(cell)
	}
	return out
}
