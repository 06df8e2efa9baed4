package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pepschool/asset-insight-api/internal/models"
	appErrors "github.com/pepschool/asset-insight-api/pkg/errors"
)

// parseSkillsCSV reads a skills-by-question CSV: the same metadata rows as
// the score files, then a discovered "Skill Name" header over Questions,
// Section Perf % and School Perf % columns.
func parseSkillsCSV(r io.Reader, name string) ([]models.SkillRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSchema.Code, appErrors.ErrSchema.Status, fmt.Sprintf("read %s", name))
	}
	if len(rows) < 3 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: too few rows for the skills layout", name))
	}

	classSection := models.NormalizeClassSection(metaValue(rows, 0))
	subject := models.NormalizeSubject(metaValue(rows, 1))

	headerIdx := findHeaderRow(rows, "skill name")
	if headerIdx < 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: no Skill Name header row", name))
	}
	header := trimmedRow(rows[headerIdx])

	questionsCol, sectionCol, schoolCol := -1, -1, -1
	for i, col := range header {
		switch {
		case strings.EqualFold(col, "Questions"):
			questionsCol = i
		case strings.EqualFold(col, "Section Perf %"):
			sectionCol = i
		case strings.EqualFold(col, "School Perf %"):
			schoolCol = i
		}
	}
	if questionsCol < 0 || sectionCol < 0 || schoolCol < 0 {
		return nil, appErrors.Clone(appErrors.ErrSchema, fmt.Sprintf("%s: missing Questions or performance columns", name))
	}

	var records []models.SkillRecord
	for _, raw := range rows[headerIdx+1:] {
		row := trimmedRow(raw)
		if len(row) == 0 || row[0] == "" {
			continue
		}
		records = append(records, models.SkillRecord{
			ClassSection:       classSection,
			Subject:            subject,
			SkillName:          row[0],
			QuestionIDs:        parseQuestionList(cell(row, questionsCol)),
			SectionPerformance: parsePercent(cell(row, sectionCol)),
			SchoolPerformance:  parsePercent(cell(row, schoolCol)),
		})
	}
	return records, nil
}

// parseQuestionList splits a comma-separated id list, dropping anything that
// is not a positive integer.
func parseQuestionList(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.Atoi(part); err == nil && v > 0 {
			ids = append(ids, v)
		}
	}
	return ids
}

func parsePercent(raw string) float64 {
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "%")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

func cell(row []string, idx int) string {
	if idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}
