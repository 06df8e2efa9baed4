package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/pepschool/asset-insight-api/internal/models"
)

// DatasetRepository persists score and skill records in Postgres as an
// alternative dataset source to the CSV loader. Records are replaced
// wholesale; the analysis layer never reads partially written datasets.
type DatasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a dataset repository.
func NewDatasetRepository(db *sqlx.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

type skillRow struct {
	ClassSection       string  `db:"class_section"`
	Subject            string  `db:"subject"`
	SkillName          string  `db:"skill_name"`
	Questions          string  `db:"questions"`
	SectionPerformance float64 `db:"section_performance"`
	SchoolPerformance  float64 `db:"school_performance"`
}

// Replace swaps the stored dataset for the provided one inside a single
// transaction.
func (r *DatasetRepository) Replace(ctx context.Context, ds *models.Dataset) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dataset replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM score_records`); err != nil {
		return fmt.Errorf("clear score records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM skill_records`); err != nil {
		return fmt.Errorf("clear skill records: %w", err)
	}

	for _, rec := range ds.Scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO score_records (class_section, subject, student_name, score, total_questions)
             VALUES ($1, $2, $3, $4, $5)`,
			rec.ClassSection, rec.Subject, rec.StudentName, rec.Score, rec.TotalQuestions); err != nil {
			return fmt.Errorf("insert score record %s: %w", rec.Key(), err)
		}
	}
	for _, rec := range ds.Skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO skill_records (class_section, subject, skill_name, questions, section_performance, school_performance)
             VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.ClassSection, rec.Subject, rec.SkillName, joinQuestionIDs(rec.QuestionIDs),
			rec.SectionPerformance, rec.SchoolPerformance); err != nil {
			return fmt.Errorf("insert skill record %s: %w", rec.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset replace: %w", err)
	}
	return nil
}

// Load reads the stored dataset back. Per-student skill sub-scores are not
// persisted; datasets loaded from Postgres carry class-level skill data
// only and the anomaly detector degrades accordingly.
func (r *DatasetRepository) Load(ctx context.Context) (*models.Dataset, error) {
	ds := &models.Dataset{}

	if err := r.db.SelectContext(ctx, &ds.Scores,
		`SELECT class_section, subject, student_name, score, total_questions
         FROM score_records
         ORDER BY class_section, subject, student_name`); err != nil {
		return nil, fmt.Errorf("load score records: %w", err)
	}

	var rows []skillRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT class_section, subject, skill_name, questions, section_performance, school_performance
         FROM skill_records
         ORDER BY class_section, subject, skill_name`); err != nil {
		return nil, fmt.Errorf("load skill records: %w", err)
	}
	for _, row := range rows {
		ds.Skills = append(ds.Skills, models.SkillRecord{
			ClassSection:       row.ClassSection,
			Subject:            row.Subject,
			SkillName:          row.SkillName,
			QuestionIDs:        splitQuestionIDs(row.Questions),
			SectionPerformance: row.SectionPerformance,
			SchoolPerformance:  row.SchoolPerformance,
		})
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("stored dataset invalid: %w", err)
	}
	return ds, nil
}

func joinQuestionIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitQuestionIDs(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.Atoi(part); err == nil {
			ids = append(ids, v)
		}
	}
	return ids
}
