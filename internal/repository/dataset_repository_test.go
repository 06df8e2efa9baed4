package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pepschool/asset-insight-api/internal/models"
)

func newDatasetRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestDatasetRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM score_records").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM skill_records").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO score_records").
		WithArgs("6-A", "Maths", "Asha", 30, 40).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO skill_records").
		WithArgs("6-A", "Maths", "Algebra", "1,2,3", 62.5, 58.0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	ds := &models.Dataset{
		Scores: []models.ScoreRecord{
			{ClassSection: "6-A", Subject: "Maths", StudentName: "Asha", Score: 30, TotalQuestions: 40},
		},
		Skills: []models.SkillRecord{
			{ClassSection: "6-A", Subject: "Maths", SkillName: "Algebra", QuestionIDs: []int{1, 2, 3}, SectionPerformance: 62.5, SchoolPerformance: 58.0},
		},
	}
	require.NoError(t, repo.Replace(context.Background(), ds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryReplaceRollsBackOnInsertError(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM score_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM skill_records").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO score_records").
		WithArgs("6-A", "Maths", "Asha", 30, 40).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	ds := &models.Dataset{
		Scores: []models.ScoreRecord{
			{ClassSection: "6-A", Subject: "Maths", StudentName: "Asha", Score: 30, TotalQuestions: 40},
		},
	}
	err := repo.Replace(context.Background(), ds)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert score record")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryLoad(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)

	scoreRows := sqlmock.NewRows([]string{"class_section", "subject", "student_name", "score", "total_questions"}).
		AddRow("6-A", "Maths", "Asha", 30, 40).
		AddRow("6-A", "Maths", "Binu", 20, 40)
	mock.ExpectQuery("SELECT class_section, subject, student_name").
		WillReturnRows(scoreRows)

	skillRows := sqlmock.NewRows([]string{"class_section", "subject", "skill_name", "questions", "section_performance", "school_performance"}).
		AddRow("6-A", "Maths", "Algebra", "1, 2,3", 62.5, 58.0)
	mock.ExpectQuery("SELECT class_section, subject, skill_name").
		WillReturnRows(skillRows)

	ds, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Scores, 2)
	assert.Equal(t, "Asha", ds.Scores[0].StudentName)
	require.Len(t, ds.Skills, 1)
	assert.Equal(t, []int{1, 2, 3}, ds.Skills[0].QuestionIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetRepositoryLoadRejectsInvalidStoredData(t *testing.T) {
	db, mock, cleanup := newDatasetRepoMock(t)
	defer cleanup()

	repo := NewDatasetRepository(db)

	scoreRows := sqlmock.NewRows([]string{"class_section", "subject", "student_name", "score", "total_questions"}).
		AddRow("6-A", "Maths", "Asha", 50, 40)
	mock.ExpectQuery("SELECT class_section, subject, student_name").
		WillReturnRows(scoreRows)
	mock.ExpectQuery("SELECT class_section, subject, skill_name").
		WillReturnRows(sqlmock.NewRows([]string{"class_section", "subject", "skill_name", "questions", "section_performance", "school_performance"}))

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stored dataset invalid")
	assert.NoError(t, mock.ExpectationsWereMet())
}
