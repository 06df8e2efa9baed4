package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClassSection(t *testing.T) {
	cases := map[string]string{
		"3 A":      "3-A",
		"3-A":      "3-A",
		"3  a":     "3-A",
		"10-B":     "10-B",
		" 6-A ":    "6-A",
		"Grade X":  "Grade X",
		"3-A A":    "3-A",
		"unparsed": "unparsed",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeClassSection(raw), "raw %q", raw)
	}
}

func TestNormalizeSubject(t *testing.T) {
	assert.Equal(t, "Maths", NormalizeSubject("Math"))
	assert.Equal(t, "Maths", NormalizeSubject("math"))
	assert.Equal(t, "Maths", NormalizeSubject("Maths"))
	assert.Equal(t, "Science", NormalizeSubject(" Science "))
}

func TestNormalizeSkillName(t *testing.T) {
	assert.Equal(t, "reading comprehension", NormalizeSkillName("Reading  Comprehension"))
	assert.Equal(t, "fact recall", NormalizeSkillName(" FACT\tRecall "))
}

func TestSortClassSections(t *testing.T) {
	classes := []string{"10-A", "3-B", "3-A", "8-A", "6-A"}
	SortClassSections(classes)
	assert.Equal(t, []string{"3-A", "3-B", "6-A", "8-A", "10-A"}, classes)
}

func validDataset() *Dataset {
	return &Dataset{
		Scores: []ScoreRecord{
			{ClassSection: "6-A", Subject: "Maths", StudentName: "Asha", Score: 30, TotalQuestions: 40},
			{ClassSection: "3-A", Subject: "English", StudentName: "Binu", Score: 10, TotalQuestions: 50},
		},
		Skills: []SkillRecord{
			{ClassSection: "6-A", Subject: "Maths", SkillName: "Algebra", QuestionIDs: []int{1, 2}, SectionPerformance: 55, SchoolPerformance: 60},
		},
	}
}

func TestDatasetValidate(t *testing.T) {
	require.NoError(t, validDataset().Validate())

	ds := validDataset()
	ds.Scores[0].Score = 41
	assert.ErrorContains(t, ds.Validate(), "out of range")

	ds = validDataset()
	ds.Scores[0].TotalQuestions = 0
	assert.ErrorContains(t, ds.Validate(), "total_questions")

	ds = validDataset()
	ds.Scores = append(ds.Scores, ds.Scores[0])
	assert.ErrorContains(t, ds.Validate(), "duplicate score record")

	ds = validDataset()
	ds.Skills[0].QuestionIDs = nil
	assert.ErrorContains(t, ds.Validate(), "question list is empty")

	ds = validDataset()
	ds.Skills[0].SectionPerformance = 101
	assert.ErrorContains(t, ds.Validate(), "section performance")
}

func TestDatasetHashStable(t *testing.T) {
	a := validDataset()
	b := validDataset()
	// Record order never changes the digest.
	b.Scores[0], b.Scores[1] = b.Scores[1], b.Scores[0]
	assert.Equal(t, a.Hash(), b.Hash())

	c := validDataset()
	c.Scores[0].Score = 31
	assert.NotEqual(t, a.Hash(), c.Hash())
}

func TestDatasetClassesAndSubjects(t *testing.T) {
	ds := validDataset()
	assert.Equal(t, []string{"3-A", "6-A"}, ds.Classes())
	assert.Equal(t, []string{"English", "Maths"}, ds.Subjects())
}

func TestDatasetClassesIncludeSkillOnlySections(t *testing.T) {
	ds := validDataset()
	ds.Skills = append(ds.Skills, SkillRecord{
		ClassSection:       "7-A",
		Subject:            "Science",
		SkillName:          "Fact Recall",
		QuestionIDs:        []int{3},
		SectionPerformance: 48,
		SchoolPerformance:  52,
	})

	assert.Equal(t, []string{"3-A", "6-A", "7-A"}, ds.Classes())
	assert.Contains(t, ds.Subjects(), "Science")
}

func TestScoreRecordPercentage(t *testing.T) {
	rec := ScoreRecord{Score: 1, TotalQuestions: 3}
	assert.Equal(t, 33.3, rec.Percentage())

	rec = ScoreRecord{Score: 40, TotalQuestions: 40}
	assert.Equal(t, 100.0, rec.Percentage())

	rec = ScoreRecord{Score: 5, TotalQuestions: 0}
	assert.Equal(t, 0.0, rec.Percentage())
}

func TestJWTClaimsCanSee(t *testing.T) {
	management := &JWTClaims{Role: RoleManagement}
	assert.True(t, management.CanSee("6-A"))

	middle := &JWTClaims{Role: RoleMiddle, AllowedClasses: []string{"6-A", "7-A", "8-A"}}
	assert.True(t, middle.CanSee("7-A"))
	assert.False(t, middle.CanSee("3-A"))
}
