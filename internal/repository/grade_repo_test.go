package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Course{},
		&models.Student{},
		&models.Assessment{},
		&models.Question{},
		&models.Submission{},
		&models.GradesSummary{},
		&models.Grade{},
		&models.ManualGradeHistory{},
		&models.ActivityLog{},
	))
	return db
}

type gradeFixture struct {
	course     models.Course
	student    models.Student
	assessment models.Assessment
	submission models.Submission
}

func seedGradeFixture(t *testing.T, db *gorm.DB) gradeFixture {
	t.Helper()
	course := models.Course{Code: "CS101", Title: "Intro"}
	require.NoError(t, db.Create(&course).Error)
	student := models.Student{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, db.Create(&student).Error)
	assessment := models.Assessment{CourseID: course.ID, Title: "Midterm", Kind: models.AssessmentKindExam, Weight: 0.4}
	require.NoError(t, db.Create(&assessment).Error)
	submission := models.Submission{
		AssessmentID: assessment.ID,
		StudentID:    student.ID,
		Answers:      datatypes.JSONMap{"1": float64(0)},
		Status:       models.SubmissionStatusSubmitted,
		Finished:     true,
	}
	require.NoError(t, db.Omit("Assessment", "Student").Create(&submission).Error)
	return gradeFixture{course: course, student: student, assessment: assessment, submission: submission}
}

func gradingWrite(f gradeFixture, score float64, gradedAt time.Time) GradingWrite {
	return GradingWrite{
		SubmissionID:   f.submission.ID,
		Status:         models.SubmissionStatusGraded,
		Score:          score,
		MaxScore:       10,
		Percentage:     score * 10,
		GradingDetails: datatypes.JSON(`{"1":{"score":1}}`),
		GradedAt:       gradedAt,
		Grade: models.Grade{
			CourseID:     f.course.ID,
			StudentID:    f.student.ID,
			AssessmentID: f.assessment.ID,
			SubmissionID: f.submission.ID,
			Score:        score,
			MaxScore:     10,
			Weight:       f.assessment.Weight,
			Type:         f.assessment.Kind,
			Title:        f.assessment.Title,
			GradedAt:     gradedAt,
		},
	}
}

func TestGradeRepositorySaveGradingResultUpserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	fixture := seedGradeFixture(t, db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	first, err := repo.SaveGradingResult(ctx, gradingWrite(fixture, 6, now))
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.NotZero(t, first.GradesSummaryID)

	second, err := repo.SaveGradingResult(ctx, gradingWrite(fixture, 8, now.Add(time.Minute)))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.GradesSummaryID, second.GradesSummaryID)
	require.Equal(t, 8.0, second.Score)

	var count int64
	require.NoError(t, db.Model(&models.Grade{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.GradesSummary{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	var stored models.Submission
	require.NoError(t, db.First(&stored, fixture.submission.ID).Error)
	require.Equal(t, 8.0, stored.Score)
	require.Equal(t, 10.0, stored.MaxScore)
	require.Equal(t, 80.0, stored.Percentage)
	require.Equal(t, models.SubmissionStatusGraded, stored.Status)
	require.NotNil(t, stored.GradedAt)
	require.JSONEq(t, `{"1":{"score":1}}`, string(stored.GradingDetails))
}

func TestGradeRepositorySaveGradingResultRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	fixture := seedGradeFixture(t, db)

	write := gradingWrite(fixture, 5, time.Now().UTC())
	write.SubmissionID = fixture.submission.ID + 100

	_, err := repo.SaveGradingResult(context.Background(), write)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Grade{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.GradesSummary{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGradeRepositoryHistoryAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	fixture := seedGradeFixture(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	write := gradingWrite(fixture, 7, now)
	write.History = &models.ManualGradeHistory{
		SubmissionID: fixture.submission.ID,
		QuestionID:   3,
		Score:        4,
		Feedback:     "solid argument",
		GradedBy:     9,
		GradedAt:     now,
	}
	_, err := repo.SaveGradingResult(ctx, write)
	require.NoError(t, err)

	history, err := repo.ListHistory(ctx, fixture.submission.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "solid argument", history[0].Feedback)

	grades, err := repo.List(ctx, GradeFilter{CourseID: fixture.course.ID})
	require.NoError(t, err)
	require.Len(t, grades, 1)

	other := uint(999)
	grades, err = repo.List(ctx, GradeFilter{CourseID: fixture.course.ID, StudentID: &other})
	require.NoError(t, err)
	require.Empty(t, grades)
}

func TestAssessmentRepositoryAddQuestionNumbersSequentially(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	assessment := models.Assessment{CourseID: 1, Title: "Quiz", Kind: models.AssessmentKindAssignment}
	require.NoError(t, repo.Create(ctx, &assessment))

	second := models.Question{AssessmentID: assessment.ID, Type: models.QuestionTypeEssay, Points: 5, Text: "b"}
	first := models.Question{AssessmentID: assessment.ID, Type: models.QuestionTypeEssay, Points: 5, Text: "a", QuestionNumber: 1}
	require.NoError(t, repo.AddQuestion(ctx, &first))
	require.NoError(t, repo.AddQuestion(ctx, &second))
	require.Equal(t, 2, second.QuestionNumber)

	loaded, err := repo.GetByID(ctx, assessment.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Questions, 2)
	require.Equal(t, "a", loaded.Questions[0].Text)
	require.Equal(t, "b", loaded.Questions[1].Text)

	err = repo.AddQuestion(ctx, &models.Question{AssessmentID: assessment.ID + 50, Type: models.QuestionTypeEssay, Points: 1})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssessmentRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAssessmentRepository(db)
	ctx := context.Background()

	for _, a := range []models.Assessment{
		{CourseID: 1, Title: "Final Exam", Kind: models.AssessmentKindExam},
		{CourseID: 1, Title: "Homework 1", Kind: models.AssessmentKindAssignment},
		{CourseID: 2, Title: "Other course", Kind: models.AssessmentKindExam},
	} {
		item := a
		require.NoError(t, repo.Create(ctx, &item))
	}

	items, total, err := repo.List(ctx, AssessmentFilter{CourseID: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)

	items, total, err = repo.List(ctx, AssessmentFilter{CourseID: 1, Kind: string(models.AssessmentKindExam)})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Final Exam", items[0].Title)

	items, _, err = repo.List(ctx, AssessmentFilter{CourseID: 1, Search: "home"})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestSubmissionRepositoryUpdateKeepsGradingFields(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	fixture := seedGradeFixture(t, db)
	ctx := context.Background()

	require.NoError(t, db.Model(&models.Submission{}).Where("id = ?", fixture.submission.ID).Update("score", 4).Error)

	submission, err := repo.GetByID(ctx, fixture.submission.ID)
	require.NoError(t, err)
	require.Equal(t, fixture.assessment.Title, submission.Assessment.Title)
	submission.Answers = datatypes.JSONMap{"1": float64(2)}
	submission.Score = 0
	require.NoError(t, repo.Update(ctx, &submission))

	reloaded, err := repo.GetByID(ctx, fixture.submission.ID)
	require.NoError(t, err)
	require.Equal(t, 4.0, reloaded.Score)
	require.Equal(t, json.Number("2"), reloaded.Answers["1"])

	finished, err := repo.List(ctx, SubmissionFilter{AssessmentID: &fixture.assessment.ID, FinishedOnly: true})
	require.NoError(t, err)
	require.Len(t, finished, 1)

	missing := models.Submission{ID: 4242}
	require.ErrorIs(t, repo.Update(ctx, &missing), gorm.ErrRecordNotFound)
}
