package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
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

type recordingPublisher struct {
	mu     sync.Mutex
	events []GradedEvent
	err    error
}

func (p *recordingPublisher) PublishGraded(ctx context.Context, event GradedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) last() GradedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

type stubActivityRecorder struct {
	entries []ActivityEntry
}

func (s *stubActivityRecorder) Record(ctx context.Context, entry ActivityEntry) (dto.ActivityResponse, error) {
	s.entries = append(s.entries, entry)
	return dto.ActivityResponse{Action: entry.Action, EntityType: entry.EntityType, EntityID: entry.EntityID}, nil
}

// quizFixture is a course with one assignment holding one question of each type:
// mcq (2 pts), true/false (1 pt), short answer (2 pts) and essay (5 pts).
type quizFixture struct {
	course     models.Course
	student    models.Student
	assessment models.Assessment
	mcq        models.Question
	trueFalse  models.Question
	short      models.Question
	essay      models.Question
}

func seedQuiz(t *testing.T, db *gorm.DB) quizFixture {
	t.Helper()

	course := models.Course{Code: "GEO1", Title: "Geography"}
	require.NoError(t, db.Create(&course).Error)
	student := models.Student{Name: "Grace", Email: "grace@example.com"}
	require.NoError(t, db.Create(&student).Error)

	assessment := models.Assessment{
		CourseID: course.ID,
		Title:    "Capitals quiz",
		Kind:     models.AssessmentKindAssignment,
		MaxScore: 10,
		Weight:   0.5,
		Questions: []models.Question{
			{QuestionNumber: 1, Type: models.QuestionTypeMCQ, Text: "Capital of Italy?", Points: 2,
				Choices: datatypes.JSON(`["Paris","Rome","Madrid"]`), Answer: datatypes.JSON(`[1]`)},
			{QuestionNumber: 2, Type: models.QuestionTypeTrueFalse, Text: "Paris is in France", Points: 1,
				Answer: datatypes.JSON(`["true"]`)},
			{QuestionNumber: 3, Type: models.QuestionTypeShortAnswer, Text: "Capital of France?", Points: 2,
				Answer: datatypes.JSON(`["Paris"]`)},
			{QuestionNumber: 4, Type: models.QuestionTypeEssay, Text: "Describe Madrid", Points: 5,
				Answer: datatypes.JSON(`null`)},
		},
	}
	require.NoError(t, db.Create(&assessment).Error)

	return quizFixture{
		course:     course,
		student:    student,
		assessment: assessment,
		mcq:        assessment.Questions[0],
		trueFalse:  assessment.Questions[1],
		short:      assessment.Questions[2],
		essay:      assessment.Questions[3],
	}
}

// answers answers the mcq, true/false and short answer correctly and writes an essay.
func (f quizFixture) answers() datatypes.JSONMap {
	return datatypes.JSONMap{
		key(f.mcq.ID):       float64(1),
		key(f.trueFalse.ID): "True",
		key(f.short.ID):     " paris ",
		key(f.essay.ID):     "A city on a plateau.",
	}
}

func (f quizFixture) finishedSubmission(t *testing.T, db *gorm.DB, answers datatypes.JSONMap) models.Submission {
	t.Helper()
	finishedAt := time.Now().UTC()
	submission := models.Submission{
		AssessmentID: f.assessment.ID,
		StudentID:    f.student.ID,
		Answers:      answers,
		Status:       models.SubmissionStatusSubmitted,
		Finished:     true,
		FinishedAt:   &finishedAt,
	}
	require.NoError(t, db.Omit("Assessment", "Student").Create(&submission).Error)
	return submission
}

func key(id uint) string {
	return fmt.Sprintf("%d", id)
}

func newTestGradingService(db *gorm.DB, events EventPublisher, activity ActivityRecorder) GradingService {
	return NewGradingService(
		repository.NewSubmissionRepository(db),
		repository.NewAssessmentRepository(db),
		repository.NewGradeRepository(db),
		events,
		activity,
		GradingServiceConfig{BatchSize: 2},
		testLogger(),
	)
}
