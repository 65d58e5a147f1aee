package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/handler"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
	"github.com/noah-isme/gema-grading/internal/service"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Details map[string]string `json:"details"`
	Message string            `json:"message"`
}

type testServer struct {
	db          *gorm.DB
	assessments *handler.AssessmentHandler
	submissions *handler.SubmissionHandler
	grading     *handler.GradingHandler
	courses     *handler.CourseGradeHandler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:handler_%s?mode=memory&cache=shared", name)), &gorm.Config{})
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

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	activity := service.NewActivityService(repository.NewActivityLogRepository(db), logger)
	events := service.NewNATSEventPublisher(nil, "")
	grader := service.NewGradingService(submissionRepo, assessmentRepo, gradeRepo, events, activity, service.GradingServiceConfig{BatchSize: 10}, logger)
	manual := service.NewManualGradingService(submissionRepo, assessmentRepo, gradeRepo, events, activity, validate, logger)

	return &testServer{
		db: db,
		assessments: handler.NewAssessmentHandler(
			service.NewAssessmentService(assessmentRepo, validate, logger),
			service.NewAssignmentStatusService(assessmentRepo, nil, time.Minute, logger),
			logger,
		),
		submissions: handler.NewSubmissionHandler(service.NewSubmissionService(submissionRepo, assessmentRepo, grader, validate, logger), logger),
		grading:     handler.NewGradingHandler(grader, manual, activity, logger),
		courses:     handler.NewCourseGradeHandler(service.NewCourseGradeService(gradeRepo, logger), logger),
	}
}

// app mounts every handler under /api/v1 as the given user. A zero userID stays anonymous.
func (s *testServer) app(userID uint, role string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals(middleware.LocalUserID, userID)
			c.Locals(middleware.LocalUserRole, role)
		}
		return c.Next()
	})
	s.assessments.Register(api)
	s.submissions.Register(api)
	s.grading.Register(api)
	s.courses.Register(api)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func decodeData(t *testing.T, payload envelope, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(payload.Data, target))
}

type quiz struct {
	course     models.Course
	student    models.Student
	assessment models.Assessment
}

func (q quiz) question(i int) models.Question {
	return q.assessment.Questions[i]
}

// answers solves the mcq, true/false and short answer questions and writes an essay.
func (q quiz) answers() map[string]interface{} {
	return map[string]interface{}{
		id(q.question(0).ID): 1,
		id(q.question(1).ID): "true",
		id(q.question(2).ID): "Paris",
		id(q.question(3).ID): "It sits on a plateau.",
	}
}

func seedQuiz(t *testing.T, db *gorm.DB) quiz {
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

	return quiz{course: course, student: student, assessment: assessment}
}

func id(v uint) string {
	return fmt.Sprintf("%d", v)
}

