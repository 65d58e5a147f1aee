package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/observability"
	"github.com/noah-isme/gema-grading/internal/repository"
)

var (
	// ErrSubmissionNotFound indicates the submission was not located.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrAssessmentNotFound indicates the assessment was not located.
	ErrAssessmentNotFound = errors.New("assessment not found")
	// ErrNotGradable indicates the submission is unfinished or has no answers.
	ErrNotGradable = errors.New("submission is not gradable")
)

// GradingService runs the grading engine over stored submissions and persists the outcome.
type GradingService interface {
	GradeSubmission(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
	RegradeAssessment(ctx context.Context, assessmentID uint, actor ActivityActor) (dto.RegradeResponse, error)
}

// GradingServiceConfig tunes administrative re-grades.
type GradingServiceConfig struct {
	BatchSize int
}

type gradingService struct {
	submissions repository.SubmissionRepository
	assessments repository.AssessmentRepository
	grades      repository.GradeRepository
	events      EventPublisher
	activity    ActivityRecorder
	batchSize   int
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	submissions repository.SubmissionRepository,
	assessments repository.AssessmentRepository,
	grades repository.GradeRepository,
	events EventPublisher,
	activity ActivityRecorder,
	cfg GradingServiceConfig,
	logger zerolog.Logger,
) GradingService {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &gradingService{
		submissions: submissions,
		assessments: assessments,
		grades:      grades,
		events:      events,
		activity:    activity,
		batchSize:   batchSize,
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading/internal/service/grading"),
		now:         time.Now,
	}
}

func (s *gradingService) GradeSubmission(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.grade_submission", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
	))
	defer span.End()

	start := time.Now()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.GradingRuns().WithLabelValues("not_found").Inc()
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		observability.GradingRuns().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	if !submission.IsGradable() {
		observability.GradingRuns().WithLabelValues("not_gradable").Inc()
		span.SetStatus(codes.Error, "not_gradable")
		return dto.SubmissionResponse{}, ErrNotGradable
	}

	assessment, err := s.assessments.GetByID(ctx, submission.AssessmentID)
	if err != nil {
		observability.GradingRuns().WithLabelValues("failed").Inc()
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.SubmissionResponse{}, ErrAssessmentNotFound
		}
		span.SetStatus(codes.Error, "assessment_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	graded, err := s.grade(ctx, submission, assessment)
	if err != nil {
		observability.GradingRuns().WithLabelValues("failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_write_failed")
		return dto.SubmissionResponse{}, err
	}

	observability.GradingRuns().WithLabelValues("graded").Inc()
	observability.GradingDuration().Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Float64("grading.score", graded.Score),
		attribute.Float64("grading.max_score", graded.MaxScore),
	)

	return dto.NewSubmissionResponse(graded), nil
}

// grade evaluates a loaded submission against a loaded assessment and persists the result.
// Manual scores recorded on an earlier pass survive re-grading.
func (s *gradingService) grade(ctx context.Context, submission models.Submission, assessment models.Assessment) (models.Submission, error) {
	result := grading.Grade(engineQuestions(assessment.Questions), submission.Answers)
	result = carryManualScores(previousDetails(submission), result)

	for _, detail := range result.Details {
		observability.QuestionOutcomes().WithLabelValues(detail.QuestionType, questionOutcome(detail)).Inc()
		if detail.Error != "" {
			s.logger.Warn().
				Uint("submission_id", submission.ID).
				Uint("question_id", detail.QuestionID).
				Str("reason", detail.Error).
				Msg("question could not be evaluated")
		}
	}

	return persistResult(ctx, s.grades, s.events, s.logger, submission, assessment, result, s.now().UTC(), nil)
}

func (s *gradingService) RegradeAssessment(ctx context.Context, assessmentID uint, actor ActivityActor) (dto.RegradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.regrade_assessment", trace.WithAttributes(
		attribute.Int64("grading.assessment_id", int64(assessmentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.RegradeResponse{}, ErrAssessmentNotFound
		}
		span.SetStatus(codes.Error, "assessment_lookup_failed")
		return dto.RegradeResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{AssessmentID: &assessmentID, FinishedOnly: true})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_list_failed")
		return dto.RegradeResponse{}, err
	}

	correlationID := actor.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := s.logger.With().Uint("assessment_id", assessmentID).Str("correlation_id", correlationID).Logger()

	response := dto.RegradeResponse{
		AssessmentID:  assessmentID,
		Total:         len(submissions),
		FailedIDs:     []uint{},
		CorrelationID: correlationID,
	}

	for i, submission := range submissions {
		if i > 0 && i%s.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				span.RecordError(err)
				return response, err
			}
			logger.Info().Int("processed", i).Int("total", len(submissions)).Msg("regrade progress")
		}

		if !submission.IsGradable() {
			response.Skipped++
			observability.GradingRuns().WithLabelValues("not_gradable").Inc()
			continue
		}

		start := time.Now()
		if _, err := s.grade(ctx, submission, assessment); err != nil {
			response.Failed++
			response.FailedIDs = append(response.FailedIDs, submission.ID)
			observability.GradingRuns().WithLabelValues("failed").Inc()
			logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to regrade submission")
			continue
		}
		response.Graded++
		observability.GradingRuns().WithLabelValues("graded").Inc()
		observability.GradingDuration().Observe(time.Since(start).Seconds())
	}

	span.SetAttributes(
		attribute.Int("grading.regrade.total", response.Total),
		attribute.Int("grading.regrade.failed", response.Failed),
	)
	if response.Failed > 0 {
		span.SetStatus(codes.Error, "partial_failure")
	}

	logger.Info().
		Int("total", response.Total).
		Int("graded", response.Graded).
		Int("skipped", response.Skipped).
		Int("failed", response.Failed).
		Msg("assessment regraded")

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Action:        "assessment.regraded",
		EntityType:    "assessment",
		EntityID:      &assessment.ID,
		CorrelationID: correlationID,
		Metadata: map[string]interface{}{
			"course_id": assessment.CourseID,
			"total":     response.Total,
			"graded":    response.Graded,
			"skipped":   response.Skipped,
			"failed":    response.Failed,
		},
	})

	return response, nil
}

// persistResult writes a grading result atomically, mirrors it onto the returned
// submission and announces it. Publishing failures are logged only.
func persistResult(
	ctx context.Context,
	grades repository.GradeRepository,
	events EventPublisher,
	logger zerolog.Logger,
	submission models.Submission,
	assessment models.Assessment,
	result grading.Result,
	gradedAt time.Time,
	history *models.ManualGradeHistory,
) (models.Submission, error) {
	details, err := json.Marshal(result.Details)
	if err != nil {
		return models.Submission{}, fmt.Errorf("encode grading details: %w", err)
	}

	write := repository.GradingWrite{
		SubmissionID:   submission.ID,
		Status:         models.SubmissionStatusGraded,
		Score:          result.TotalScore,
		MaxScore:       result.MaxScore,
		Percentage:     result.Percentage,
		GradingDetails: datatypes.JSON(details),
		GradedAt:       gradedAt,
		Grade: models.Grade{
			CourseID:     assessment.CourseID,
			StudentID:    submission.StudentID,
			AssessmentID: assessment.ID,
			SubmissionID: submission.ID,
			Score:        result.TotalScore,
			MaxScore:     result.MaxScore,
			Weight:       assessment.Weight,
			Type:         assessment.Kind,
			Title:        assessment.Title,
			GradedAt:     gradedAt,
		},
		History: history,
	}

	if _, err := grades.SaveGradingResult(ctx, write); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	submission.Status = models.SubmissionStatusGraded
	submission.Score = result.TotalScore
	submission.MaxScore = result.MaxScore
	submission.Percentage = result.Percentage
	submission.GradingDetails = datatypes.JSON(details)
	submission.GradedAt = &gradedAt

	if events != nil {
		event := GradedEvent{
			ID:           uuid.NewString(),
			Type:         EventSubmissionGraded,
			SubmissionID: submission.ID,
			AssessmentID: assessment.ID,
			CourseID:     assessment.CourseID,
			StudentID:    submission.StudentID,
			Score:        result.TotalScore,
			MaxScore:     result.MaxScore,
			Percentage:   result.Percentage,
			LetterGrade:  grading.LetterGrade(result.Percentage),
			Manual:       history != nil,
			GradedAt:     gradedAt,
		}
		if err := events.PublishGraded(ctx, event); err != nil {
			logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish grading event")
		}
	}

	return submission, nil
}

func engineQuestions(questions []models.Question) []grading.Question {
	converted := make([]grading.Question, 0, len(questions))
	for _, question := range questions {
		converted = append(converted, engineQuestion(question))
	}
	return converted
}

func engineQuestion(question models.Question) grading.Question {
	return grading.Question{
		ID:        question.ID,
		Number:    question.QuestionNumber,
		Type:      string(question.Type),
		Text:      question.Text,
		Points:    question.Points,
		Choices:   json.RawMessage(question.Choices),
		Answer:    json.RawMessage(question.Answer),
		TextMatch: question.TextMatch,
	}
}

func previousDetails(submission models.Submission) map[string]grading.Detail {
	if len(submission.GradingDetails) == 0 {
		return nil
	}
	var details map[string]grading.Detail
	if err := json.Unmarshal(submission.GradingDetails, &details); err != nil {
		return nil
	}
	return details
}

// carryManualScores keeps manual scores for questions that still require manual grading.
func carryManualScores(previous map[string]grading.Detail, result grading.Result) grading.Result {
	if len(previous) == 0 {
		return result
	}

	carried := false
	for key, detail := range result.Details {
		old, ok := previous[key]
		if !ok || !old.ManuallyGraded || !detail.RequiresManualGrading || detail.Error != "" {
			continue
		}
		detail.Score = clampScore(old.Score, detail.MaxScore)
		detail.IsCorrect = detail.MaxScore > 0 && detail.Score >= detail.MaxScore
		detail.ManuallyGraded = true
		detail.Feedback = old.Feedback
		result.Details[key] = detail
		carried = true
	}

	if !carried {
		return result
	}
	return grading.Summarize(result.Details)
}

func clampScore(score, max float64) float64 {
	if score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return score
}

func questionOutcome(detail grading.Detail) string {
	switch {
	case detail.Error != "":
		return "error"
	case detail.RequiresManualGrading && !detail.ManuallyGraded:
		return "manual"
	case detail.IsCorrect:
		return "correct"
	default:
		return "incorrect"
	}
}
