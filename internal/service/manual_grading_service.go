package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
)

var (
	// ErrQuestionNotFound indicates the question is not part of the submission's assessment.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNotManuallyGradable indicates the question is scored automatically.
	ErrNotManuallyGradable = errors.New("question is not manually graded")
	// ErrScoreExceedsMax indicates a manual score surpasses the question's points.
	ErrScoreExceedsMax = errors.New("score exceeds question points")
	// ErrSubmissionNotGraded indicates manual scores require an automatic pass first.
	ErrSubmissionNotGraded = errors.New("submission has not been graded yet")
)

// ManualGradingService lets teachers score questions the engine leaves for manual review.
type ManualGradingService interface {
	GradeQuestion(ctx context.Context, submissionID, questionID uint, payload dto.ManualGradeRequest, actor ActivityActor) (dto.SubmissionResponse, error)
}

type manualGradingService struct {
	submissions repository.SubmissionRepository
	assessments repository.AssessmentRepository
	grades      repository.GradeRepository
	events      EventPublisher
	activity    ActivityRecorder
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewManualGradingService constructs the manual grading service.
func NewManualGradingService(
	submissions repository.SubmissionRepository,
	assessments repository.AssessmentRepository,
	grades repository.GradeRepository,
	events EventPublisher,
	activity ActivityRecorder,
	validate *validator.Validate,
	logger zerolog.Logger,
) ManualGradingService {
	return &manualGradingService{
		submissions: submissions,
		assessments: assessments,
		grades:      grades,
		events:      events,
		activity:    activity,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "manual_grading_service").Logger(),
		now:         time.Now,
	}
}

func (s *manualGradingService) GradeQuestion(ctx context.Context, submissionID, questionID uint, payload dto.ManualGradeRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-grading/internal/service/manual_grading")
	ctx, span := tracer.Start(ctx, "grading.manual_grade")
	span.SetAttributes(
		attribute.Int64("grading.submission_id", int64(submissionID)),
		attribute.Int64("grading.question_id", int64(questionID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}
	if !submission.IsGraded() {
		span.SetStatus(codes.Error, "submission_not_graded")
		return dto.SubmissionResponse{}, ErrSubmissionNotGraded
	}

	assessment, err := s.assessments.GetByID(ctx, submission.AssessmentID)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.SubmissionResponse{}, ErrAssessmentNotFound
		}
		span.SetStatus(codes.Error, "assessment_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	question, ok := findQuestion(assessment.Questions, questionID)
	if !ok {
		span.SetStatus(codes.Error, "question_not_found")
		return dto.SubmissionResponse{}, ErrQuestionNotFound
	}
	if question.Type != models.QuestionTypeEssay || question.TextMatch {
		span.SetStatus(codes.Error, "not_manually_gradable")
		return dto.SubmissionResponse{}, ErrNotManuallyGradable
	}

	score := *payload.Score
	if score > question.Points+1e-9 {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.SubmissionResponse{}, ErrScoreExceedsMax
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))
	key := grading.QuestionKey(question.ID)

	// Details are rebuilt from the current questions so totals cover questions
	// added after the automatic pass.
	previous := previousDetails(submission)
	details := carryManualScores(previous, grading.Grade(engineQuestions(assessment.Questions), submission.Answers)).Details
	detail := details[key]

	if len(previous) == len(details) && detail.ManuallyGraded && math.Abs(detail.Score-score) < 1e-6 && detail.Feedback == feedback {
		if lastGrader, found := s.lastGrader(ctx, submission.ID, question.ID); found && lastGrader == actor.ID {
			span.SetAttributes(attribute.Bool("grading.idempotent", true))
			return dto.NewSubmissionResponse(submission), nil
		}
	}

	detail.Score = score
	detail.IsCorrect = detail.MaxScore > 0 && score >= detail.MaxScore
	detail.ManuallyGraded = true
	detail.Feedback = feedback
	details[key] = detail

	gradedAt := s.now().UTC()
	history := &models.ManualGradeHistory{
		SubmissionID: submission.ID,
		QuestionID:   question.ID,
		Score:        score,
		Feedback:     feedback,
		GradedBy:     actor.ID,
		GradedAt:     gradedAt,
	}

	updated, err := persistResult(ctx, s.grades, s.events, s.logger, submission, assessment, grading.Summarize(details), gradedAt, history)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grading_write_failed")
		return dto.SubmissionResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		ActorID:       actor.ID,
		ActorRole:     actor.Role,
		Action:        "submission.question_graded",
		EntityType:    "submission",
		EntityID:      &updated.ID,
		CorrelationID: actor.CorrelationID,
		Metadata: map[string]interface{}{
			"assessment_id": assessment.ID,
			"question_id":   question.ID,
			"student_id":    updated.StudentID,
			"score":         score,
			"total_score":   updated.Score,
		},
	})

	span.SetAttributes(
		attribute.Float64("grading.score", score),
		attribute.Float64("grading.total_score", updated.Score),
	)

	return dto.NewSubmissionResponse(updated), nil
}

func (s *manualGradingService) lastGrader(ctx context.Context, submissionID, questionID uint) (uint, bool) {
	history, err := s.grades.ListHistory(ctx, submissionID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submissionID).Msg("failed to load grading history")
		return 0, false
	}
	for _, entry := range history {
		if entry.QuestionID == questionID {
			return entry.GradedBy, true
		}
	}
	return 0, false
}

func findQuestion(questions []models.Question, id uint) (models.Question, bool) {
	for _, question := range questions {
		if question.ID == id {
			return question, true
		}
	}
	return models.Question{}, false
}
