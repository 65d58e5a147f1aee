package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
)

var (
	// ErrSubmissionFinished indicates answers can no longer change.
	ErrSubmissionFinished = errors.New("submission already finished")
	// ErrAssessmentClosed indicates the assessment window does not accept attempts right now.
	ErrAssessmentClosed = errors.New("assessment is not open for submissions")
	// ErrSubmissionForbidden indicates a student tried to touch another student's attempt.
	ErrSubmissionForbidden = errors.New("submission belongs to another student")
)

// SubmissionGrader grades a finished submission.
type SubmissionGrader interface {
	GradeSubmission(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
}

// SubmissionService manages the attempt lifecycle: start, answer, finish.
type SubmissionService interface {
	Start(ctx context.Context, assessmentID, studentID uint) (dto.SubmissionResponse, error)
	SaveAnswers(ctx context.Context, submissionID uint, payload dto.SubmissionAnswersRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	Finish(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
	Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assessments repository.AssessmentRepository
	grader      SubmissionGrader
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs the submission lifecycle service.
func NewSubmissionService(submissions repository.SubmissionRepository, assessments repository.AssessmentRepository, grader SubmissionGrader, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissions,
		assessments: assessments,
		grader:      grader,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// Start opens an attempt, or returns the student's unfinished attempt if one exists.
// A student gets one attempt per assessment; once it is finished Start fails with
// ErrSubmissionFinished.
func (s *submissionService) Start(ctx context.Context, assessmentID, studentID uint) (dto.SubmissionResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrAssessmentNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	start, end := assessment.Window()
	switch grading.ComputeStatus(grading.Window{Start: start, End: end}, s.now()) {
	case grading.StatusComingSoon, grading.StatusEnded:
		return dto.SubmissionResponse{}, ErrAssessmentClosed
	}

	existing, err := s.submissions.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	switch {
	case err == nil && !existing.Finished:
		return dto.NewSubmissionResponse(existing), nil
	case err == nil:
		return dto.SubmissionResponse{}, ErrSubmissionFinished
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		AssessmentID: assessmentID,
		StudentID:    studentID,
		Answers:      datatypes.JSONMap{},
		Status:       models.SubmissionStatusInProgress,
	}
	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().Uint("submission_id", submission.ID).Uint("assessment_id", assessmentID).Uint("student_id", studentID).Msg("submission started")
	return dto.NewSubmissionResponse(submission), nil
}

// SaveAnswers replaces the answers of an unfinished attempt.
func (s *submissionService) SaveAnswers(ctx context.Context, submissionID uint, payload dto.SubmissionAnswersRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.load(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	if submission.Finished {
		return dto.SubmissionResponse{}, ErrSubmissionFinished
	}

	submission.Answers = datatypes.JSONMap(payload.Answers)
	if err := s.submissions.Update(ctx, &submission); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

// Finish closes the attempt and grades it. Finishing twice returns the stored result.
// An attempt finished without answers stays submitted and ungraded.
func (s *submissionService) Finish(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if !submission.Finished {
		finishedAt := s.now().UTC()
		submission.Finished = true
		submission.FinishedAt = &finishedAt
		submission.Status = models.SubmissionStatusSubmitted
		if err := s.submissions.Update(ctx, &submission); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.SubmissionResponse{}, ErrSubmissionNotFound
			}
			return dto.SubmissionResponse{}, err
		}
	} else if submission.IsGraded() {
		return dto.NewSubmissionResponse(submission), nil
	}

	if s.grader == nil {
		return dto.NewSubmissionResponse(submission), nil
	}

	graded, err := s.grader.GradeSubmission(ctx, submission.ID)
	if err != nil {
		if errors.Is(err, ErrNotGradable) {
			s.logger.Info().Uint("submission_id", submission.ID).Msg("finished submission has no answers to grade")
			return dto.NewSubmissionResponse(submission), nil
		}
		return dto.SubmissionResponse{}, err
	}

	return graded, nil
}

func (s *submissionService) Get(ctx context.Context, submissionID uint, actor ActivityActor) (dto.SubmissionResponse, error) {
	submission, err := s.load(ctx, submissionID, actor)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}
	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) load(ctx context.Context, submissionID uint, actor ActivityActor) (models.Submission, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, ErrSubmissionNotFound
		}
		return models.Submission{}, err
	}

	if !actor.IsStaff() && submission.StudentID != actor.ID {
		return models.Submission{}, ErrSubmissionForbidden
	}

	return submission, nil
}
