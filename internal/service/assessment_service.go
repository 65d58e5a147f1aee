package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
)

var (
	// ErrInvalidAnswerKey indicates a question's answer key cannot be graded.
	ErrInvalidAnswerKey = grading.ErrInvalidAnswerKey
	// ErrInvalidWindow indicates a window whose end precedes its start.
	ErrInvalidWindow = errors.New("window end must be after its start")
	// ErrInvalidTitle indicates a title with no text left after sanitising.
	ErrInvalidTitle = errors.New("title must contain text")
)

// AssessmentService handles authoring of assessments and their questions.
type AssessmentService interface {
	Create(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error)
	Get(ctx context.Context, id uint, includeKeys bool) (dto.AssessmentResponse, error)
	List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error)
	AddQuestion(ctx context.Context, assessmentID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error)
}

type assessmentService struct {
	repo      repository.AssessmentRepository
	validator *validator.Validate
	titles    *bluemonday.Policy
	content   *bluemonday.Policy
	logger    zerolog.Logger
}

// NewAssessmentService constructs the authoring service.
func NewAssessmentService(repo repository.AssessmentRepository, validate *validator.Validate, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		repo:      repo,
		validator: validate,
		titles:    bluemonday.StrictPolicy(),
		content:   bluemonday.UGCPolicy(),
		logger:    logger.With().Str("component", "assessment_service").Logger(),
	}
}

func (s *assessmentService) Create(ctx context.Context, payload dto.AssessmentCreateRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssessmentResponse{}, err
	}

	assessment := models.Assessment{
		CourseID:  payload.CourseID,
		Title:     strings.TrimSpace(s.titles.Sanitize(payload.Title)),
		Kind:      models.AssessmentKind(payload.Kind),
		MaxScore:  payload.MaxScore,
		Weight:    payload.Weight,
		StartedAt: payload.StartedAt,
		ExpiredAt: payload.ExpiredAt,
	}
	if assessment.IsExam() {
		assessment.OpenAt = payload.OpenAt
		assessment.CloseAt = payload.CloseAt
	}

	start, end := assessment.Window()
	if start != nil && end != nil && !end.After(*start) {
		return dto.AssessmentResponse{}, ErrInvalidWindow
	}
	if assessment.Title == "" {
		return dto.AssessmentResponse{}, ErrInvalidTitle
	}

	if err := s.repo.Create(ctx, &assessment); err != nil {
		s.logger.Error().Err(err).Uint("course_id", payload.CourseID).Msg("failed to create assessment")
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment, true), nil
}

func (s *assessmentService) Get(ctx context.Context, id uint, includeKeys bool) (dto.AssessmentResponse, error) {
	assessment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment, includeKeys), nil
}

func (s *assessmentService) List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error) {
	req.Page, req.PageSize = dto.NormalizePage(req.Page, req.PageSize)
	filter := repository.AssessmentFilter{
		CourseID: req.CourseID,
		Kind:     strings.ToLower(strings.TrimSpace(req.Kind)),
		Search:   strings.TrimSpace(req.Search),
		Sort:     req.Sort,
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	assessments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return dto.AssessmentListResponse{}, err
	}

	items := make([]dto.AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		items = append(items, dto.NewAssessmentResponse(assessment, false))
	}

	return dto.AssessmentListResponse{
		Items:      items,
		Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total),
	}, nil
}

// AddQuestion validates and normalises the answer key before storing the question.
func (s *assessmentService) AddQuestion(ctx context.Context, assessmentID uint, payload dto.QuestionCreateRequest) (dto.QuestionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.QuestionResponse{}, err
	}

	var choices json.RawMessage
	if len(payload.Choices) > 0 {
		encoded, err := json.Marshal(payload.Choices)
		if err != nil {
			return dto.QuestionResponse{}, err
		}
		choices = encoded
	}

	key, err := grading.NormalizeAnswerKey(grading.Question{
		Type:      payload.Type,
		Points:    payload.Points,
		Choices:   choices,
		Answer:    payload.Answer,
		TextMatch: payload.TextMatch,
	})
	if err != nil {
		return dto.QuestionResponse{}, err
	}

	question := models.Question{
		AssessmentID:   assessmentID,
		QuestionNumber: payload.QuestionNumber,
		Type:           models.QuestionType(payload.Type),
		Text:           strings.TrimSpace(s.content.Sanitize(payload.Text)),
		Points:         payload.Points,
		Answer:         datatypes.JSON(key),
		TextMatch:      payload.TextMatch,
	}
	if len(choices) > 0 {
		question.Choices = datatypes.JSON(choices)
	}

	if err := s.repo.AddQuestion(ctx, &question); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.QuestionResponse{}, ErrAssessmentNotFound
		}
		s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Msg("failed to add question")
		return dto.QuestionResponse{}, err
	}

	return dto.NewQuestionResponse(question, true), nil
}
