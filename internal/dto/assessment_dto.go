package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-grading/internal/models"
)

// AssessmentCreateRequest captures the payload for authoring an assessment.
type AssessmentCreateRequest struct {
	CourseID  uint       `json:"course_id" validate:"required"`
	Title     string     `json:"title" validate:"required,min=3,max=255"`
	Kind      string     `json:"kind" validate:"required,oneof=exam assignment"`
	MaxScore  float64    `json:"max_score" validate:"gte=0"`
	Weight    float64    `json:"weight" validate:"gte=0"`
	StartedAt *time.Time `json:"started_at"`
	ExpiredAt *time.Time `json:"expired_at"`
	OpenAt    *time.Time `json:"open_at"`
	CloseAt   *time.Time `json:"close_at"`
}

// QuestionCreateRequest captures a question appended to an assessment.
// Answer holds the key in any accepted shape; it is normalised before storage.
type QuestionCreateRequest struct {
	QuestionNumber int             `json:"question_number" validate:"gte=0"`
	Type           string          `json:"type" validate:"required,oneof=mcq true_false short_answer essay"`
	Text           string          `json:"text" validate:"required,min=1,max=10000"`
	Points         float64         `json:"points" validate:"gt=0"`
	Choices        []string        `json:"choices" validate:"omitempty,dive,required"`
	Answer         json.RawMessage `json:"answer"`
	TextMatch      bool            `json:"text_match"`
}

// AssessmentListRequest describes pagination and filters for a course's assessments.
type AssessmentListRequest struct {
	CourseID uint
	Kind     string
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// QuestionResponse serializes a question. Answer is omitted for learners.
type QuestionResponse struct {
	ID             uint            `json:"id"`
	QuestionNumber int             `json:"question_number"`
	Type           string          `json:"type"`
	Text           string          `json:"text"`
	Points         float64         `json:"points"`
	Choices        json.RawMessage `json:"choices,omitempty"`
	Answer         json.RawMessage `json:"answer,omitempty"`
	TextMatch      bool            `json:"text_match"`
}

// AssessmentResponse serializes an assessment with its ordered questions.
type AssessmentResponse struct {
	ID        uint               `json:"id"`
	CourseID  uint               `json:"course_id"`
	Title     string             `json:"title"`
	Kind      string             `json:"kind"`
	MaxScore  float64            `json:"max_score"`
	Weight    float64            `json:"weight"`
	StartedAt *time.Time         `json:"started_at"`
	ExpiredAt *time.Time         `json:"expired_at"`
	OpenAt    *time.Time         `json:"open_at,omitempty"`
	CloseAt   *time.Time         `json:"close_at,omitempty"`
	Questions []QuestionResponse `json:"questions"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// AssessmentListResponse wraps a paginated assessment list.
type AssessmentListResponse struct {
	Items      []AssessmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// AssessmentStatusResponse reports the visible time-window status of an assessment.
type AssessmentStatusResponse struct {
	AssessmentID uint      `json:"assessment_id"`
	Status       string    `json:"status"`
	ComputedAt   time.Time `json:"computed_at"`
	ValidUntil   time.Time `json:"valid_until"`
}

// NewQuestionResponse converts a question model. includeKey controls whether the answer key is exposed.
func NewQuestionResponse(question models.Question, includeKey bool) QuestionResponse {
	response := QuestionResponse{
		ID:             question.ID,
		QuestionNumber: question.QuestionNumber,
		Type:           string(question.Type),
		Text:           question.Text,
		Points:         question.Points,
		TextMatch:      question.TextMatch,
	}
	if len(question.Choices) > 0 {
		response.Choices = json.RawMessage(question.Choices)
	}
	if includeKey && len(question.Answer) > 0 {
		response.Answer = json.RawMessage(question.Answer)
	}
	return response
}

// NewAssessmentResponse converts an assessment model into a DTO.
func NewAssessmentResponse(assessment models.Assessment, includeKeys bool) AssessmentResponse {
	questions := make([]QuestionResponse, 0, len(assessment.Questions))
	for _, question := range assessment.Questions {
		questions = append(questions, NewQuestionResponse(question, includeKeys))
	}

	return AssessmentResponse{
		ID:        assessment.ID,
		CourseID:  assessment.CourseID,
		Title:     assessment.Title,
		Kind:      string(assessment.Kind),
		MaxScore:  assessment.MaxScore,
		Weight:    assessment.Weight,
		StartedAt: assessment.StartedAt,
		ExpiredAt: assessment.ExpiredAt,
		OpenAt:    assessment.OpenAt,
		CloseAt:   assessment.CloseAt,
		Questions: questions,
		CreatedAt: assessment.CreatedAt,
		UpdatedAt: assessment.UpdatedAt,
	}
}
