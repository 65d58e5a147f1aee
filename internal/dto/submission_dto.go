package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
)

// SubmissionStartRequest opens an attempt. StudentID is honoured only for staff callers.
type SubmissionStartRequest struct {
	StudentID uint `json:"student_id"`
}

// SubmissionAnswersRequest replaces the answers of an in-progress attempt, keyed by question id.
type SubmissionAnswersRequest struct {
	Answers map[string]interface{} `json:"answers" validate:"required"`
}

// SubmissionResponse represents a submission and, once graded, its grading result.
type SubmissionResponse struct {
	ID             uint                      `json:"id"`
	AssessmentID   uint                      `json:"assessment_id"`
	StudentID      uint                      `json:"student_id"`
	Status         string                    `json:"status"`
	Finished       bool                      `json:"finished"`
	FinishedAt     *time.Time                `json:"finished_at"`
	Answers        map[string]interface{}    `json:"answers"`
	Score          float64                   `json:"score"`
	MaxScore       float64                   `json:"max_score"`
	Percentage     float64                   `json:"percentage"`
	LetterGrade    string                    `json:"letter_grade,omitempty"`
	GradingDetails map[string]grading.Detail `json:"grading_details,omitempty"`
	GradedAt       *time.Time                `json:"graded_at"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// NewSubmissionResponse converts a submission model to a response DTO.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           submission.ID,
		AssessmentID: submission.AssessmentID,
		StudentID:    submission.StudentID,
		Status:       submission.Status,
		Finished:     submission.Finished,
		FinishedAt:   submission.FinishedAt,
		Answers:      metadataFromJSON(submission.Answers),
		Score:        submission.Score,
		MaxScore:     submission.MaxScore,
		Percentage:   submission.Percentage,
		GradedAt:     submission.GradedAt,
		CreatedAt:    submission.CreatedAt,
		UpdatedAt:    submission.UpdatedAt,
	}

	if submission.IsGraded() {
		response.LetterGrade = grading.LetterGrade(submission.Percentage)
		if len(submission.GradingDetails) > 0 {
			var details map[string]grading.Detail
			if err := json.Unmarshal(submission.GradingDetails, &details); err == nil {
				response.GradingDetails = details
			}
		}
	}

	return response
}
