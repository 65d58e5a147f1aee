package dto

import (
	"time"

	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
)

// ManualGradeRequest scores one manually graded question.
type ManualGradeRequest struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback string   `json:"feedback" validate:"omitempty,max=5000"`
}

// RegradeResponse summarises an administrative re-grade of an assessment.
type RegradeResponse struct {
	AssessmentID  uint   `json:"assessment_id"`
	Total         int    `json:"total"`
	Graded        int    `json:"graded"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	FailedIDs     []uint `json:"failed_submission_ids"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// GradeResponse is one assessment grade inside a course summary.
type GradeResponse struct {
	AssessmentID uint      `json:"assessment_id"`
	SubmissionID uint      `json:"submission_id"`
	Title        string    `json:"title"`
	Type         string    `json:"type"`
	Score        float64   `json:"score"`
	MaxScore     float64   `json:"max_score"`
	Weight       float64   `json:"weight"`
	Contribution float64   `json:"contribution"`
	GradedAt     time.Time `json:"graded_at"`
}

// StudentCourseGradeResponse is a student's course-level standing.
type StudentCourseGradeResponse struct {
	StudentID uint `json:"student_id"`
	grading.CourseScore
	Grades []GradeResponse `json:"grades"`
}

// CourseGradesResponse lists every graded student of a course.
type CourseGradesResponse struct {
	CourseID uint                         `json:"course_id"`
	Students []StudentCourseGradeResponse `json:"students"`
}

// NewGradeResponse converts a grade row.
func NewGradeResponse(grade models.Grade) GradeResponse {
	return GradeResponse{
		AssessmentID: grade.AssessmentID,
		SubmissionID: grade.SubmissionID,
		Title:        grade.Title,
		Type:         string(grade.Type),
		Score:        grade.Score,
		MaxScore:     grade.MaxScore,
		Weight:       grade.Weight,
		Contribution: grading.Contribution(GradeInput(grade)),
		GradedAt:     grade.GradedAt,
	}
}

// GradeInput maps a persisted grade onto the aggregation input.
func GradeInput(grade models.Grade) grading.GradeInput {
	return grading.GradeInput{
		Kind:     string(grade.Type),
		Score:    grade.Score,
		MaxScore: grade.MaxScore,
		Weight:   grade.Weight,
	}
}
