package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is a learner's attempt at an assessment.
type Submission struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	AssessmentID   uint              `gorm:"not null;index" json:"assessment_id"`
	StudentID      uint              `gorm:"not null;index" json:"student_id"`
	Answers        datatypes.JSONMap `json:"answers"`
	Status         string            `gorm:"size:32;not null" json:"status"`
	Finished       bool              `gorm:"not null;default:false" json:"finished"`
	FinishedAt     *time.Time        `json:"finished_at"`
	Score          float64           `gorm:"not null;default:0" json:"score"`
	MaxScore       float64           `gorm:"not null;default:0" json:"max_score"`
	Percentage     float64           `gorm:"not null;default:0" json:"percentage"`
	GradingDetails datatypes.JSON    `json:"grading_details"`
	GradedAt       *time.Time        `json:"graded_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Assessment     Assessment        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessment"`
	Student        Student           `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

const (
	// SubmissionStatusInProgress indicates the learner is still answering.
	SubmissionStatusInProgress = "in_progress"
	// SubmissionStatusSubmitted indicates the attempt is finished but not graded yet.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusGraded indicates the submission has been evaluated.
	SubmissionStatusGraded = "graded"
)

// IsGraded reports whether the submission has been graded at least once.
func (s Submission) IsGraded() bool {
	return s.GradedAt != nil
}

// IsGradable reports whether the submission is closed and carries answers.
func (s Submission) IsGradable() bool {
	return s.Finished && len(s.Answers) > 0
}

// ManualGradeHistory records every manual score given to a question of a submission.
type ManualGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	QuestionID   uint      `gorm:"not null" json:"question_id"`
	Score        float64   `gorm:"not null" json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
}
