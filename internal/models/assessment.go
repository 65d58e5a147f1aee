package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssessmentKind tags an assessment as an exam or an assignment/quiz.
type AssessmentKind string

const (
	// AssessmentKindExam is a timed exam with an optional open/close window.
	AssessmentKindExam AssessmentKind = "exam"
	// AssessmentKindAssignment covers assignments and quizzes.
	AssessmentKindAssignment AssessmentKind = "assignment"
)

// Assessment owns an ordered set of questions and carries the weight used in course aggregation.
type Assessment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CourseID  uint           `gorm:"not null;index" json:"course_id"`
	Title     string         `gorm:"size:255;not null" json:"title"`
	Kind      AssessmentKind `gorm:"size:32;not null" json:"kind"`
	MaxScore  float64        `gorm:"not null;default:0" json:"max_score"`
	Weight    float64        `gorm:"not null;default:0" json:"weight"`
	StartedAt *time.Time     `json:"started_at"`
	ExpiredAt *time.Time     `json:"expired_at"`
	OpenAt    *time.Time     `json:"open_at"`
	CloseAt   *time.Time     `json:"close_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Questions []Question     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// IsExam reports whether the assessment is an exam.
func (a Assessment) IsExam() bool {
	return a.Kind == AssessmentKindExam
}

// Window returns the time window that drives the assessment's visible status.
// Exams use open_at/close_at, assignments use started_at/expired_at.
func (a Assessment) Window() (*time.Time, *time.Time) {
	if a.IsExam() {
		return a.OpenAt, a.CloseAt
	}
	return a.StartedAt, a.ExpiredAt
}

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "mcq"
	QuestionTypeTrueFalse   QuestionType = "true_false"
	QuestionTypeShortAnswer QuestionType = "short_answer"
	QuestionTypeEssay       QuestionType = "essay"
)

// Question is a single gradable item of an assessment.
type Question struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	AssessmentID   uint           `gorm:"not null;index" json:"assessment_id"`
	QuestionNumber int            `gorm:"not null" json:"question_number"`
	Type           QuestionType   `gorm:"size:32;not null" json:"type"`
	Text           string         `gorm:"type:text" json:"text"`
	Points         float64        `gorm:"not null" json:"points"`
	Choices        datatypes.JSON `json:"choices"`
	Answer         datatypes.JSON `json:"answer"`
	TextMatch      bool           `gorm:"not null;default:false" json:"text_match"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
