package models

import "time"

// GradesSummary is the per-course owner of denormalized grade rows.
type GradesSummary struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex" json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Grades    []Grade   `json:"grades"`
}

// Grade is the denormalized per-student, per-assessment score used for course aggregation.
type Grade struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	GradesSummaryID uint           `gorm:"not null;index" json:"grades_summary_id"`
	CourseID        uint           `gorm:"not null;index" json:"course_id"`
	StudentID       uint           `gorm:"not null;uniqueIndex:idx_grade_student_assessment" json:"student_id"`
	AssessmentID    uint           `gorm:"not null;uniqueIndex:idx_grade_student_assessment" json:"assessment_id"`
	SubmissionID    uint           `gorm:"not null" json:"submission_id"`
	Score           float64        `gorm:"not null" json:"score"`
	MaxScore        float64        `gorm:"not null" json:"max_score"`
	Weight          float64        `gorm:"not null" json:"weight"`
	Type            AssessmentKind `gorm:"size:32;not null" json:"type"`
	Title           string         `gorm:"size:255" json:"title"`
	GradedAt        time.Time      `gorm:"not null" json:"graded_at"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
