package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grading/internal/models"
)

// GradingWrite is everything one grading pass persists. It is applied atomically.
type GradingWrite struct {
	SubmissionID   uint
	Status         string
	Score          float64
	MaxScore       float64
	Percentage     float64
	GradingDetails datatypes.JSON
	GradedAt       time.Time
	Grade          models.Grade
	History        *models.ManualGradeHistory
}

// GradeFilter narrows course grade queries.
type GradeFilter struct {
	CourseID  uint
	StudentID *uint
}

// GradeRepository persists grading results and the denormalized grade rows.
type GradeRepository interface {
	SaveGradingResult(ctx context.Context, write GradingWrite) (models.Grade, error)
	List(ctx context.Context, filter GradeFilter) ([]models.Grade, error)
	ListHistory(ctx context.Context, submissionID uint) ([]models.ManualGradeHistory, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the grade repository.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

// SaveGradingResult writes the submission's grading fields, upserts the grade row
// keyed by (student, assessment) and, when present, appends manual grading history,
// all inside one transaction. Concurrent writes for the same key resolve to the last one.
func (r *gradeRepository) SaveGradingResult(ctx context.Context, write GradingWrite) (models.Grade, error) {
	grade := write.Grade

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		update := tx.Model(&models.Submission{}).
			Where("id = ?", write.SubmissionID).
			Updates(map[string]interface{}{
				"status":          write.Status,
				"score":           write.Score,
				"max_score":       write.MaxScore,
				"percentage":      write.Percentage,
				"grading_details": write.GradingDetails,
				"graded_at":       write.GradedAt,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		summary, err := ensureGradesSummary(tx, grade.CourseID)
		if err != nil {
			return err
		}
		grade.GradesSummaryID = summary.ID

		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "assessment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"grades_summary_id", "course_id", "submission_id", "score", "max_score",
				"weight", "type", "title", "graded_at", "updated_at",
			}),
		}).Create(&grade).Error; err != nil {
			return err
		}

		if write.History != nil {
			if err := tx.Create(write.History).Error; err != nil {
				return err
			}
		}

		return tx.Where("student_id = ? AND assessment_id = ?", grade.StudentID, grade.AssessmentID).First(&grade).Error
	})
	if err != nil {
		return models.Grade{}, err
	}

	return grade, nil
}

func ensureGradesSummary(tx *gorm.DB, courseID uint) (models.GradesSummary, error) {
	summary := models.GradesSummary{CourseID: courseID}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}},
		DoNothing: true,
	}).Create(&summary).Error; err != nil {
		return models.GradesSummary{}, err
	}

	if err := tx.Where("course_id = ?", courseID).First(&summary).Error; err != nil {
		return models.GradesSummary{}, err
	}
	return summary, nil
}

func (r *gradeRepository) List(ctx context.Context, filter GradeFilter) ([]models.Grade, error) {
	query := r.db.WithContext(ctx).Model(&models.Grade{}).Where("course_id = ?", filter.CourseID)
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	var grades []models.Grade
	if err := query.Order("student_id ASC").Order("assessment_id ASC").Find(&grades).Error; err != nil {
		return nil, err
	}

	return grades, nil
}

func (r *gradeRepository) ListHistory(ctx context.Context, submissionID uint) ([]models.ManualGradeHistory, error) {
	var history []models.ManualGradeHistory
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("graded_at DESC").
		Order("id DESC").
		Find(&history).Error; err != nil {
		return nil, err
	}

	return history, nil
}
