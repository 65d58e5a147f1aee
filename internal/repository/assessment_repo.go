package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading/internal/models"
)

// AssessmentFilter describes pagination & search options for a course's assessments.
type AssessmentFilter struct {
	CourseID uint
	Kind     string
	Search   string
	Sort     string
	Page     int
	PageSize int
}

// AssessmentRepository defines persistence operations for assessments and their questions.
type AssessmentRepository interface {
	List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error)
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	AddQuestion(ctx context.Context, question *models.Question) error
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assessment{})

	if filter.CourseID != 0 {
		query = query.Where("course_id = ?", filter.CourseID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ?", pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = paginate(query.Order(normalizeAssessmentSort(filter.Sort)), filter.Page, filter.PageSize)

	var assessments []models.Assessment
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("question_number ASC").Order("id ASC")
		}).
		First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

// AddQuestion appends a question. A zero question number is assigned the next free number.
func (r *assessmentRepository) AddQuestion(ctx context.Context, question *models.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Assessment{}).Where("id = ?", question.AssessmentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}

		if question.QuestionNumber == 0 {
			var last int
			if err := tx.Model(&models.Question{}).
				Where("assessment_id = ?", question.AssessmentID).
				Select("COALESCE(MAX(question_number), 0)").
				Scan(&last).Error; err != nil {
				return err
			}
			question.QuestionNumber = last + 1
		}

		return tx.Create(question).Error
	})
}

func normalizeAssessmentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "-created_at", "created_at:desc", "created_at.desc":
		return "created_at DESC"
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	case "weight", "weight:asc", "weight.asc":
		return "weight ASC"
	case "-weight", "weight:desc", "weight.desc":
		return "weight DESC"
	default:
		return "created_at ASC"
	}
}
