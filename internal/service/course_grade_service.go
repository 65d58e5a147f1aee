package service

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/grading"
	"github.com/noah-isme/gema-grading/internal/models"
	"github.com/noah-isme/gema-grading/internal/repository"
)

// CourseGradeService aggregates persisted grades into course-level standings.
// Standings are recomputed from the grade rows on every call.
type CourseGradeService interface {
	Summary(ctx context.Context, courseID uint) (dto.CourseGradesResponse, error)
	StudentSummary(ctx context.Context, courseID, studentID uint) (dto.StudentCourseGradeResponse, error)
}

type courseGradeService struct {
	grades repository.GradeRepository
	logger zerolog.Logger
}

// NewCourseGradeService constructs the course aggregation service.
func NewCourseGradeService(grades repository.GradeRepository, logger zerolog.Logger) CourseGradeService {
	return &courseGradeService{
		grades: grades,
		logger: logger.With().Str("component", "course_grade_service").Logger(),
	}
}

func (s *courseGradeService) Summary(ctx context.Context, courseID uint) (dto.CourseGradesResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-grading/internal/service/course_grade")
	ctx, span := tracer.Start(ctx, "grading.course_summary")
	span.SetAttributes(attribute.Int64("grading.course_id", int64(courseID)))
	defer span.End()

	grades, err := s.grades.List(ctx, repository.GradeFilter{CourseID: courseID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_list_failed")
		return dto.CourseGradesResponse{}, err
	}

	response := dto.CourseGradesResponse{CourseID: courseID, Students: []dto.StudentCourseGradeResponse{}}

	// grades arrive ordered by student, so each run of equal ids is one student
	for start := 0; start < len(grades); {
		end := start
		for end < len(grades) && grades[end].StudentID == grades[start].StudentID {
			end++
		}
		response.Students = append(response.Students, studentStanding(grades[start].StudentID, grades[start:end]))
		start = end
	}

	span.SetAttributes(attribute.Int("grading.students", len(response.Students)))
	return response, nil
}

func (s *courseGradeService) StudentSummary(ctx context.Context, courseID, studentID uint) (dto.StudentCourseGradeResponse, error) {
	grades, err := s.grades.List(ctx, repository.GradeFilter{CourseID: courseID, StudentID: &studentID})
	if err != nil {
		s.logger.Error().Err(err).Uint("course_id", courseID).Uint("student_id", studentID).Msg("failed to load student grades")
		return dto.StudentCourseGradeResponse{}, err
	}

	return studentStanding(studentID, grades), nil
}

func studentStanding(studentID uint, grades []models.Grade) dto.StudentCourseGradeResponse {
	inputs := make([]grading.GradeInput, 0, len(grades))
	rows := make([]dto.GradeResponse, 0, len(grades))
	for _, grade := range grades {
		inputs = append(inputs, dto.GradeInput(grade))
		rows = append(rows, dto.NewGradeResponse(grade))
	}

	return dto.StudentCourseGradeResponse{
		StudentID:   studentID,
		CourseScore: grading.Aggregate(inputs),
		Grades:      rows,
	}
}
