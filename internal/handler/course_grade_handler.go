package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/internal/utils"
)

// CourseGradeHandler exposes course-level grade aggregation.
type CourseGradeHandler struct {
	grades service.CourseGradeService
	logger zerolog.Logger
}

// NewCourseGradeHandler constructs the handler.
func NewCourseGradeHandler(grades service.CourseGradeService, logger zerolog.Logger) *CourseGradeHandler {
	return &CourseGradeHandler{
		grades: grades,
		logger: logger.With().Str("component", "course_grade_handler").Logger(),
	}
}

// Register attaches course grade endpoints to the router group.
func (h *CourseGradeHandler) Register(router fiber.Router) {
	router.Get("/courses/:id/grades", middleware.WithAuth(h.summary, middleware.AuthOptions{Role: middleware.AuthRoleGrader}))
	router.Get("/courses/:id/grades/:studentId", middleware.WithAuth(h.student, middleware.AuthOptions{Role: middleware.AuthRoleAny}))
}

func (h *CourseGradeHandler) summary(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	summary, err := h.grades.Summary(c.UserContext(), courseID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to aggregate course grades")
	}

	return utils.SendSuccess(c, "course grades retrieved", summary)
}

// student serves one standing; students may only read their own.
func (h *CourseGradeHandler) student(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	if !isStaffRole(userRoleFromContext(c)) && userIDFromContext(c) != studentID {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	standing, err := h.grades.StudentSummary(c.UserContext(), courseID, studentID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to aggregate student grades")
	}

	return utils.SendSuccess(c, "student grades retrieved", standing)
}
