package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/internal/utils"
)

// GradingHandler wires automatic, manual and administrative grading endpoints.
type GradingHandler struct {
	grading  service.GradingService
	manual   service.ManualGradingService
	activity service.ActivityService
	logger   zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(grading service.GradingService, manual service.ManualGradingService, activity service.ActivityService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		grading:  grading,
		manual:   manual,
		activity: activity,
		logger:   logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grading endpoints to the router group.
func (h *GradingHandler) Register(router fiber.Router) {
	grader := middleware.AuthOptions{Role: middleware.AuthRoleGrader}

	router.Post("/submissions/:id/grade", middleware.WithAuth(h.grade, grader))
	router.Patch("/submissions/:id/questions/:questionId/grade", middleware.WithAuth(h.gradeQuestion, grader))

	admin := router.Group("/admin", middleware.RequireRole(middleware.AuthRoleAdmin))
	admin.Post("/assessments/:id/regrade", middleware.RateLimit("regrade", 5, time.Minute), h.regrade)
	admin.Get("/activity", h.listActivity)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.grading.GradeSubmission(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err, "failed to grade submission")
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *GradingHandler) gradeQuestion(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	questionID, err := parseUintParam(c, "questionId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ManualGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.manual.GradeQuestion(c.UserContext(), id, questionID, payload, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to grade question")
	}

	return utils.SendSuccess(c, "question graded", submission)
}

func (h *GradingHandler) regrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.grading.RegradeAssessment(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to regrade assessment")
	}

	message := "assessment regraded"
	if result.Failed > 0 {
		message = "assessment regraded with failures"
	}
	return utils.SendSuccess(c, message, result)
}

func (h *GradingHandler) listActivity(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}
	entityID, err := parseQueryInt(c, "entity_id")
	if err != nil || entityID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid entity_id")
	}

	result, err := h.activity.List(c.UserContext(), dto.ActivityListRequest{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.TrimSpace(c.Query("action")),
		EntityType: strings.TrimSpace(c.Query("entity_type")),
		EntityID:   uint(entityID),
	})
	if err != nil {
		return handleError(c, h.logger, err, "failed to list activity")
	}

	return utils.OK(c, result.Items, "activity retrieved", result.Pagination)
}
