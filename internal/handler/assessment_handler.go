package handler

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/internal/utils"
)

// AssessmentHandler exposes assessment authoring and status endpoints.
type AssessmentHandler struct {
	assessments service.AssessmentService
	status      service.AssignmentStatusService
	logger      zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(assessments service.AssessmentService, status service.AssignmentStatusService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		status:      status,
		logger:      logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register attaches assessment endpoints to the router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	grader := middleware.AuthOptions{Role: middleware.AuthRoleGrader}
	anyone := middleware.AuthOptions{Role: middleware.AuthRoleAny}

	router.Post("/assessments", middleware.WithAuth(h.create, grader))
	router.Get("/assessments/:id", middleware.WithAuth(h.get, anyone))
	router.Get("/assessments/:id/status", middleware.WithAuth(h.statusOf, anyone))
	router.Post("/assessments/:id/questions", middleware.WithAuth(h.addQuestion, grader))
	router.Get("/courses/:id/assessments", middleware.WithAuth(h.list, anyone))
}

func (h *AssessmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssessmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assessment, err := h.assessments.Create(c.UserContext(), payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to create assessment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment created", assessment)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessments.Get(c.UserContext(), id, isStaffRole(userRoleFromContext(c)))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load assessment")
	}

	return utils.SendSuccess(c, "assessment retrieved", assessment)
}

func (h *AssessmentHandler) statusOf(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := h.status.Status(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err, "failed to compute assessment status")
	}

	return utils.SendSuccess(c, "assessment status", status)
}

func (h *AssessmentHandler) addQuestion(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.QuestionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	question, err := h.assessments.AddQuestion(c.UserContext(), id, payload)
	if err != nil {
		return handleError(c, h.logger, err, "failed to add question")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "question added", question)
}

func (h *AssessmentHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	result, err := h.assessments.List(c.UserContext(), dto.AssessmentListRequest{
		CourseID: courseID,
		Kind:     strings.TrimSpace(c.Query("kind")),
		Search:   strings.TrimSpace(c.Query("search")),
		Sort:     c.Query("sort"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return handleError(c, h.logger, err, "failed to list assessments")
	}

	return utils.OK(c, result.Items, "assessments retrieved", result.Pagination)
}
