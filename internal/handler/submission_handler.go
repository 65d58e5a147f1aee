package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading/internal/dto"
	"github.com/noah-isme/gema-grading/internal/middleware"
	"github.com/noah-isme/gema-grading/internal/service"
	"github.com/noah-isme/gema-grading/internal/utils"
)

// SubmissionHandler manages the attempt lifecycle endpoints.
type SubmissionHandler struct {
	submissions service.SubmissionService
	logger      zerolog.Logger
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches submission endpoints to the router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	authenticated := middleware.AuthOptions{Role: middleware.AuthRoleAny}

	router.Post("/assessments/:id/submissions", middleware.WithAuth(h.start, authenticated))
	router.Get("/submissions/:id", middleware.WithAuth(h.get, authenticated))
	router.Put("/submissions/:id/answers", middleware.WithAuth(h.saveAnswers, authenticated))
	router.Post("/submissions/:id/finish", middleware.WithAuth(h.finish, authenticated))
}

func (h *SubmissionHandler) start(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionStartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	actor := activityActorFromContext(c)
	studentID := actor.ID
	if actor.IsStaff() && payload.StudentID != 0 {
		studentID = payload.StudentID
	}

	submission, err := h.submissions.Start(c.UserContext(), assessmentID, studentID)
	if err != nil {
		return handleError(c, h.logger, err, "failed to start submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission started", submission)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Get(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to load submission")
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) saveAnswers(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionAnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	submission, err := h.submissions.SaveAnswers(c.UserContext(), id, payload, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to save answers")
	}

	return utils.SendSuccess(c, "answers saved", submission)
}

func (h *SubmissionHandler) finish(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.submissions.Finish(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err, "failed to finish submission")
	}

	return utils.SendSuccess(c, "submission finished", submission)
}
