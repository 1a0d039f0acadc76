package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// GradingHandler wires grading endpoints for teachers.
type GradingHandler struct {
	service service.GradingService
	logger  zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(service service.GradingService, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service: service,
		logger:  logger.With().Str("component", "grading_handler").Logger(),
	}
}

// RegisterScores attaches score entry under an assessment group.
func (h *GradingHandler) RegisterScores(router fiber.Router) {
	router.Post("/:id/students/:studentId/scores", h.saveScores)
}

// RegisterAutoGrade attaches auto-grading under an assignment group.
func (h *GradingHandler) RegisterAutoGrade(router fiber.Router) {
	router.Post("/:id/auto-grade", h.autoGrade)
}

func (h *GradingHandler) saveScores(c *fiber.Ctx) error {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student identifier")
	}

	var payload dto.SaveScoresRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	report, err := h.service.SaveScores(c.UserContext(), assessmentID, studentID, payload, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to save scores")
	}

	return utils.SendSuccess(c, "scores saved", report)
}

func (h *GradingHandler) autoGrade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.service.AutoGrade(c.UserContext(), id, activityActorFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to auto-grade assignment")
	}

	return utils.SendSuccess(c, "assignment auto-graded", report)
}
