package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// StudentAssessmentHandler serves the student side of an assessment. The student is always
// the authenticated user.
type StudentAssessmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

// NewStudentAssessmentHandler constructs the handler.
func NewStudentAssessmentHandler(service service.AssignmentService, logger zerolog.Logger) *StudentAssessmentHandler {
	return &StudentAssessmentHandler{
		service: service,
		logger:  logger.With().Str("component", "student_assessment_handler").Logger(),
	}
}

// Register attaches student routes to the router group. The write middlewares
// guard the answer and submit endpoints only.
func (h *StudentAssessmentHandler) Register(router fiber.Router, writeMiddlewares ...fiber.Handler) {
	router.Post("/:id/open", h.open)
	router.Post("/:id/start", h.start)
	router.Get("/:id/timer", h.timer)
	router.Put("/:id/answers", chain(writeMiddlewares, h.saveAnswers)...)
	router.Post("/:id/submit", chain(writeMiddlewares, h.submit)...)
}

func chain(middlewares []fiber.Handler, final fiber.Handler) []fiber.Handler {
	handlers := make([]fiber.Handler, 0, len(middlewares)+1)
	handlers = append(handlers, middlewares...)
	return append(handlers, final)
}

var errMissingStudent = errors.New("authentication required")

func (h *StudentAssessmentHandler) identifiers(c *fiber.Ctx) (uint, uint, error) {
	assessmentID, err := parseUintParam(c, "id")
	if err != nil {
		return 0, 0, err
	}
	studentID := userIDFromContext(c)
	if studentID == 0 {
		return 0, 0, errMissingStudent
	}
	return assessmentID, studentID, nil
}

func rejectIdentity(c *fiber.Ctx, err error) error {
	if errors.Is(err, errMissingStudent) {
		return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
	}
	return utils.SendError(c, fiber.StatusBadRequest, err.Error())
}

func (h *StudentAssessmentHandler) open(c *fiber.Ctx) error {
	assessmentID, studentID, err := h.identifiers(c)
	if err != nil {
		return rejectIdentity(c, err)
	}

	view, err := h.service.Open(c.UserContext(), assessmentID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to open assessment")
	}
	return utils.SendSuccess(c, "assessment opened", view)
}

func (h *StudentAssessmentHandler) start(c *fiber.Ctx) error {
	assessmentID, studentID, err := h.identifiers(c)
	if err != nil {
		return rejectIdentity(c, err)
	}

	assignment, err := h.service.Start(c.UserContext(), assessmentID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to start assessment")
	}
	return utils.SendSuccess(c, "assessment started", assignment)
}

func (h *StudentAssessmentHandler) timer(c *fiber.Ctx) error {
	assessmentID, studentID, err := h.identifiers(c)
	if err != nil {
		return rejectIdentity(c, err)
	}

	timer, err := h.service.Timer(c.UserContext(), assessmentID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load timer")
	}
	return utils.SendSuccess(c, "timer", timer)
}

func (h *StudentAssessmentHandler) saveAnswers(c *fiber.Ctx) error {
	assessmentID, studentID, err := h.identifiers(c)
	if err != nil {
		return rejectIdentity(c, err)
	}

	var payload dto.SaveAnswersRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assignment, err := h.service.SaveAnswers(c.UserContext(), assessmentID, studentID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to save answers")
	}
	return utils.SendSuccess(c, "answers saved", assignment)
}

func (h *StudentAssessmentHandler) submit(c *fiber.Ctx) error {
	assessmentID, studentID, err := h.identifiers(c)
	if err != nil {
		return rejectIdentity(c, err)
	}

	assignment, err := h.service.Submit(c.UserContext(), assessmentID, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit assessment")
	}
	return utils.SendSuccess(c, "assessment submitted", assignment)
}
