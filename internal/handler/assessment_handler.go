package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// AssessmentHandler exposes teacher authoring, enrolment and statistics endpoints.
type AssessmentHandler struct {
	assessments service.AssessmentService
	stats       service.StatisticsService
	logger      zerolog.Logger
}

// NewAssessmentHandler constructs the handler.
func NewAssessmentHandler(assessments service.AssessmentService, stats service.StatisticsService, logger zerolog.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		assessments: assessments,
		stats:       stats,
		logger:      logger.With().Str("component", "assessment_handler").Logger(),
	}
}

// Register attaches assessment routes to the router group.
func (h *AssessmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.create)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Post("/:id/assign", h.assign)
	router.Get("/:id/stats", h.statistics)
}

func (h *AssessmentHandler) list(c *fiber.Ctx) error {
	page, pageSize, err := parsePagination(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid pagination")
	}

	response, err := h.assessments.List(c.UserContext(), dto.AssessmentListRequest{
		Search:       c.Query("search"),
		DeliveryMode: c.Query("delivery_mode"),
		Sort:         c.Query("sort"),
		Page:         page,
		PageSize:     pageSize,
	})
	if err != nil {
		return respondError(c, h.logger, err, "failed to list assessments")
	}

	return utils.OK(c, response.Items, "assessments", response.Pagination)
}

func (h *AssessmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	created, err := h.assessments.Create(c.UserContext(), activityActorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create assessment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment created", created)
}

func (h *AssessmentHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	assessment, err := h.assessments.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load assessment")
	}

	return utils.SendSuccess(c, "assessment", assessment)
}

func (h *AssessmentHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	updated, err := h.assessments.Update(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update assessment")
	}

	return utils.SendSuccess(c, "assessment updated", updated)
}

func (h *AssessmentHandler) assign(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignStudentsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	assigned, err := h.assessments.AssignStudents(c.UserContext(), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to assign students")
	}
	if h.stats != nil {
		h.stats.Invalidate(c.UserContext(), id)
	}

	return utils.SendSuccess(c, "students assigned", assigned)
}

func (h *AssessmentHandler) statistics(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	stats, err := h.stats.AssessmentStats(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to compute statistics")
	}

	return utils.SendSuccess(c, "assessment statistics", stats)
}
