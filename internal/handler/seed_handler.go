package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/service"
	"github.com/noah-isme/gema-assessment-api/internal/utils"
)

// SeedHandler exposes token-guarded roster import.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/students", h.students)
}

type seedStudentsRequest struct {
	Items []models.Student `json:"items"`
}

func (h *SeedHandler) students(c *fiber.Ctx) error {
	var payload seedStudentsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	affected, err := h.service.SeedStudents(c.UserContext(), c.Get("X-Seed-Token"), payload.Items)
	if err != nil {
		return respondError(c, h.logger, err, "seed operation failed")
	}

	return utils.SendSuccess(c, "students seeded", fiber.Map{"affected": affected})
}
