package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-assessment-api/internal/config"
	"github.com/noah-isme/gema-assessment-api/internal/handler"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssessmentHandler        *handler.AssessmentHandler
	GradingHandler           *handler.GradingHandler
	StudentAssessmentHandler *handler.StudentAssessmentHandler
	ActivityHandler          *handler.ActivityHandler
	SeedHandler              *handler.SeedHandler
	JWTMiddleware            fiber.Handler
	HealthProbes             map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := middleware.RequireRole(models.RoleTeacher, models.RoleAdmin)

	// Teacher authoring, statistics and manual grading
	if deps.AssessmentHandler != nil {
		assessments := app.Group("/api/v2/assessments", jwtMiddleware, staff)
		deps.AssessmentHandler.Register(assessments)

		if deps.GradingHandler != nil {
			deps.GradingHandler.RegisterScores(assessments)
		}
	}

	if deps.GradingHandler != nil {
		assignments := app.Group("/api/v2/assignments", jwtMiddleware, staff)
		deps.GradingHandler.RegisterAutoGrade(assignments)
	}

	if deps.ActivityHandler != nil {
		activities := app.Group("/api/v2/activities", jwtMiddleware, staff)
		deps.ActivityHandler.Register(activities)
	}

	// Student delivery
	if deps.StudentAssessmentHandler != nil {
		student := app.Group("/api/v2/student/assessments", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
		deps.StudentAssessmentHandler.Register(student, middleware.RateLimit("student_writes", cfg.AnswerRateLimit, time.Minute))
	}

	if deps.SeedHandler != nil {
		seed := app.Group("/api/internal/seed")
		deps.SeedHandler.Register(seed)
	}
}
