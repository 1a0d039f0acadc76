package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

var testClock = time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func floatPointer(v float64) *float64 {
	return &v
}

func uintPointer(v uint) *uint {
	return &v
}

func stringPointer(v string) *string {
	return &v
}

type testRepos struct {
	db          *gorm.DB
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	students    repository.StudentRepository
	activity    repository.ActivityLogRepository
}

func setupServiceDB(t *testing.T) testRepos {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Assessment{},
		&models.Question{},
		&models.Choice{},
		&models.AssessmentAssignment{},
		&models.Answer{},
		&models.ActivityLog{},
	))

	return testRepos{
		db:          db,
		assessments: repository.NewAssessmentRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		answers:     repository.NewAnswerRepository(db),
		students:    repository.NewStudentRepository(db),
		activity:    repository.NewActivityLogRepository(db),
	}
}

func seedStudent(t *testing.T, db *gorm.DB, name, role string) models.Student {
	t.Helper()
	student := models.Student{Name: name, Email: strings.ToLower(name) + "@example.com", Role: role}
	require.NoError(t, db.Create(&student).Error)
	return student
}

// seedQuiz creates a 10 point assessment: one_choice (2), multiple (3) and essay (5).
func seedQuiz(t *testing.T, db *gorm.DB, mode models.DeliveryMode) models.Assessment {
	t.Helper()
	assessment := models.Assessment{
		Title:        "Networking basics",
		DeliveryMode: mode,
		Questions: []models.Question{
			{Type: models.QuestionTypeOneChoice, Content: "Default HTTP port?", Points: 2, Position: 1, Choices: []models.Choice{
				{Content: "80", IsCorrect: true, Position: 1},
				{Content: "21", Position: 2},
			}},
			{Type: models.QuestionTypeMultiple, Content: "Transport protocols?", Points: 3, Position: 2, Choices: []models.Choice{
				{Content: "TCP", IsCorrect: true, Position: 1},
				{Content: "UDP", IsCorrect: true, Position: 2},
				{Content: "HTTP", Position: 3},
			}},
			{Type: models.QuestionTypeEssay, Content: "Explain DNS", Points: 5, Position: 3},
		},
	}

	switch mode {
	case models.DeliveryModeSupervised:
		duration := 60
		scheduled := testClock
		assessment.DurationMinutes = &duration
		assessment.ScheduledAt = &scheduled
	default:
		due := testClock.Add(72 * time.Hour)
		assessment.DueDate = &due
	}

	require.NoError(t, db.Create(&assessment).Error)
	return assessment
}

func newTestValidator() *validator.Validate {
	return validation.NewValidator()
}
