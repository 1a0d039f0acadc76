package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// ConnectPostgres establishes a connection to the PostgreSQL database using the provided DSN.
func ConnectPostgres(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn must not be empty")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

// AutoMigrate creates or updates the tables used by the assessment engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Student{},
		&models.Assessment{},
		&models.Question{},
		&models.Choice{},
		&models.AssessmentAssignment{},
		&models.Answer{},
		&models.ActivityLog{},
	)
}
