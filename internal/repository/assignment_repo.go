package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AssignmentRepository persists a student's instance of an assessment.
//
// MarkStarted, MarkSubmitted, ForceSubmit and MarkGraded are single conditional UPDATEs;
// they report false when the guarded column was already set so concurrent callers never
// overwrite a lifecycle timestamp.
type AssignmentRepository interface {
	GetOrCreate(ctx context.Context, assessmentID, studentID uint) (models.AssessmentAssignment, bool, error)
	GetByID(ctx context.Context, id uint) (models.AssessmentAssignment, error)
	GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.AssessmentAssignment, error)
	ListByAssessment(ctx context.Context, assessmentID uint) ([]models.AssessmentAssignment, error)
	ListOpenSupervised(ctx context.Context, limit int) ([]models.AssessmentAssignment, error)
	MarkStarted(ctx context.Context, id uint, startedAt time.Time) (bool, error)
	MarkSubmitted(ctx context.Context, id uint, submittedAt time.Time) (bool, error)
	ForceSubmit(ctx context.Context, id uint, submittedAt time.Time, violation string) (bool, error)
	MarkGraded(ctx context.Context, id uint, score float64, gradedAt time.Time) (bool, error)
	UpdateScore(ctx context.Context, id uint, score float64) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Preload("Assessment").
		Preload("Assessment.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Assessment.Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Student")
}

// GetOrCreate returns the assignment for the pair, creating it without any lifecycle timestamp.
// A concurrent create losing on the unique index falls back to reading the winner's row.
func (r *assignmentRepository) GetOrCreate(ctx context.Context, assessmentID, studentID uint) (models.AssessmentAssignment, bool, error) {
	existing, err := r.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.AssessmentAssignment{}, false, err
	}

	assignment := models.AssessmentAssignment{AssessmentID: assessmentID, StudentID: studentID}
	if createErr := r.db.WithContext(ctx).Omit("Assessment", "Student", "Answers").Create(&assignment).Error; createErr != nil {
		existing, err := r.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
		if err != nil {
			return models.AssessmentAssignment{}, false, createErr
		}
		return existing, false, nil
	}

	loaded, err := r.GetByID(ctx, assignment.ID)
	if err != nil {
		return models.AssessmentAssignment{}, false, err
	}
	return loaded, true, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.AssessmentAssignment, error) {
	var assignment models.AssessmentAssignment
	if err := r.baseQuery(ctx).First(&assignment, id).Error; err != nil {
		return models.AssessmentAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) GetByAssessmentAndStudent(ctx context.Context, assessmentID, studentID uint) (models.AssessmentAssignment, error) {
	var assignment models.AssessmentAssignment
	if err := r.baseQuery(ctx).
		Where("assessment_id = ?", assessmentID).
		Where("student_id = ?", studentID).
		First(&assignment).Error; err != nil {
		return models.AssessmentAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListByAssessment(ctx context.Context, assessmentID uint) ([]models.AssessmentAssignment, error) {
	var assignments []models.AssessmentAssignment
	if err := r.db.WithContext(ctx).
		Preload("Student").
		Where("assessment_id = ?", assessmentID).
		Order("id ASC").
		Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

// ListOpenSupervised returns started, unsubmitted assignments of supervised assessments.
func (r *assignmentRepository) ListOpenSupervised(ctx context.Context, limit int) ([]models.AssessmentAssignment, error) {
	query := r.db.WithContext(ctx).
		Preload("Assessment").
		Joins("JOIN assessments ON assessments.id = assessment_assignments.assessment_id").
		Where("assessments.delivery_mode = ?", models.DeliveryModeSupervised).
		Where("assessment_assignments.started_at IS NOT NULL").
		Where("assessment_assignments.submitted_at IS NULL").
		Order("assessment_assignments.started_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var assignments []models.AssessmentAssignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) MarkStarted(ctx context.Context, id uint, startedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND started_at IS NULL AND submitted_at IS NULL", id).
		Updates(map[string]interface{}{
			"started_at": startedAt,
			"updated_at": startedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *assignmentRepository) MarkSubmitted(ctx context.Context, id uint, submittedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Updates(map[string]interface{}{
			"submitted_at": submittedAt,
			"updated_at":   submittedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *assignmentRepository) ForceSubmit(ctx context.Context, id uint, submittedAt time.Time, violation string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NULL", id).
		Updates(map[string]interface{}{
			"submitted_at":       submittedAt,
			"forced_submission":  true,
			"security_violation": violation,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *assignmentRepository) MarkGraded(ctx context.Context, id uint, score float64, gradedAt time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ? AND submitted_at IS NOT NULL AND graded_at IS NULL", id).
		Updates(map[string]interface{}{
			"score":      score,
			"graded_at":  gradedAt,
			"updated_at": gradedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *assignmentRepository) UpdateScore(ctx context.Context, id uint, score float64) error {
	result := r.db.WithContext(ctx).Model(&models.AssessmentAssignment{}).
		Where("id = ?", id).
		Update("score", score)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
