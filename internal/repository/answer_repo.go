package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AnswerRepository defines data operations for student answers.
type AnswerRepository interface {
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Answer, error)
	ListByAssignmentAndQuestion(ctx context.Context, assignmentID, questionID uint) ([]models.Answer, error)
	Upsert(ctx context.Context, answer *models.Answer) error
	SetScore(ctx context.Context, assignmentID, questionID uint, score float64, feedback *string) error
}

type answerRepository struct {
	db *gorm.DB
}

// NewAnswerRepository instantiates the repository.
func NewAnswerRepository(db *gorm.DB) AnswerRepository {
	return &answerRepository{db: db}
}

func (r *answerRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

func (r *answerRepository) ListByAssignmentAndQuestion(ctx context.Context, assignmentID, questionID uint) ([]models.Answer, error) {
	var answers []models.Answer
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND question_id = ?", assignmentID, questionID).
		Find(&answers).Error; err != nil {
		return nil, err
	}

	return answers, nil
}

// Upsert stores the student's response, replacing a previous response to the same question.
// Teacher-assigned score and feedback are left untouched.
func (r *answerRepository) Upsert(ctx context.Context, answer *models.Answer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "assignment_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"choice_id", "selected_choices", "content", "updated_at"}),
	}).Create(answer).Error
}

func (r *answerRepository) SetScore(ctx context.Context, assignmentID, questionID uint, score float64, feedback *string) error {
	updates := map[string]interface{}{"score": score}
	if feedback != nil {
		updates["feedback"] = *feedback
	}

	result := r.db.WithContext(ctx).Model(&models.Answer{}).
		Where("assignment_id = ? AND question_id = ?", assignmentID, questionID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
