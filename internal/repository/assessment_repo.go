package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AssessmentFilter describes pagination & search options.
type AssessmentFilter struct {
	Search       string
	DeliveryMode string
	CreatedBy    *uint
	Sort         string
	Page         int
	PageSize     int
}

// AssessmentRepository defines persistence operations for assessments and their questions.
type AssessmentRepository interface {
	List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error)
	GetByID(ctx context.Context, id uint) (models.Assessment, error)
	Create(ctx context.Context, assessment *models.Assessment) error
	Update(ctx context.Context, assessment *models.Assessment, replaceQuestions bool) error
	HasAnswers(ctx context.Context, assessmentID uint) (bool, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository instantiates a GORM-backed repository.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) withQuestions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		}).
		Preload("Questions.Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, id ASC")
		})
}

func (r *assessmentRepository) List(ctx context.Context, filter AssessmentFilter) ([]models.Assessment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assessment{})

	if filter.Search != "" {
		pattern := "%" + strings.ToLower(strings.TrimSpace(filter.Search)) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if filter.DeliveryMode != "" {
		query = query.Where("delivery_mode = ?", filter.DeliveryMode)
	}

	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(normalizeAssessmentSort(filter.Sort))

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		offset := (page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var assessments []models.Assessment
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, err
	}

	return assessments, total, nil
}

func (r *assessmentRepository) GetByID(ctx context.Context, id uint) (models.Assessment, error) {
	var assessment models.Assessment
	if err := r.withQuestions(ctx).First(&assessment, id).Error; err != nil {
		return models.Assessment{}, err
	}

	return assessment, nil
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

// Update saves the assessment columns. When replaceQuestions is set the stored questions and
// choices are dropped and recreated from the struct inside one transaction.
func (r *assessmentRepository) Update(ctx context.Context, assessment *models.Assessment, replaceQuestions bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Questions").Save(assessment).Error; err != nil {
			return err
		}
		if !replaceQuestions {
			return nil
		}

		var questionIDs []uint
		if err := tx.Model(&models.Question{}).Where("assessment_id = ?", assessment.ID).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&models.Choice{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", questionIDs).Delete(&models.Question{}).Error; err != nil {
				return err
			}
		}

		for i := range assessment.Questions {
			question := &assessment.Questions[i]
			question.ID = 0
			question.AssessmentID = assessment.ID
			for j := range question.Choices {
				question.Choices[j].ID = 0
				question.Choices[j].QuestionID = 0
			}
			if err := tx.Create(question).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *assessmentRepository) HasAnswers(ctx context.Context, assessmentID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Answer{}).
		Joins("JOIN questions ON questions.id = answers.question_id").
		Where("questions.assessment_id = ?", assessmentID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func normalizeAssessmentSort(sort string) string {
	switch strings.ToLower(strings.TrimSpace(sort)) {
	case "title", "title:asc", "title.asc":
		return "title ASC"
	case "-title", "title:desc", "title.desc":
		return "title DESC"
	case "created_at", "created_at:asc", "created_at.asc":
		return "created_at ASC"
	case "updated_at", "updated_at:asc", "updated_at.asc":
		return "updated_at ASC"
	case "-updated_at", "updated_at:desc", "updated_at.desc":
		return "updated_at DESC"
	default:
		return "created_at DESC"
	}
}
