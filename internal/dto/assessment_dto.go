package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// ChoiceRequest describes one authored choice.
type ChoiceRequest struct {
	Content   string `json:"content" validate:"required"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionRequest describes one authored question.
type QuestionRequest struct {
	Type    string          `json:"type" validate:"required,oneof=boolean one_choice multiple text essay file"`
	Content string          `json:"content" validate:"required"`
	Points  float64         `json:"points"`
	Choices []ChoiceRequest `json:"choices" validate:"omitempty,dive"`
}

// AssessmentRequest is the create/update payload; updates replace the whole question list.
type AssessmentRequest struct {
	Title                  string            `json:"title" validate:"required,min=3"`
	Description            string            `json:"description"`
	DeliveryMode           string            `json:"delivery_mode" validate:"required,oneof=supervised homework"`
	DurationMinutes        *int              `json:"duration_minutes" validate:"omitempty,gt=0"`
	ScheduledAt            *time.Time        `json:"scheduled_at"`
	DueDate                *time.Time        `json:"due_date"`
	Shuffle                bool              `json:"shuffle"`
	ShowResultsImmediately bool              `json:"show_results_immediately"`
	AllowLateSubmission    bool              `json:"allow_late_submission"`
	Questions              []QuestionRequest `json:"questions" validate:"required,min=1,dive"`
}

// AssessmentListRequest holds query filters.
type AssessmentListRequest struct {
	Search       string
	DeliveryMode string
	Sort         string
	Page         int
	PageSize     int
}

// AssignStudentsRequest enrolls students into an assessment.
type AssignStudentsRequest struct {
	StudentIDs []uint `json:"student_ids" validate:"required,min=1,dive,gt=0"`
}

// ChoiceResponse serializes a choice; IsCorrect is omitted for students.
type ChoiceResponse struct {
	ID        uint   `json:"id"`
	Content   string `json:"content"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

// QuestionResponse serializes a question.
type QuestionResponse struct {
	ID       uint             `json:"id"`
	Type     string           `json:"type"`
	Content  string           `json:"content"`
	Points   float64          `json:"points"`
	Position int              `json:"position"`
	Choices  []ChoiceResponse `json:"choices"`
}

// AssessmentResponse serializes an assessment.
type AssessmentResponse struct {
	ID                     uint               `json:"id"`
	Title                  string             `json:"title"`
	Description            string             `json:"description"`
	DeliveryMode           string             `json:"delivery_mode"`
	DurationMinutes        *int               `json:"duration_minutes"`
	ScheduledAt            *time.Time         `json:"scheduled_at"`
	DueDate                *time.Time         `json:"due_date"`
	Shuffle                bool               `json:"shuffle"`
	ShowResultsImmediately bool               `json:"show_results_immediately"`
	AllowLateSubmission    bool               `json:"allow_late_submission"`
	MaxPoints              float64            `json:"max_points"`
	Questions              []QuestionResponse `json:"questions,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// AssessmentListResponse wraps a paginated assessment list.
type AssessmentListResponse struct {
	Items      []AssessmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}

// NewAssessmentResponse converts a model into a DTO. revealAnswers controls whether correct choices are exposed.
func NewAssessmentResponse(model models.Assessment, revealAnswers bool) AssessmentResponse {
	response := AssessmentResponse{
		ID:                     model.ID,
		Title:                  model.Title,
		Description:            model.Description,
		DeliveryMode:           string(model.DeliveryMode),
		DurationMinutes:        model.DurationMinutes,
		ScheduledAt:            model.ScheduledAt,
		DueDate:                model.DueDate,
		Shuffle:                model.Shuffle,
		ShowResultsImmediately: model.ShowResultsImmediately,
		AllowLateSubmission:    model.AllowLateSubmission,
		MaxPoints:              model.MaxPoints(),
		CreatedAt:              model.CreatedAt,
		UpdatedAt:              model.UpdatedAt,
	}

	if len(model.Questions) > 0 {
		questions := make([]QuestionResponse, 0, len(model.Questions))
		for _, question := range model.Questions {
			questions = append(questions, newQuestionResponse(question, revealAnswers))
		}
		response.Questions = questions
	}

	return response
}

func newQuestionResponse(question models.Question, revealAnswers bool) QuestionResponse {
	choices := make([]ChoiceResponse, 0, len(question.Choices))
	for _, choice := range question.Choices {
		item := ChoiceResponse{ID: choice.ID, Content: choice.Content}
		if revealAnswers {
			correct := choice.IsCorrect
			item.IsCorrect = &correct
		}
		choices = append(choices, item)
	}

	return QuestionResponse{
		ID:       question.ID,
		Type:     string(question.Type),
		Content:  question.Content,
		Points:   question.Points,
		Position: question.Position,
		Choices:  choices,
	}
}

// ToModel converts the request into an assessment with ordered questions and choices.
func (r AssessmentRequest) ToModel() models.Assessment {
	assessment := models.Assessment{
		Title:                  r.Title,
		Description:            r.Description,
		DeliveryMode:           models.DeliveryMode(r.DeliveryMode),
		DurationMinutes:        r.DurationMinutes,
		ScheduledAt:            r.ScheduledAt,
		DueDate:                r.DueDate,
		Shuffle:                r.Shuffle,
		ShowResultsImmediately: r.ShowResultsImmediately,
		AllowLateSubmission:    r.AllowLateSubmission,
		Questions:              make([]models.Question, 0, len(r.Questions)),
	}

	for i, q := range r.Questions {
		question := models.Question{
			Type:     models.QuestionType(q.Type),
			Content:  q.Content,
			Points:   q.Points,
			Position: i + 1,
		}
		for j, c := range q.Choices {
			question.Choices = append(question.Choices, models.Choice{
				Content:   c.Content,
				IsCorrect: c.IsCorrect,
				Position:  j + 1,
			})
		}
		assessment.Questions = append(assessment.Questions, question)
	}

	return assessment
}
