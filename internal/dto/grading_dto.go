package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/scoring"
)

// ScoreItemRequest is one teacher-assigned question score.
type ScoreItemRequest struct {
	QuestionID uint     `json:"question_id" validate:"required,gt=0"`
	Score      *float64 `json:"score" validate:"required"`
	Feedback   *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// SaveScoresRequest is the grading payload for one student.
type SaveScoresRequest struct {
	Scores []ScoreItemRequest `json:"scores" validate:"required,min=1,dive"`
}

// GradingReportResponse summarises scoring for one assignment.
type GradingReportResponse struct {
	AssignmentID  uint                     `json:"assignment_id"`
	AssessmentID  uint                     `json:"assessment_id"`
	StudentID     uint                     `json:"student_id"`
	Status        string                   `json:"status"`
	Total         float64                  `json:"total"`
	MaxPoints     float64                  `json:"max_points"`
	Percentage    float64                  `json:"percentage"`
	PendingManual int                      `json:"pending_manual"`
	Unsupported   int                      `json:"unsupported"`
	Questions     []scoring.QuestionResult `json:"questions"`
	GradedAt      *time.Time               `json:"graded_at"`
}

// NewGradingReport converts a scoring result into the response DTO.
func NewGradingReport(result scoring.Result) GradingReportResponse {
	report := GradingReportResponse{
		Total:         result.Total,
		MaxPoints:     result.MaxPoints,
		PendingManual: result.PendingManual,
		Unsupported:   result.Unsupported,
		Questions:     result.Questions,
	}
	if result.MaxPoints > 0 {
		report.Percentage = result.Total / result.MaxPoints * 100
	}
	return report
}
