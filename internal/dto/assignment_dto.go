package dto

import (
	"time"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// AnswerRequest is one student response.
type AnswerRequest struct {
	QuestionID uint   `json:"question_id" validate:"required,gt=0"`
	ChoiceID   *uint  `json:"choice_id" validate:"omitempty,gt=0"`
	ChoiceIDs  []uint `json:"choice_ids" validate:"omitempty,dive,gt=0"`
	Content    string `json:"content" validate:"max=20000"`
}

// SaveAnswersRequest stores a batch of responses.
type SaveAnswersRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"required,min=1,dive"`
}

// AssignmentResponse serializes a student's assignment with its derived state.
type AssignmentResponse struct {
	ID                uint       `json:"id"`
	AssessmentID      uint       `json:"assessment_id"`
	StudentID         uint       `json:"student_id"`
	Status            string     `json:"status"`
	StartedAt         *time.Time `json:"started_at"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	GradedAt          *time.Time `json:"graded_at"`
	Score             *float64   `json:"score"`
	ForcedSubmission  bool       `json:"forced_submission"`
	SecurityViolation *string    `json:"security_violation"`
	Deadline          *time.Time `json:"deadline"`
	RemainingSeconds  *int64     `json:"remaining_seconds"`
}

// TimerResponse is the countdown view polled by students.
type TimerResponse struct {
	AssignmentID     uint       `json:"assignment_id"`
	Status           string     `json:"status"`
	StartedAt        *time.Time `json:"started_at"`
	Deadline         *time.Time `json:"deadline"`
	RemainingSeconds *int64     `json:"remaining_seconds"`
	Expired          bool       `json:"expired"`
	AutoSubmitted    bool       `json:"auto_submitted"`
	ServerTime       time.Time  `json:"server_time"`
}

// StudentAssessmentResponse bundles the assignment with the questions a student may see.
type StudentAssessmentResponse struct {
	Assignment AssignmentResponse `json:"assignment"`
	Assessment AssessmentResponse `json:"assessment"`
}

// NewAssignmentResponse converts a model into a DTO, computing timer fields at now.
func NewAssignmentResponse(model models.AssessmentAssignment, assessment models.Assessment, now time.Time) AssignmentResponse {
	response := AssignmentResponse{
		ID:                model.ID,
		AssessmentID:      model.AssessmentID,
		StudentID:         model.StudentID,
		Status:            string(model.Status()),
		StartedAt:         model.StartedAt,
		SubmittedAt:       model.SubmittedAt,
		GradedAt:          model.GradedAt,
		Score:             model.Score,
		ForcedSubmission:  model.ForcedSubmission,
		SecurityViolation: model.SecurityViolation,
	}

	if deadline, ok := model.Deadline(assessment); ok {
		response.Deadline = &deadline
	}
	if !model.IsSubmitted() {
		response.RemainingSeconds = model.RemainingSeconds(assessment, now)
	}

	return response
}
