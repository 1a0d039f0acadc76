package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Answer is a student's response to one question within one assignment.
type Answer struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	AssignmentID    uint           `gorm:"not null;uniqueIndex:idx_answer_assignment_question" json:"assignment_id"`
	QuestionID      uint           `gorm:"not null;uniqueIndex:idx_answer_assignment_question" json:"question_id"`
	ChoiceID        *uint          `json:"choice_id"`
	SelectedChoices datatypes.JSON `gorm:"type:json" json:"-"`
	Content         string         `gorm:"type:text" json:"content"`
	Score           *float64       `json:"score"`
	Feedback        string         `gorm:"type:text" json:"feedback"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SetSelectedChoices stores a multi-choice selection in the JSON column.
func (a *Answer) SetSelectedChoices(ids []uint) {
	if ids == nil {
		ids = []uint{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		a.SelectedChoices = datatypes.JSON([]byte("[]"))
		return
	}
	a.SelectedChoices = datatypes.JSON(data)
}

// SelectedChoiceIDs decodes the multi-choice selection.
func (a Answer) SelectedChoiceIDs() []uint {
	if len(a.SelectedChoices) == 0 {
		return nil
	}

	var ids []uint
	if err := json.Unmarshal(a.SelectedChoices, &ids); err != nil {
		return nil
	}

	return ids
}

// HasManualScore reports whether a teacher assigned a score.
func (a Answer) HasManualScore() bool {
	return a.Score != nil
}
