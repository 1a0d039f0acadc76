package models

import "time"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeBoolean   QuestionType = "boolean"
	QuestionTypeOneChoice QuestionType = "one_choice"
	QuestionTypeMultiple  QuestionType = "multiple"
	QuestionTypeText      QuestionType = "text"
	QuestionTypeEssay     QuestionType = "essay"
	QuestionTypeFile      QuestionType = "file"
)

// QuestionTypes lists every known question type.
var QuestionTypes = []QuestionType{
	QuestionTypeBoolean,
	QuestionTypeOneChoice,
	QuestionTypeMultiple,
	QuestionTypeText,
	QuestionTypeEssay,
	QuestionTypeFile,
}

// IsChoiceBased reports whether answers to this type reference choices.
func (t QuestionType) IsChoiceBased() bool {
	switch t {
	case QuestionTypeBoolean, QuestionTypeOneChoice, QuestionTypeMultiple:
		return true
	default:
		return false
	}
}

// IsManuallyGraded reports whether a teacher must score answers of this type.
func (t QuestionType) IsManuallyGraded() bool {
	switch t {
	case QuestionTypeText, QuestionTypeEssay, QuestionTypeFile:
		return true
	default:
		return false
	}
}

// Question belongs to an assessment and carries its own point value.
type Question struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	AssessmentID uint         `gorm:"not null;index" json:"assessment_id"`
	Type         QuestionType `gorm:"size:32;not null" json:"type"`
	Content      string       `gorm:"type:text;not null" json:"content"`
	Points       float64      `gorm:"not null" json:"points"`
	Position     int          `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Choices      []Choice     `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"choices"`
}

// Choice is one selectable option of a choice-based question.
type Choice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	QuestionID uint      `gorm:"not null;index" json:"question_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	IsCorrect  bool      `gorm:"not null;default:false" json:"is_correct"`
	Position   int       `gorm:"not null;default:0" json:"position"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CorrectChoiceIDs returns the identifiers of every correct choice.
func (q Question) CorrectChoiceIDs() []uint {
	ids := make([]uint, 0, len(q.Choices))
	for _, choice := range q.Choices {
		if choice.IsCorrect {
			ids = append(ids, choice.ID)
		}
	}
	return ids
}

// FindChoice looks up a choice of this question by identifier.
func (q Question) FindChoice(id uint) (Choice, bool) {
	for _, choice := range q.Choices {
		if choice.ID == id {
			return choice, true
		}
	}
	return Choice{}, false
}

// CorrectChoiceCount counts choices flagged correct, including ones not yet persisted.
func (q Question) CorrectChoiceCount() int {
	count := 0
	for _, choice := range q.Choices {
		if choice.IsCorrect {
			count++
		}
	}
	return count
}
