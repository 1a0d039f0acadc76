package models

import "time"

// DeliveryMode describes how an assessment is taken.
type DeliveryMode string

const (
	// DeliveryModeSupervised is a timed assessment with a start-triggered countdown.
	DeliveryModeSupervised DeliveryMode = "supervised"
	// DeliveryModeHomework is due-date based without a countdown.
	DeliveryModeHomework DeliveryMode = "homework"
)

// Assessment is an assignable unit of evaluation authored by a teacher.
type Assessment struct {
	ID                     uint         `gorm:"primaryKey" json:"id"`
	Title                  string       `gorm:"size:255;not null" json:"title"`
	Description            string       `gorm:"type:text" json:"description"`
	DeliveryMode           DeliveryMode `gorm:"size:32;not null" json:"delivery_mode"`
	DurationMinutes        *int         `json:"duration_minutes"`
	ScheduledAt            *time.Time   `json:"scheduled_at"`
	DueDate                *time.Time   `json:"due_date"`
	Shuffle                bool         `gorm:"not null;default:false" json:"shuffle"`
	ShowResultsImmediately bool         `gorm:"not null;default:false" json:"show_results_immediately"`
	AllowLateSubmission    bool         `gorm:"not null;default:false" json:"allow_late_submission"`
	CreatedBy              uint         `gorm:"not null;default:0" json:"created_by"`
	CreatedAt              time.Time    `json:"created_at"`
	UpdatedAt              time.Time    `json:"updated_at"`
	Questions              []Question   `gorm:"foreignKey:AssessmentID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"questions"`
}

// IsSupervised reports whether the assessment runs on a countdown.
func (a Assessment) IsSupervised() bool {
	return a.DeliveryMode == DeliveryModeSupervised
}

// Duration returns the countdown length, or zero when none applies.
func (a Assessment) Duration() time.Duration {
	if !a.IsSupervised() || a.DurationMinutes == nil || *a.DurationMinutes <= 0 {
		return 0
	}
	return time.Duration(*a.DurationMinutes) * time.Minute
}

// IsPastDue returns true when a homework deadline has already passed.
func (a Assessment) IsPastDue(reference time.Time) bool {
	if a.DeliveryMode != DeliveryModeHomework || a.DueDate == nil {
		return false
	}
	return reference.After(*a.DueDate)
}

// MaxPoints sums the point value of every question.
func (a Assessment) MaxPoints() float64 {
	var total float64
	for _, question := range a.Questions {
		total += question.Points
	}
	return total
}

// FindQuestion looks up a question of this assessment by identifier.
func (a Assessment) FindQuestion(id uint) (Question, bool) {
	for _, question := range a.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}
