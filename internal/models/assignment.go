package models

import "time"

// AssignmentStatus is derived from an assignment's lifecycle timestamps.
type AssignmentStatus string

const (
	AssignmentStatusNotStarted AssignmentStatus = "not_started"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusSubmitted  AssignmentStatus = "submitted"
	AssignmentStatusGraded     AssignmentStatus = "graded"
)

// SecurityViolationTimeExpired marks a submission forced by the countdown.
const SecurityViolationTimeExpired = "time_expired"

// IsNotSubmitted groups not-started and in-progress assignments.
func (s AssignmentStatus) IsNotSubmitted() bool {
	return s == AssignmentStatusNotStarted || s == AssignmentStatusInProgress
}

// DeriveStatus maps the three lifecycle timestamps to a status; graded wins over submitted, submitted over started.
func DeriveStatus(startedAt, submittedAt, gradedAt *time.Time) AssignmentStatus {
	switch {
	case gradedAt != nil:
		return AssignmentStatusGraded
	case submittedAt != nil:
		return AssignmentStatusSubmitted
	case startedAt != nil:
		return AssignmentStatusInProgress
	default:
		return AssignmentStatusNotStarted
	}
}

// AssessmentAssignment is one student's instance of an assessment.
type AssessmentAssignment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AssessmentID      uint       `gorm:"not null;uniqueIndex:idx_assignment_assessment_student" json:"assessment_id"`
	StudentID         uint       `gorm:"not null;uniqueIndex:idx_assignment_assessment_student" json:"student_id"`
	StartedAt         *time.Time `json:"started_at"`
	SubmittedAt       *time.Time `json:"submitted_at"`
	GradedAt          *time.Time `json:"graded_at"`
	Score             *float64   `json:"score"`
	ForcedSubmission  bool       `gorm:"not null;default:false" json:"forced_submission"`
	SecurityViolation *string    `gorm:"size:64" json:"security_violation"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Assessment        Assessment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assessment"`
	Student           Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
	Answers           []Answer   `gorm:"foreignKey:AssignmentID" json:"answers"`
}

// Status derives the lifecycle status from the stored timestamps.
func (a AssessmentAssignment) Status() AssignmentStatus {
	return DeriveStatus(a.StartedAt, a.SubmittedAt, a.GradedAt)
}

// IsSubmitted reports whether a submission timestamp exists.
func (a AssessmentAssignment) IsSubmitted() bool {
	return a.SubmittedAt != nil
}

// Deadline returns started_at + duration for supervised assessments.
func (a AssessmentAssignment) Deadline(assessment Assessment) (time.Time, bool) {
	duration := assessment.Duration()
	if duration <= 0 || a.StartedAt == nil {
		return time.Time{}, false
	}
	return a.StartedAt.Add(duration), true
}

// RemainingSeconds reports the countdown left at now, floored at zero.
// It returns nil for homework assessments and assignments that have not started.
func (a AssessmentAssignment) RemainingSeconds(assessment Assessment, now time.Time) *int64 {
	if a.StartedAt == nil {
		return nil
	}
	duration := assessment.Duration()
	if duration <= 0 {
		return nil
	}

	elapsed := int64(now.Sub(*a.StartedAt) / time.Second)
	remaining := int64(duration/time.Second) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// IsTimeExpired reports whether now has reached the deadline extended by grace.
// Grace only affects this check, never the reported remaining time.
func (a AssessmentAssignment) IsTimeExpired(assessment Assessment, now time.Time, grace time.Duration) bool {
	deadline, ok := a.Deadline(assessment)
	if !ok {
		return false
	}
	if grace < 0 {
		grace = 0
	}
	return !now.Before(deadline.Add(grace))
}
