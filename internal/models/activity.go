package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is an audit entry written for every grading action.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"not null;index" json:"actor_id"`
	ActorRole  string            `gorm:"size:32;not null" json:"actor_role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `gorm:"index" json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Audited grading actions.
const (
	ActivityAssignmentAutoSubmitted = "assignment.auto_submitted"
	ActivityAssignmentGraded        = "assignment.graded"
	ActivityAnswerScored            = "answer.scored"
	ActivityAssignmentAutoGraded    = "assignment.auto_graded"
)
