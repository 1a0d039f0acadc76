package dto

import "time"

// ScoreDistribution buckets graded assignments by percentage of max points.
type ScoreDistribution map[string]int

// AssessmentStatsResponse aggregates the progress of every assignment of an assessment.
type AssessmentStatsResponse struct {
	AssessmentID   uint              `json:"assessment_id"`
	Assigned       int               `json:"assigned"`
	NotStarted     int               `json:"not_started"`
	InProgress     int               `json:"in_progress"`
	NotSubmitted   int               `json:"not_submitted"`
	Submitted      int               `json:"submitted"`
	Graded         int               `json:"graded"`
	ForcedSubmits  int               `json:"forced_submissions"`
	CompletionRate float64           `json:"completion_rate"`
	AverageScore   float64           `json:"average_score"`
	HighestScore   *float64          `json:"highest_score"`
	LowestScore    *float64          `json:"lowest_score"`
	MaxPoints      float64           `json:"max_points"`
	Distribution   ScoreDistribution `json:"distribution"`
	GeneratedAt    time.Time         `json:"generated_at"`
	CacheHit       bool              `json:"cache_hit"`
}
