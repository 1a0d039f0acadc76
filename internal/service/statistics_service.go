package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
)

// Score distribution buckets on the percentage of max points.
const (
	BucketExcellent = "90-100"
	BucketGood      = "75-89"
	BucketFair      = "60-74"
	BucketLow       = "0-59"
)

// StatisticsService aggregates assignment progress per assessment.
type StatisticsService interface {
	AssessmentStats(ctx context.Context, assessmentID uint) (dto.AssessmentStatsResponse, error)
	Invalidate(ctx context.Context, assessmentID uint)
}

type statisticsService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewStatisticsService builds the aggregator. A nil cache disables caching.
func NewStatisticsService(assessments repository.AssessmentRepository, assignments repository.AssignmentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) StatisticsService {
	return &statisticsService{
		assessments: assessments,
		assignments: assignments,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "statistics_service").Logger(),
		now:         time.Now,
	}
}

func statsCacheKey(assessmentID uint) string {
	return fmt.Sprintf("stats:assessment:%d", assessmentID)
}

func (s *statisticsService) AssessmentStats(ctx context.Context, assessmentID uint) (dto.AssessmentStatsResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/statistics")
	ctx, span := tracer.Start(ctx, "statistics.assessment", trace.WithAttributes(
		attribute.Int("assessment.id", int(assessmentID)),
	))
	defer span.End()

	cacheKey := statsCacheKey(assessmentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.AssessmentStatsResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("statistics.cache_hit", true))
				return response, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read stats cache")
		}
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentStatsResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentStatsResponse{}, err
	}

	assignments, err := s.assignments.ListByAssessment(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		return dto.AssessmentStatsResponse{}, err
	}

	response := buildAssessmentStats(assessment, assignments)
	response.GeneratedAt = s.now().UTC()

	if s.cache != nil && s.cacheTTL > 0 {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store stats cache")
			}
		}
	}

	return response, nil
}

// Invalidate drops the cached aggregate so the next read recomputes it.
func (s *statisticsService) Invalidate(ctx context.Context, assessmentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey(assessmentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("assessment_id", assessmentID).Msg("failed to invalidate stats cache")
	}
}

func buildAssessmentStats(assessment models.Assessment, assignments []models.AssessmentAssignment) dto.AssessmentStatsResponse {
	maxPoints := assessment.MaxPoints()
	response := dto.AssessmentStatsResponse{
		AssessmentID: assessment.ID,
		Assigned:     len(assignments),
		MaxPoints:    maxPoints,
		Distribution: dto.ScoreDistribution{
			BucketExcellent: 0,
			BucketGood:      0,
			BucketFair:      0,
			BucketLow:       0,
		},
	}

	var scoreTotal float64
	var scored int
	for _, assignment := range assignments {
		status := assignment.Status()
		switch status {
		case models.AssignmentStatusNotStarted:
			response.NotStarted++
		case models.AssignmentStatusInProgress:
			response.InProgress++
		case models.AssignmentStatusSubmitted:
			response.Submitted++
		case models.AssignmentStatusGraded:
			response.Graded++
		}
		if status.IsNotSubmitted() {
			response.NotSubmitted++
		}
		if assignment.ForcedSubmission {
			response.ForcedSubmits++
		}

		if status != models.AssignmentStatusGraded || assignment.Score == nil {
			continue
		}
		score := *assignment.Score
		scoreTotal += score
		scored++
		if response.HighestScore == nil || score > *response.HighestScore {
			high := score
			response.HighestScore = &high
		}
		if response.LowestScore == nil || score < *response.LowestScore {
			low := score
			response.LowestScore = &low
		}
		if maxPoints > 0 {
			response.Distribution[distributionBucket(score/maxPoints*100)]++
		}
	}

	if response.Assigned > 0 {
		response.CompletionRate = roundTwo(float64(response.Graded) / float64(response.Assigned) * 100)
	}
	if scored > 0 {
		response.AverageScore = roundTwo(scoreTotal / float64(scored))
	}

	return response
}

func distributionBucket(percentage float64) string {
	switch {
	case percentage >= 90:
		return BucketExcellent
	case percentage >= 75:
		return BucketGood
	case percentage >= 60:
		return BucketFair
	default:
		return BucketLow
	}
}

func roundTwo(value float64) float64 {
	return math.Round(value*100) / 100
}
