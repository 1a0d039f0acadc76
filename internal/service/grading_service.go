package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/observability"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/scoring"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

// GradingService scores assignments automatically and records teacher scores.
type GradingService interface {
	AutoGrade(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.GradingReportResponse, error)
	SaveScores(ctx context.Context, assessmentID, studentID uint, req dto.SaveScoresRequest, actor ActivityActor) (dto.GradingReportResponse, error)
}

// StatsInvalidator drops cached aggregates after grading changes.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, assessmentID uint)
}

type gradingService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	students    repository.StudentRepository
	scoring     *scoring.Registry
	rules       *validation.ScoreRegistry
	activity    ActivityRecorder
	publisher   events.Publisher
	stats       StatsInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewGradingService constructs the grading service.
func NewGradingService(
	assessments repository.AssessmentRepository,
	assignments repository.AssignmentRepository,
	answers repository.AnswerRepository,
	students repository.StudentRepository,
	activity ActivityRecorder,
	publisher events.Publisher,
	stats StatsInvalidator,
	validator *validator.Validate,
	logger zerolog.Logger,
) GradingService {
	if publisher == nil {
		publisher = events.Nop{}
	}

	return &gradingService{
		assessments: assessments,
		assignments: assignments,
		answers:     answers,
		students:    students,
		scoring:     scoring.NewRegistry(),
		rules:       validation.NewScoreRegistry(),
		activity:    activity,
		publisher:   publisher,
		stats:       stats,
		validator:   validator,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		now:         time.Now,
	}
}

// AutoGrade scores choice questions, stores their scores and finalises the assignment when
// nothing is left for manual review.
func (s *gradingService) AutoGrade(ctx context.Context, assignmentID uint, actor ActivityActor) (dto.GradingReportResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.auto")
	span.SetAttributes(
		attribute.Int64("grading.assignment_id", int64(assignmentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assignment_not_found")
			return dto.GradingReportResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}

	answers, err := s.answers.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "answers_lookup_failed")
		return dto.GradingReportResponse{}, err
	}

	result := s.scoring.ScoreAssignment(assignment.Assessment.Questions, scoring.GroupAnswers(answers))
	for _, item := range result.Questions {
		if item.Unsupported {
			observability.UnsupportedQuestions().WithLabelValues(string(item.QuestionType)).Inc()
			s.logger.Warn().Uint("assignment_id", assignment.ID).Uint("question_id", item.QuestionID).
				Str("question_type", string(item.QuestionType)).Msg("no scoring strategy, question flagged for review")
			continue
		}
		if !item.Answered || !item.QuestionType.IsChoiceBased() {
			continue
		}
		if err := s.answers.SetScore(ctx, assignment.ID, item.QuestionID, item.Score, nil); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "score_persist_failed")
			return dto.GradingReportResponse{}, err
		}
		observability.ScoresSaved().WithLabelValues(string(item.QuestionType), "auto").Inc()
	}

	assignment, err = s.finalize(ctx, assignment, result, actor)
	if err != nil {
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}

	s.record(ctx, actor, models.ActivityAssignmentAutoGraded, assignment.ID, map[string]interface{}{
		"assessment_id":  assignment.AssessmentID,
		"student_id":     assignment.StudentID,
		"total":          result.Total,
		"pending_manual": result.PendingManual,
		"unsupported":    result.Unsupported,
	})

	span.SetAttributes(
		attribute.Float64("grading.total", result.Total),
		attribute.Int("grading.pending_manual", result.PendingManual),
		attribute.Int("grading.unsupported", result.Unsupported),
	)

	return s.report(assignment, result), nil
}

// SaveScores validates and persists teacher scores for one student, then recomputes the total.
func (s *gradingService) SaveScores(ctx context.Context, assessmentID, studentID uint, req dto.SaveScoresRequest, actor ActivityActor) (dto.GradingReportResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/grading")
	ctx, span := tracer.Start(ctx, "grading.save_scores")
	span.SetAttributes(
		attribute.Int64("grading.assessment_id", int64(assessmentID)),
		attribute.Int64("grading.student_id", int64(studentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		if errs, ok := validation.FromValidator(err); ok {
			return dto.GradingReportResponse{}, errs
		}
		return dto.GradingReportResponse{}, err
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.GradingReportResponse{}, ErrAssessmentNotFound
		}
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}

	input, err := s.loadScoreInput(ctx, assessment, studentID, req)
	if err != nil {
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}

	if errs := s.rules.Validate(input); errs != nil {
		span.RecordError(errs)
		span.SetStatus(codes.Error, "score_validation_failed")
		return dto.GradingReportResponse{}, errs
	}

	assignment := *input.Assignment
	for _, item := range req.Scores {
		var feedback *string
		if item.Feedback != nil {
			cleaned := strings.TrimSpace(s.sanitizer.Sanitize(*item.Feedback))
			feedback = &cleaned
		}

		if err := s.answers.SetScore(ctx, assignment.ID, item.QuestionID, *item.Score, feedback); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "score_persist_failed")
			return dto.GradingReportResponse{}, err
		}

		question, _ := assessment.FindQuestion(item.QuestionID)
		observability.ScoresSaved().WithLabelValues(string(question.Type), "manual").Inc()

		questionID := item.QuestionID
		s.record(ctx, actor, models.ActivityAnswerScored, assignment.ID, map[string]interface{}{
			"assessment_id": assessment.ID,
			"student_id":    studentID,
			"question_id":   questionID,
			"score":         *item.Score,
		})
	}

	answers, err := s.answers.ListByAssignment(ctx, assignment.ID)
	if err != nil {
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}
	result := s.scoring.ScoreAssignment(assessment.Questions, scoring.GroupAnswers(answers))

	assignment.Assessment = assessment
	assignment, err = s.finalize(ctx, assignment, result, actor)
	if err != nil {
		span.RecordError(err)
		return dto.GradingReportResponse{}, err
	}

	span.SetAttributes(
		attribute.Float64("grading.total", result.Total),
		attribute.String("grading.status", string(assignment.Status())),
	)

	return s.report(assignment, result), nil
}

func (s *gradingService) loadScoreInput(ctx context.Context, assessment models.Assessment, studentID uint, req dto.SaveScoresRequest) (validation.ScoreInput, error) {
	input := validation.ScoreInput{
		Assessment: assessment,
		Scores:     make([]validation.ScoreEntry, 0, len(req.Scores)),
	}
	for _, item := range req.Scores {
		input.Scores = append(input.Scores, validation.ScoreEntry{QuestionID: item.QuestionID, Score: *item.Score})
	}

	student, err := s.students.GetByID(ctx, studentID)
	switch {
	case err == nil:
		input.Student = &student
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return input, err
	}

	assignment, err := s.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, studentID)
	switch {
	case err == nil:
		input.Assignment = &assignment
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return input, err
	}

	if input.Assignment != nil {
		answers, err := s.answers.ListByAssignment(ctx, input.Assignment.ID)
		if err != nil {
			return input, err
		}
		input.Answers = answers
	}

	return input, nil
}

// finalize moves a submitted assignment to graded once every answered manual question has a
// score. Already graded assignments only get their total refreshed.
func (s *gradingService) finalize(ctx context.Context, assignment models.AssessmentAssignment, result scoring.Result, actor ActivityActor) (models.AssessmentAssignment, error) {
	if !assignment.IsSubmitted() {
		return assignment, nil
	}
	if s.stats != nil {
		defer s.stats.Invalidate(ctx, assignment.AssessmentID)
	}

	total := result.Total
	if assignment.GradedAt != nil {
		if err := s.assignments.UpdateScore(ctx, assignment.ID, total); err != nil {
			return assignment, err
		}
		assignment.Score = &total
		return assignment, nil
	}

	if !result.Complete() {
		return assignment, nil
	}

	gradedAt := s.now()
	applied, err := s.assignments.MarkGraded(ctx, assignment.ID, total, gradedAt)
	if err != nil {
		return assignment, err
	}
	if !applied {
		if err := s.assignments.UpdateScore(ctx, assignment.ID, total); err != nil {
			return assignment, err
		}
		assignment.Score = &total
		return assignment, nil
	}

	assignment.Score = &total
	assignment.GradedAt = &gradedAt
	observability.AssignmentsGraded().Inc()
	s.logger.Info().Uint("assignment_id", assignment.ID).Float64("score", total).Msg("assignment graded")

	s.record(ctx, actor, models.ActivityAssignmentGraded, assignment.ID, map[string]interface{}{
		"assessment_id": assignment.AssessmentID,
		"student_id":    assignment.StudentID,
		"score":         total,
		"max_points":    result.MaxPoints,
	})

	if err := s.publisher.Publish(ctx, events.Event{
		Type:          events.TypeAssignmentGraded,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		AssignmentID:  assignment.ID,
		AssessmentID:  assignment.AssessmentID,
		StudentID:     assignment.StudentID,
		Data:          map[string]interface{}{"score": total, "max_points": result.MaxPoints},
		OccurredAt:    gradedAt.UTC(),
	}); err != nil {
		s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to publish graded event")
	}

	return assignment, nil
}

func (s *gradingService) record(ctx context.Context, actor ActivityActor, action string, assignmentID uint, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}
	entityID := assignmentID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: "assignment",
		EntityID:   &entityID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Uint("assignment_id", assignmentID).Msg("failed to record grading activity")
	}
}

func (s *gradingService) report(assignment models.AssessmentAssignment, result scoring.Result) dto.GradingReportResponse {
	report := dto.NewGradingReport(result)
	report.AssignmentID = assignment.ID
	report.AssessmentID = assignment.AssessmentID
	report.StudentID = assignment.StudentID
	report.Status = string(assignment.Status())
	report.GradedAt = assignment.GradedAt
	return report
}
