package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
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
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

const sweepBatchSize = 500

// AssignmentService drives a student's lifecycle through an assessment.
type AssignmentService interface {
	Open(ctx context.Context, assessmentID, studentID uint) (dto.StudentAssessmentResponse, error)
	Start(ctx context.Context, assessmentID, studentID uint) (dto.AssignmentResponse, error)
	Timer(ctx context.Context, assessmentID, studentID uint) (dto.TimerResponse, error)
	SaveAnswers(ctx context.Context, assessmentID, studentID uint, req dto.SaveAnswersRequest) (dto.AssignmentResponse, error)
	Submit(ctx context.Context, assessmentID, studentID uint) (dto.AssignmentResponse, error)
	AutoSubmitIfExpired(ctx context.Context, assignmentID uint) (bool, error)
	SweepExpired(ctx context.Context) (int, error)
}

type assignmentService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	answers     repository.AnswerRepository
	students    repository.StudentRepository
	activity    ActivityRecorder
	publisher   events.Publisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	grace       time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssignmentService wires the lifecycle service. grace extends the expiry check only.
func NewAssignmentService(
	assessments repository.AssessmentRepository,
	assignments repository.AssignmentRepository,
	answers repository.AnswerRepository,
	students repository.StudentRepository,
	activity ActivityRecorder,
	publisher events.Publisher,
	validator *validator.Validate,
	grace time.Duration,
	logger zerolog.Logger,
) AssignmentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if grace < 0 {
		grace = 0
	}

	return &assignmentService{
		assessments: assessments,
		assignments: assignments,
		answers:     answers,
		students:    students,
		activity:    activity,
		publisher:   publisher,
		validator:   validator,
		sanitizer:   bluemonday.StrictPolicy(),
		grace:       grace,
		logger:      logger.With().Str("component", "assignment_service").Logger(),
		now:         time.Now,
	}
}

// Open returns the student's view of the assessment, creating the assignment on first access.
func (s *assignmentService) Open(ctx context.Context, assessmentID, studentID uint) (dto.StudentAssessmentResponse, error) {
	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		return dto.StudentAssessmentResponse{}, err
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		return dto.StudentAssessmentResponse{}, err
	}

	assignment, created, err := s.assignments.GetOrCreate(ctx, assessmentID, studentID)
	if err != nil {
		return dto.StudentAssessmentResponse{}, err
	}
	if created {
		s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", studentID).Msg("assignment opened")
	}

	assignment, err = s.refreshExpired(ctx, assignment, assessment)
	if err != nil {
		return dto.StudentAssessmentResponse{}, err
	}

	view := dto.NewAssessmentResponse(assessment, false)
	if assessment.Shuffle {
		shuffleQuestions(view.Questions, int64(assignment.ID))
	}

	return dto.StudentAssessmentResponse{
		Assignment: dto.NewAssignmentResponse(assignment, assessment, s.now()),
		Assessment: view,
	}, nil
}

// Start stamps started_at once. Repeat calls report the original start.
func (s *assignmentService) Start(ctx context.Context, assessmentID, studentID uint) (dto.AssignmentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/assignment")
	ctx, span := tracer.Start(ctx, "assignment.start")
	span.SetAttributes(
		attribute.Int64("assignment.assessment_id", int64(assessmentID)),
		attribute.Int64("assignment.student_id", int64(studentID)),
	)
	defer span.End()

	assessment, err := s.loadAssessment(ctx, assessmentID)
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}
	if err := s.ensureStudent(ctx, studentID); err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}

	assignment, _, err := s.assignments.GetOrCreate(ctx, assessmentID, studentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_lookup_failed")
		return dto.AssignmentResponse{}, err
	}
	if assignment.IsSubmitted() {
		span.SetStatus(codes.Error, "already_submitted")
		return dto.AssignmentResponse{}, ErrAlreadySubmitted
	}
	if !assessment.IsSupervised() && assessment.IsPastDue(s.now()) && !assessment.AllowLateSubmission {
		span.SetStatus(codes.Error, "past_due")
		return dto.AssignmentResponse{}, ErrPastDue
	}

	startedAt := s.now()
	applied, err := s.assignments.MarkStarted(ctx, assignment.ID, startedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_start_failed")
		return dto.AssignmentResponse{}, err
	}
	span.SetAttributes(attribute.Bool("assignment.started", applied))

	if applied {
		s.publish(ctx, events.TypeAssignmentStarted, assignment, map[string]interface{}{
			"started_at": startedAt.UTC(),
		})
	}

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	if !applied && assignment.IsSubmitted() {
		return dto.AssignmentResponse{}, ErrAlreadySubmitted
	}

	return dto.NewAssignmentResponse(assignment, assessment, s.now()), nil
}

// Timer reports the countdown and auto-submits when the deadline passed.
func (s *assignmentService) Timer(ctx context.Context, assessmentID, studentID uint) (dto.TimerResponse, error) {
	assignment, err := s.findAssignment(ctx, assessmentID, studentID)
	if err != nil {
		return dto.TimerResponse{}, err
	}
	assessment := assignment.Assessment

	wasSubmitted := assignment.IsSubmitted()
	assignment, err = s.refreshExpired(ctx, assignment, assessment)
	if err != nil {
		return dto.TimerResponse{}, err
	}

	now := s.now()
	response := dto.TimerResponse{
		AssignmentID:  assignment.ID,
		Status:        string(assignment.Status()),
		StartedAt:     assignment.StartedAt,
		Expired:       assignment.IsTimeExpired(assessment, now, 0),
		AutoSubmitted: !wasSubmitted && assignment.ForcedSubmission,
		ServerTime:    now.UTC(),
	}
	if deadline, ok := assignment.Deadline(assessment); ok {
		response.Deadline = &deadline
	}
	if assignment.IsSubmitted() {
		if response.Deadline != nil {
			zero := int64(0)
			response.RemainingSeconds = &zero
		}
	} else {
		response.RemainingSeconds = assignment.RemainingSeconds(assessment, now)
	}

	return response, nil
}

// SaveAnswers upserts the student's responses while the assignment is open.
func (s *assignmentService) SaveAnswers(ctx context.Context, assessmentID, studentID uint, req dto.SaveAnswersRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		if errs, ok := validation.FromValidator(err); ok {
			return dto.AssignmentResponse{}, errs
		}
		return dto.AssignmentResponse{}, err
	}

	assignment, err := s.findAssignment(ctx, assessmentID, studentID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	assessment := assignment.Assessment

	if err := s.ensureWritable(ctx, &assignment, assessment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	answers := make([]models.Answer, 0, len(req.Answers))
	errs := &validation.Errors{}
	for i, item := range req.Answers {
		answer, ok := s.buildAnswer(i, item, assignment.ID, assessment, errs)
		if ok {
			answers = append(answers, answer)
		}
	}
	if invalid := errs.OrNil(); invalid != nil {
		return dto.AssignmentResponse{}, invalid
	}

	for i := range answers {
		if err := s.answers.Upsert(ctx, &answers[i]); err != nil {
			s.logger.Error().Err(err).Uint("assignment_id", assignment.ID).Uint("question_id", answers[i].QuestionID).Msg("failed to save answer")
			return dto.AssignmentResponse{}, err
		}
	}

	return dto.NewAssignmentResponse(assignment, assessment, s.now()), nil
}

// Submit closes the assignment. An expired countdown is recorded as a forced submission instead.
func (s *assignmentService) Submit(ctx context.Context, assessmentID, studentID uint) (dto.AssignmentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/assignment")
	ctx, span := tracer.Start(ctx, "assignment.submit")
	span.SetAttributes(
		attribute.Int64("assignment.assessment_id", int64(assessmentID)),
		attribute.Int64("assignment.student_id", int64(studentID)),
	)
	defer span.End()

	assignment, err := s.findAssignment(ctx, assessmentID, studentID)
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}
	assessment := assignment.Assessment

	wasSubmitted := assignment.IsSubmitted()
	if err := s.ensureWritable(ctx, &assignment, assessment); err != nil {
		if !wasSubmitted && errors.Is(err, ErrAlreadySubmitted) && assignment.ForcedSubmission {
			span.SetAttributes(attribute.Bool("assignment.forced", true))
			return dto.NewAssignmentResponse(assignment, assessment, s.now()), nil
		}
		span.SetStatus(codes.Error, err.Error())
		return dto.AssignmentResponse{}, err
	}

	submittedAt := s.now()
	applied, err := s.assignments.MarkSubmitted(ctx, assignment.ID, submittedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assignment_submit_failed")
		return dto.AssignmentResponse{}, err
	}
	if !applied {
		span.SetStatus(codes.Error, "already_submitted")
		return dto.AssignmentResponse{}, ErrAlreadySubmitted
	}

	s.publish(ctx, events.TypeAssignmentSubmitted, assignment, map[string]interface{}{
		"submitted_at": submittedAt.UTC(),
	})
	s.logger.Info().Uint("assignment_id", assignment.ID).Uint("student_id", studentID).Msg("assignment submitted")

	assignment, err = s.reload(ctx, assignment.ID)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}
	return dto.NewAssignmentResponse(assignment, assessment, s.now()), nil
}

// AutoSubmitIfExpired force-submits an expired supervised assignment at its deadline.
// It reports false without mutating anything when the countdown is still running,
// the assessment has no countdown, or the assignment is already submitted.
func (s *assignmentService) AutoSubmitIfExpired(ctx context.Context, assignmentID uint) (bool, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/assignment")
	ctx, span := tracer.Start(ctx, "assignment.auto_submit")
	span.SetAttributes(attribute.Int64("assignment.id", int64(assignmentID)))
	defer span.End()

	assignment, err := s.reload(ctx, assignmentID)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return s.autoSubmit(ctx, assignment, assignment.Assessment)
}

// SweepExpired auto-submits every open supervised assignment whose countdown ran out.
func (s *assignmentService) SweepExpired(ctx context.Context) (int, error) {
	open, err := s.assignments.ListOpenSupervised(ctx, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	now := s.now()
	submitted := 0
	for _, assignment := range open {
		if !assignment.IsTimeExpired(assignment.Assessment, now, s.grace) {
			continue
		}
		applied, err := s.autoSubmit(ctx, assignment, assignment.Assessment)
		if err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to auto-submit expired assignment")
			continue
		}
		if applied {
			submitted++
		}
	}

	if submitted > 0 {
		s.logger.Info().Int("count", submitted).Msg("expired assignments auto-submitted")
	}
	return submitted, nil
}

func (s *assignmentService) autoSubmit(ctx context.Context, assignment models.AssessmentAssignment, assessment models.Assessment) (bool, error) {
	if assignment.IsSubmitted() {
		return false, nil
	}
	if !assignment.IsTimeExpired(assessment, s.now(), s.grace) {
		return false, nil
	}
	deadline, ok := assignment.Deadline(assessment)
	if !ok {
		return false, nil
	}

	applied, err := s.assignments.ForceSubmit(ctx, assignment.ID, deadline, models.SecurityViolationTimeExpired)
	if err != nil || !applied {
		return false, err
	}

	observability.AutoSubmissions().Inc()
	s.logger.Info().Uint("assignment_id", assignment.ID).Time("deadline", deadline).Msg("assignment auto-submitted")

	if s.activity != nil {
		entityID := assignment.ID
		if _, err := s.activity.Record(ctx, ActivityEntry{
			Action:     models.ActivityAssignmentAutoSubmitted,
			EntityType: "assignment",
			EntityID:   &entityID,
			Metadata: map[string]interface{}{
				"assessment_id":      assignment.AssessmentID,
				"student_id":         assignment.StudentID,
				"security_violation": models.SecurityViolationTimeExpired,
				"submitted_at":       deadline.UTC(),
			},
		}); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to record auto-submit activity")
		}
	}

	s.publish(ctx, events.TypeAssignmentAutoSubmitted, assignment, map[string]interface{}{
		"submitted_at":       deadline.UTC(),
		"security_violation": models.SecurityViolationTimeExpired,
	})

	return true, nil
}

// ensureWritable checks the assignment still accepts answers, starting homework implicitly.
func (s *assignmentService) ensureWritable(ctx context.Context, assignment *models.AssessmentAssignment, assessment models.Assessment) error {
	if assignment.IsSubmitted() {
		return ErrAlreadySubmitted
	}

	if assessment.IsSupervised() {
		if assignment.StartedAt == nil {
			return ErrNotStarted
		}
		refreshed, err := s.refreshExpired(ctx, *assignment, assessment)
		if err != nil {
			return err
		}
		*assignment = refreshed
		if assignment.IsSubmitted() {
			return ErrAlreadySubmitted
		}
		return nil
	}

	if assessment.IsPastDue(s.now()) && !assessment.AllowLateSubmission {
		return ErrPastDue
	}
	if assignment.StartedAt == nil {
		startedAt := s.now()
		if _, err := s.assignments.MarkStarted(ctx, assignment.ID, startedAt); err != nil {
			return err
		}
		assignment.StartedAt = &startedAt
	}
	return nil
}

func (s *assignmentService) refreshExpired(ctx context.Context, assignment models.AssessmentAssignment, assessment models.Assessment) (models.AssessmentAssignment, error) {
	applied, err := s.autoSubmit(ctx, assignment, assessment)
	if err != nil {
		return assignment, err
	}
	if !applied {
		return assignment, nil
	}
	return s.reload(ctx, assignment.ID)
}

func (s *assignmentService) buildAnswer(index int, item dto.AnswerRequest, assignmentID uint, assessment models.Assessment, errs *validation.Errors) (models.Answer, bool) {
	field := func(name string) string { return fmt.Sprintf("answers.%d.%s", index, name) }

	question, ok := assessment.FindQuestion(item.QuestionID)
	if !ok {
		errs.Add(field("question_id"), ErrQuestionNotInAssessment.Error())
		return models.Answer{}, false
	}

	answer := models.Answer{AssignmentID: assignmentID, QuestionID: question.ID}
	selected := append([]uint{}, item.ChoiceIDs...)
	if item.ChoiceID != nil {
		selected = append(selected, *item.ChoiceID)
	}

	valid := true
	for _, id := range selected {
		if _, found := question.FindChoice(id); !found {
			errs.Addf(field("choice_ids"), "choice %d does not belong to question %d", id, question.ID)
			valid = false
		}
	}

	switch question.Type {
	case models.QuestionTypeOneChoice, models.QuestionTypeBoolean:
		if len(selected) > 1 {
			errs.Add(field("choice_id"), "exactly one choice may be selected")
			valid = false
		}
		if len(selected) == 1 {
			choiceID := selected[0]
			answer.ChoiceID = &choiceID
		}
	case models.QuestionTypeMultiple:
		answer.SetSelectedChoices(selected)
	default:
		if len(selected) > 0 {
			errs.Add(field("choice_ids"), "choices are not accepted for free-response questions")
			valid = false
		}
		answer.Content = strings.TrimSpace(s.sanitizer.Sanitize(item.Content))
	}

	return answer, valid
}

func (s *assignmentService) loadAssessment(ctx context.Context, id uint) (models.Assessment, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assessment{}, ErrAssessmentNotFound
		}
		return models.Assessment{}, err
	}
	return assessment, nil
}

func (s *assignmentService) ensureStudent(ctx context.Context, studentID uint) error {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrStudentNotFound
		}
		return err
	}
	if !student.IsStudent() {
		return ErrNotAStudent
	}
	return nil
}

func (s *assignmentService) findAssignment(ctx context.Context, assessmentID, studentID uint) (models.AssessmentAssignment, error) {
	assignment, err := s.assignments.GetByAssessmentAndStudent(ctx, assessmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssessmentAssignment{}, ErrAssignmentNotFound
		}
		return models.AssessmentAssignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) reload(ctx context.Context, id uint) (models.AssessmentAssignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssessmentAssignment{}, ErrAssignmentNotFound
		}
		return models.AssessmentAssignment{}, err
	}
	return assignment, nil
}

func (s *assignmentService) publish(ctx context.Context, eventType string, assignment models.AssessmentAssignment, data map[string]interface{}) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:          eventType,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		AssignmentID:  assignment.ID,
		AssessmentID:  assignment.AssessmentID,
		StudentID:     assignment.StudentID,
		Data:          data,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("event_type", eventType).Uint("assignment_id", assignment.ID).Msg("failed to publish event")
	}
}

// shuffleQuestions orders questions per assignment so reloads keep the same order.
func shuffleQuestions(questions []dto.QuestionResponse, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
}
