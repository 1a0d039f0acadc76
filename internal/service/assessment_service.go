package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

// AssessmentService manages teacher-authored assessments.
type AssessmentService interface {
	Create(ctx context.Context, actor ActivityActor, req dto.AssessmentRequest) (dto.AssessmentResponse, error)
	Update(ctx context.Context, id uint, req dto.AssessmentRequest) (dto.AssessmentResponse, error)
	Get(ctx context.Context, id uint) (dto.AssessmentResponse, error)
	List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error)
	AssignStudents(ctx context.Context, assessmentID uint, req dto.AssignStudentsRequest) ([]dto.AssignmentResponse, error)
}

type assessmentService struct {
	assessments repository.AssessmentRepository
	assignments repository.AssignmentRepository
	students    repository.StudentRepository
	questions   *validation.QuestionRegistry
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAssessmentService constructs the authoring service.
func NewAssessmentService(assessments repository.AssessmentRepository, assignments repository.AssignmentRepository, students repository.StudentRepository, validator *validator.Validate, logger zerolog.Logger) AssessmentService {
	return &assessmentService{
		assessments: assessments,
		assignments: assignments,
		students:    students,
		questions:   validation.NewQuestionRegistry(),
		validator:   validator,
		logger:      logger.With().Str("component", "assessment_service").Logger(),
		now:         time.Now,
	}
}

func (s *assessmentService) Create(ctx context.Context, actor ActivityActor, req dto.AssessmentRequest) (dto.AssessmentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/assessment")
	ctx, span := tracer.Start(ctx, "assessment.create")
	defer span.End()

	model, err := s.validate(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AssessmentResponse{}, err
	}
	model.CreatedBy = actor.ID

	if err := s.assessments.Create(ctx, &model); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment_create_failed")
		s.logger.Error().Err(err).Msg("failed to create assessment")
		return dto.AssessmentResponse{}, err
	}

	span.SetAttributes(
		attribute.Int64("assessment.id", int64(model.ID)),
		attribute.Int("assessment.questions", len(model.Questions)),
	)
	s.logger.Info().Uint("assessment_id", model.ID).Str("delivery_mode", string(model.DeliveryMode)).Msg("assessment created")

	return dto.NewAssessmentResponse(model, true), nil
}

func (s *assessmentService) Update(ctx context.Context, id uint, req dto.AssessmentRequest) (dto.AssessmentResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/gema-assessment-api/internal/service/assessment")
	ctx, span := tracer.Start(ctx, "assessment.update")
	span.SetAttributes(attribute.Int64("assessment.id", int64(id)))
	defer span.End()

	existing, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "assessment_not_found")
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		span.RecordError(err)
		return dto.AssessmentResponse{}, err
	}

	model, err := s.validate(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AssessmentResponse{}, err
	}

	locked, err := s.assessments.HasAnswers(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.AssessmentResponse{}, err
	}
	if locked {
		span.SetStatus(codes.Error, "assessment_locked")
		return dto.AssessmentResponse{}, ErrAssessmentLocked
	}

	model.ID = existing.ID
	model.CreatedBy = existing.CreatedBy
	model.CreatedAt = existing.CreatedAt

	if err := s.assessments.Update(ctx, &model, true); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assessment_update_failed")
		return dto.AssessmentResponse{}, err
	}

	updated, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(updated, true), nil
}

func (s *assessmentService) Get(ctx context.Context, id uint) (dto.AssessmentResponse, error) {
	assessment, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssessmentResponse{}, ErrAssessmentNotFound
		}
		return dto.AssessmentResponse{}, err
	}

	return dto.NewAssessmentResponse(assessment, true), nil
}

func (s *assessmentService) List(ctx context.Context, req dto.AssessmentListRequest) (dto.AssessmentListResponse, error) {
	filter := repository.AssessmentFilter{
		Search:       strings.TrimSpace(req.Search),
		DeliveryMode: strings.TrimSpace(req.DeliveryMode),
		Sort:         req.Sort,
		Page:         req.Page,
		PageSize:     req.PageSize,
	}

	assessments, total, err := s.assessments.List(ctx, filter)
	if err != nil {
		return dto.AssessmentListResponse{}, err
	}

	items := make([]dto.AssessmentResponse, 0, len(assessments))
	for _, assessment := range assessments {
		items = append(items, dto.NewAssessmentResponse(assessment, false))
	}

	return dto.AssessmentListResponse{Items: items, Pagination: paginate(req.Page, req.PageSize, total)}, nil
}

// AssignStudents creates not-started assignments; existing ones are returned unchanged.
func (s *assessmentService) AssignStudents(ctx context.Context, assessmentID uint, req dto.AssignStudentsRequest) ([]dto.AssignmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		if errs, ok := validation.FromValidator(err); ok {
			return nil, errs
		}
		return nil, err
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssessmentNotFound
		}
		return nil, err
	}

	students, err := s.students.ListByIDs(ctx, req.StudentIDs)
	if err != nil {
		return nil, err
	}
	known := make(map[uint]models.Student, len(students))
	for _, student := range students {
		known[student.ID] = student
	}

	errs := &validation.Errors{}
	for i, id := range req.StudentIDs {
		student, ok := known[id]
		field := fmt.Sprintf("student_ids.%d", i)
		switch {
		case !ok:
			errs.Addf(field, "student %d does not exist", id)
		case !student.IsStudent():
			errs.Addf(field, "account %d is not a student", id)
		}
	}
	if invalid := errs.OrNil(); invalid != nil {
		return nil, invalid
	}

	now := s.now()
	responses := make([]dto.AssignmentResponse, 0, len(req.StudentIDs))
	seen := make(map[uint]struct{}, len(req.StudentIDs))
	for _, id := range req.StudentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		assignment, created, err := s.assignments.GetOrCreate(ctx, assessmentID, id)
		if err != nil {
			s.logger.Error().Err(err).Uint("assessment_id", assessmentID).Uint("student_id", id).Msg("failed to assign student")
			return nil, err
		}
		if created {
			s.logger.Debug().Uint("assessment_id", assessmentID).Uint("student_id", id).Msg("student assigned")
		}
		responses = append(responses, dto.NewAssignmentResponse(assignment, assessment, now))
	}

	return responses, nil
}

// validate runs struct, delivery-mode and question checks and reports every failure together.
func (s *assessmentService) validate(req dto.AssessmentRequest) (models.Assessment, error) {
	errs := &validation.Errors{}
	if err := s.validator.Struct(req); err != nil {
		structErrs, ok := validation.FromValidator(err)
		if !ok {
			return models.Assessment{}, err
		}
		errs.Merge(structErrs)
	}

	model := req.ToModel()
	errs.Merge(validateDeliveryMode(model))
	errs.Merge(s.questions.ValidateQuestions(model.Questions))

	if invalid := errs.OrNil(); invalid != nil {
		return models.Assessment{}, invalid
	}
	return model, nil
}

func validateDeliveryMode(assessment models.Assessment) *validation.Errors {
	errs := &validation.Errors{}
	switch assessment.DeliveryMode {
	case models.DeliveryModeSupervised:
		if assessment.DurationMinutes == nil || *assessment.DurationMinutes <= 0 {
			errs.Add("duration_minutes", "supervised assessments require a positive duration")
		}
		if assessment.ScheduledAt == nil {
			errs.Add("scheduled_at", "supervised assessments require a schedule")
		}
		if assessment.DueDate != nil {
			errs.Add("due_date", "supervised assessments cannot have a due date")
		}
	case models.DeliveryModeHomework:
		if assessment.DueDate == nil {
			errs.Add("due_date", "homework assessments require a due date")
		}
		if assessment.DurationMinutes != nil {
			errs.Add("duration_minutes", "homework assessments cannot have a duration")
		}
		if assessment.ScheduledAt != nil {
			errs.Add("scheduled_at", "homework assessments cannot have a schedule")
		}
	}
	return errs
}
