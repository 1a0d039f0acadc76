package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

func intPointer(v int) *int {
	return &v
}

func validSupervisedRequest() dto.AssessmentRequest {
	scheduled := testClock
	return dto.AssessmentRequest{
		Title:           "Routing quiz",
		DeliveryMode:    string(models.DeliveryModeSupervised),
		DurationMinutes: intPointer(45),
		ScheduledAt:     &scheduled,
		Questions: []dto.QuestionRequest{
			{Type: "one_choice", Content: "Default gateway?", Points: 2, Choices: []dto.ChoiceRequest{
				{Content: "Router", IsCorrect: true},
				{Content: "Switch"},
			}},
			{Type: "essay", Content: "Describe OSPF", Points: 8},
		},
	}
}

func newTestAssessmentService(repos testRepos) AssessmentService {
	return NewAssessmentService(repos.assessments, repos.assignments, repos.students, newTestValidator(), testLogger())
}

func TestAssessmentServiceCreate(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)

	created, err := svc.Create(context.Background(), ActivityActor{ID: 3, Role: models.RoleTeacher}, validSupervisedRequest())
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.InDelta(t, 10.0, created.MaxPoints, 1e-9)
	require.Len(t, created.Questions, 2)
	require.NotNil(t, created.Questions[0].Choices[0].IsCorrect)

	loaded, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Questions[0].Position)
	require.Len(t, loaded.Questions[0].Choices, 2)
}

func TestAssessmentServiceCreateCollectsEveryViolation(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)

	req := validSupervisedRequest()
	req.DurationMinutes = nil
	due := testClock.Add(time.Hour)
	req.DueDate = &due
	req.Questions = append(req.Questions,
		dto.QuestionRequest{Type: "multiple", Content: "Pick two", Points: 0, Choices: []dto.ChoiceRequest{
			{Content: "A", IsCorrect: true},
			{Content: "B"},
		}},
		dto.QuestionRequest{Type: "boolean", Content: "True?", Points: 1, Choices: []dto.ChoiceRequest{
			{Content: "True", IsCorrect: true},
			{Content: "False", IsCorrect: true},
		}},
	)

	_, err := svc.Create(context.Background(), ActivityActor{ID: 3}, req)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.True(t, errs.Has("duration_minutes"))
	require.True(t, errs.Has("due_date"))
	require.True(t, errs.Has("questions.2.points"))
	require.True(t, errs.Has("questions.2.choices"))
	require.True(t, errs.Has("questions.3.choices"))
	require.False(t, errs.Has("questions.0.choices"))
}

func TestAssessmentServiceHomeworkRequiresDueDate(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)

	req := validSupervisedRequest()
	req.DeliveryMode = string(models.DeliveryModeHomework)
	req.DurationMinutes = nil
	req.ScheduledAt = nil

	_, err := svc.Create(context.Background(), ActivityActor{}, req)
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.True(t, errs.Has("due_date"))

	due := testClock.Add(48 * time.Hour)
	req.DueDate = &due
	created, err := svc.Create(context.Background(), ActivityActor{}, req)
	require.NoError(t, err)
	require.Nil(t, created.DurationMinutes)
}

func TestAssessmentServiceUpdateLockedOnceAnswered(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)
	ctx := context.Background()

	created, err := svc.Create(ctx, ActivityActor{ID: 1}, validSupervisedRequest())
	require.NoError(t, err)

	req := validSupervisedRequest()
	req.Title = "Routing quiz v2"
	req.Questions = req.Questions[:1]
	updated, err := svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	require.Equal(t, "Routing quiz v2", updated.Title)
	require.Len(t, updated.Questions, 1)

	student := seedStudent(t, repos.db, "Zaki", models.RoleStudent)
	assignment, _, err := repos.assignments.GetOrCreate(ctx, created.ID, student.ID)
	require.NoError(t, err)
	require.NoError(t, repos.answers.Upsert(ctx, &models.Answer{AssignmentID: assignment.ID, QuestionID: updated.Questions[0].ID}))

	_, err = svc.Update(ctx, created.ID, req)
	require.ErrorIs(t, err, ErrAssessmentLocked)

	_, err = svc.Update(ctx, created.ID+10, req)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestAssessmentServiceAssignStudentsIsIdempotent(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)
	ctx := context.Background()
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	first := seedStudent(t, repos.db, "Adit", models.RoleStudent)
	second := seedStudent(t, repos.db, "Bella", models.RoleStudent)
	teacher := seedStudent(t, repos.db, "Candra", models.RoleTeacher)

	assigned, err := svc.AssignStudents(ctx, assessment.ID, dto.AssignStudentsRequest{StudentIDs: []uint{first.ID, second.ID, first.ID}})
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	for _, item := range assigned {
		require.Equal(t, string(models.AssignmentStatusNotStarted), item.Status)
	}

	again, err := svc.AssignStudents(ctx, assessment.ID, dto.AssignStudentsRequest{StudentIDs: []uint{first.ID}})
	require.NoError(t, err)
	require.Equal(t, assigned[0].ID, again[0].ID)

	_, err = svc.AssignStudents(ctx, assessment.ID, dto.AssignStudentsRequest{StudentIDs: []uint{teacher.ID, 999}})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.True(t, errs.Has("student_ids.0"))
	require.True(t, errs.Has("student_ids.1"))
}

func TestAssessmentServiceListHidesAnswers(t *testing.T) {
	repos := setupServiceDB(t)
	svc := newTestAssessmentService(repos)
	seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	seedQuiz(t, repos.db, models.DeliveryModeHomework)

	list, err := svc.List(context.Background(), dto.AssessmentListRequest{DeliveryMode: "homework", Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	require.EqualValues(t, 1, list.Pagination.TotalItems)
	require.Equal(t, 1, list.Pagination.TotalPages)
}
