package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/dto"
	"github.com/noah-isme/gema-assessment-api/internal/events"
	"github.com/noah-isme/gema-assessment-api/internal/middleware"
	"github.com/noah-isme/gema-assessment-api/internal/models"
	"github.com/noah-isme/gema-assessment-api/internal/repository"
	"github.com/noah-isme/gema-assessment-api/internal/validation"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.Type)
	}
	return types
}

type clock struct {
	current time.Time
}

func (c *clock) now() time.Time { return c.current }

func (c *clock) advance(d time.Duration) { c.current = c.current.Add(d) }

func newTestAssignmentService(repos testRepos, publisher events.Publisher, grace time.Duration, clk *clock) *assignmentService {
	activity := NewActivityService(repos.activity, testLogger())
	svc := NewAssignmentService(repos.assessments, repos.assignments, repos.answers, repos.students, activity, publisher, newTestValidator(), grace, testLogger()).(*assignmentService)
	svc.now = clk.now
	return svc
}

func TestAssignmentServiceOpenDoesNotStart(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	student := seedStudent(t, repos.db, "Ana", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 0, clk)

	view, err := svc.Open(context.Background(), assessment.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.AssignmentStatusNotStarted), view.Assignment.Status)
	require.Nil(t, view.Assignment.StartedAt)
	require.Nil(t, view.Assignment.RemainingSeconds)
	require.Len(t, view.Assessment.Questions, 3)
	for _, question := range view.Assessment.Questions {
		for _, choice := range question.Choices {
			require.Nil(t, choice.IsCorrect)
		}
	}
}

func TestAssignmentServiceOpenRejectsTeachers(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	teacher := seedStudent(t, repos.db, "Budi", models.RoleTeacher)
	svc := newTestAssignmentService(repos, nil, 0, &clock{current: testClock})

	_, err := svc.Open(context.Background(), assessment.ID, teacher.ID)
	require.ErrorIs(t, err, ErrNotAStudent)

	_, err = svc.Open(context.Background(), assessment.ID+100, teacher.ID)
	require.ErrorIs(t, err, ErrAssessmentNotFound)
}

func TestAssignmentServiceStartIsIdempotent(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	student := seedStudent(t, repos.db, "Citra", models.RoleStudent)
	publisher := &recordingPublisher{}
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, publisher, 0, clk)
	ctx := middleware.ContextWithCorrelation(context.Background(), "req-start-1")

	first, err := svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	require.True(t, first.StartedAt.Equal(testClock))
	require.Equal(t, string(models.AssignmentStatusInProgress), first.Status)
	require.EqualValues(t, 3600, *first.RemainingSeconds)

	clk.advance(30 * time.Minute)
	second, err := svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.True(t, second.StartedAt.Equal(testClock))
	require.EqualValues(t, 1800, *second.RemainingSeconds)
	require.Equal(t, []string{events.TypeAssignmentStarted}, publisher.types())
	require.Equal(t, "req-start-1", publisher.events[0].CorrelationID)
}

func TestAssignmentServiceTimerCountsDownAndAutoSubmits(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	student := seedStudent(t, repos.db, "Dewi", models.RoleStudent)
	publisher := &recordingPublisher{}
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, publisher, 0, clk)
	ctx := context.Background()

	_, err := svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	clk.advance(20 * time.Minute)
	timer, err := svc.Timer(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2400, *timer.RemainingSeconds)
	require.False(t, timer.Expired)
	require.True(t, timer.Deadline.Equal(testClock.Add(time.Hour)))

	clk.advance(41 * time.Minute)
	timer, err = svc.Timer(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.True(t, timer.Expired)
	require.True(t, timer.AutoSubmitted)
	require.EqualValues(t, 0, *timer.RemainingSeconds)
	require.Equal(t, string(models.AssignmentStatusSubmitted), timer.Status)

	stored, err := repos.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.True(t, stored.ForcedSubmission)
	require.NotNil(t, stored.SecurityViolation)
	require.Equal(t, models.SecurityViolationTimeExpired, *stored.SecurityViolation)
	require.True(t, stored.SubmittedAt.Equal(testClock.Add(time.Hour)))

	logs, total, err := repos.activity.List(ctx, repository.ActivityLogFilter{Action: models.ActivityAssignmentAutoSubmitted})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, "system", logs[0].ActorRole)
	require.Contains(t, publisher.types(), events.TypeAssignmentAutoSubmitted)
}

func TestAssignmentServiceAutoSubmitIfExpiredTransitions(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	homework := seedQuiz(t, repos.db, models.DeliveryModeHomework)
	student := seedStudent(t, repos.db, "Eka", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 0, clk)
	ctx := context.Background()

	notStarted, _, err := repos.assignments.GetOrCreate(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	applied, err := svc.AutoSubmitIfExpired(ctx, notStarted.ID)
	require.NoError(t, err)
	require.False(t, applied)

	_, err = svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	clk.advance(59 * time.Minute)
	applied, err = svc.AutoSubmitIfExpired(ctx, notStarted.ID)
	require.NoError(t, err)
	require.False(t, applied)

	clk.advance(time.Minute)
	applied, err = svc.AutoSubmitIfExpired(ctx, notStarted.ID)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = svc.AutoSubmitIfExpired(ctx, notStarted.ID)
	require.NoError(t, err)
	require.False(t, applied)

	homeworkAssignment, _, err := repos.assignments.GetOrCreate(ctx, homework.ID, student.ID)
	require.NoError(t, err)
	_, err = repos.assignments.MarkStarted(ctx, homeworkAssignment.ID, testClock)
	require.NoError(t, err)
	clk.advance(30 * 24 * time.Hour)
	applied, err = svc.AutoSubmitIfExpired(ctx, homeworkAssignment.ID)
	require.NoError(t, err)
	require.False(t, applied)
}

func TestAssignmentServiceGracePeriodDelaysExpiry(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	student := seedStudent(t, repos.db, "Fajar", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 2*time.Minute, clk)
	ctx := context.Background()

	started, err := svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	clk.advance(61 * time.Minute)
	applied, err := svc.AutoSubmitIfExpired(ctx, started.ID)
	require.NoError(t, err)
	require.False(t, applied)

	clk.advance(time.Minute)
	applied, err = svc.AutoSubmitIfExpired(ctx, started.ID)
	require.NoError(t, err)
	require.True(t, applied)
}

func TestAssignmentServiceSaveAnswersAndSubmit(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	student := seedStudent(t, repos.db, "Gita", models.RoleStudent)
	publisher := &recordingPublisher{}
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, publisher, 0, clk)
	ctx := context.Background()

	_, err := svc.Open(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	single := assessment.Questions[0]
	multiple := assessment.Questions[1]
	essay := assessment.Questions[2]
	payload := dto.SaveAnswersRequest{Answers: []dto.AnswerRequest{
		{QuestionID: single.ID, ChoiceID: uintPointer(single.CorrectChoiceIDs()[0])},
		{QuestionID: multiple.ID, ChoiceIDs: multiple.CorrectChoiceIDs()},
		{QuestionID: essay.ID, Content: "<script>x</script>Names to <b>addresses</b>"},
	}}

	_, err = svc.SaveAnswers(ctx, assessment.ID, student.ID, payload)
	require.ErrorIs(t, err, ErrNotStarted)

	_, err = svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	clk.advance(10 * time.Minute)
	_, err = svc.SaveAnswers(ctx, assessment.ID, student.ID, payload)
	require.NoError(t, err)

	assignment, err := repos.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	stored, err := repos.answers.ListByAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for _, answer := range stored {
		if answer.QuestionID == essay.ID {
			require.Equal(t, "Names to addresses", answer.Content)
		}
		if answer.QuestionID == multiple.ID {
			require.ElementsMatch(t, multiple.CorrectChoiceIDs(), answer.SelectedChoiceIDs())
		}
	}

	submitted, err := svc.Submit(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.AssignmentStatusSubmitted), submitted.Status)
	require.False(t, submitted.ForcedSubmission)
	require.True(t, submitted.SubmittedAt.Equal(testClock.Add(10*time.Minute)))

	_, err = svc.Submit(ctx, assessment.ID, student.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = svc.SaveAnswers(ctx, assessment.ID, student.ID, payload)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	_, err = svc.Start(ctx, assessment.ID, student.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)

	require.Equal(t, []string{events.TypeAssignmentStarted, events.TypeAssignmentSubmitted}, publisher.types())
}

func TestAssignmentServiceSaveAnswersCollectsErrors(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeHomework)
	other := seedQuiz(t, repos.db, models.DeliveryModeHomework)
	student := seedStudent(t, repos.db, "Hadi", models.RoleStudent)
	svc := newTestAssignmentService(repos, nil, 0, &clock{current: testClock})
	ctx := context.Background()

	_, err := svc.Open(ctx, assessment.ID, student.ID)
	require.NoError(t, err)

	single := assessment.Questions[0]
	_, err = svc.SaveAnswers(ctx, assessment.ID, student.ID, dto.SaveAnswersRequest{Answers: []dto.AnswerRequest{
		{QuestionID: other.Questions[0].ID, ChoiceID: uintPointer(1)},
		{QuestionID: single.ID, ChoiceIDs: []uint{single.Choices[0].ID, single.Choices[1].ID}},
		{QuestionID: assessment.Questions[2].ID, ChoiceIDs: []uint{single.Choices[0].ID}},
	}})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.True(t, errs.Has("answers.0.question_id"))
	require.True(t, errs.Has("answers.1.choice_id"))
	require.True(t, errs.Has("answers.2.choice_ids"))
}

func TestAssignmentServiceHomeworkStartsImplicitlyAndRespectsDueDate(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeHomework)
	student := seedStudent(t, repos.db, "Indah", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 0, clk)
	ctx := context.Background()

	view, err := svc.Open(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.Nil(t, view.Assignment.StartedAt)
	require.Equal(t, string(models.AssignmentStatusNotStarted), view.Assignment.Status)

	essay := assessment.Questions[2]
	saved, err := svc.SaveAnswers(ctx, assessment.ID, student.ID, dto.SaveAnswersRequest{Answers: []dto.AnswerRequest{
		{QuestionID: essay.ID, Content: "Resolver walks the hierarchy"},
	}})
	require.NoError(t, err)
	require.Equal(t, string(models.AssignmentStatusInProgress), saved.Status)
	require.Nil(t, saved.RemainingSeconds)

	clk.advance(96 * time.Hour)
	_, err = svc.Submit(ctx, assessment.ID, student.ID)
	require.ErrorIs(t, err, ErrPastDue)
}

func TestAssignmentServiceStartRefusesPastDueHomework(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeHomework)
	student := seedStudent(t, repos.db, "Lestari", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 0, clk)
	ctx := context.Background()

	clk.advance(96 * time.Hour)
	_, err := svc.Start(ctx, assessment.ID, student.ID)
	require.ErrorIs(t, err, ErrPastDue)

	assignment, err := repos.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.Nil(t, assignment.StartedAt)

	require.NoError(t, repos.db.Model(&models.Assessment{}).Where("id = ?", assessment.ID).
		Update("allow_late_submission", true).Error)
	started, err := svc.Start(ctx, assessment.ID, student.ID)
	require.NoError(t, err)
	require.NotNil(t, started.StartedAt)
}

func TestAssignmentServiceSweepExpired(t *testing.T) {
	repos := setupServiceDB(t)
	assessment := seedQuiz(t, repos.db, models.DeliveryModeSupervised)
	early := seedStudent(t, repos.db, "Joko", models.RoleStudent)
	late := seedStudent(t, repos.db, "Kartika", models.RoleStudent)
	clk := &clock{current: testClock}
	svc := newTestAssignmentService(repos, nil, 0, clk)
	ctx := context.Background()

	_, err := svc.Start(ctx, assessment.ID, early.ID)
	require.NoError(t, err)
	clk.advance(30 * time.Minute)
	_, err = svc.Start(ctx, assessment.ID, late.ID)
	require.NoError(t, err)

	clk.advance(31 * time.Minute)
	count, err := svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = svc.SweepExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	earlyAssignment, err := repos.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, early.ID)
	require.NoError(t, err)
	require.True(t, earlyAssignment.ForcedSubmission)

	lateAssignment, err := repos.assignments.GetByAssessmentAndStudent(ctx, assessment.ID, late.ID)
	require.NoError(t, err)
	require.False(t, lateAssignment.IsSubmitted())
}
