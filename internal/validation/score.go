package validation

import (
	"fmt"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// Score validation types.
const (
	ScoreRuleQuestionInAssessment = "question_in_assessment"
	ScoreRuleWithinMax            = "score_within_max"
	ScoreRuleAnswerExists         = "answer_exists"
	ScoreRuleStudentAssigned      = "student_assigned"
	ScoreRuleManualOnly           = "manual_only"
)

// ScoreEntry is one submitted per-question score.
type ScoreEntry struct {
	QuestionID uint
	Score      float64
}

// ScoreInput carries the pre-loaded data every score rule inspects.
type ScoreInput struct {
	Assessment models.Assessment
	Student    *models.Student
	Assignment *models.AssessmentAssignment
	Answers    []models.Answer
	Scores     []ScoreEntry
}

// ScoreStrategy validates one integrity aspect of a submitted score payload.
type ScoreStrategy interface {
	Type() string
	Validate(input ScoreInput, errs *Errors)
}

type questionInAssessmentRule struct{}

func (questionInAssessmentRule) Type() string { return ScoreRuleQuestionInAssessment }

func (questionInAssessmentRule) Validate(input ScoreInput, errs *Errors) {
	for i, entry := range input.Scores {
		if _, ok := input.Assessment.FindQuestion(entry.QuestionID); !ok {
			errs.Addf(scoreField(i, "question_id"), "question %d does not belong to this assessment", entry.QuestionID)
		}
	}
}

type scoreWithinMaxRule struct{}

func (scoreWithinMaxRule) Type() string { return ScoreRuleWithinMax }

func (scoreWithinMaxRule) Validate(input ScoreInput, errs *Errors) {
	for i, entry := range input.Scores {
		if entry.Score < 0 {
			errs.Add(scoreField(i, "score"), "score must not be negative")
			continue
		}
		question, ok := input.Assessment.FindQuestion(entry.QuestionID)
		if !ok {
			continue
		}
		if entry.Score > question.Points+1e-9 {
			errs.Addf(scoreField(i, "score"), "score %.2f exceeds the question maximum of %.2f", entry.Score, question.Points)
		}
	}
}

type answerExistsRule struct{}

func (answerExistsRule) Type() string { return ScoreRuleAnswerExists }

func (answerExistsRule) Validate(input ScoreInput, errs *Errors) {
	answered := make(map[uint]struct{}, len(input.Answers))
	for _, answer := range input.Answers {
		answered[answer.QuestionID] = struct{}{}
	}
	for i, entry := range input.Scores {
		if _, ok := answered[entry.QuestionID]; !ok {
			errs.Addf(scoreField(i, "question_id"), "the student has no answer for question %d", entry.QuestionID)
		}
	}
}

// manualOnlyRule keeps teacher scores off auto-scored questions; their points always come
// from the selected choices.
type manualOnlyRule struct{}

func (manualOnlyRule) Type() string { return ScoreRuleManualOnly }

func (manualOnlyRule) Validate(input ScoreInput, errs *Errors) {
	for i, entry := range input.Scores {
		question, ok := input.Assessment.FindQuestion(entry.QuestionID)
		if !ok || question.Type.IsManuallyGraded() {
			continue
		}
		errs.Addf(scoreField(i, "question_id"), "question %d is scored automatically from its %s choices", entry.QuestionID, question.Type)
	}
}

type studentAssignedRule struct{}

func (studentAssignedRule) Type() string { return ScoreRuleStudentAssigned }

func (studentAssignedRule) Validate(input ScoreInput, errs *Errors) {
	if input.Student == nil || !input.Student.IsStudent() {
		errs.Add("student_id", "the selected user is not a student")
		return
	}
	if input.Assignment == nil || input.Assignment.AssessmentID != input.Assessment.ID || input.Assignment.StudentID != input.Student.ID {
		errs.Add("student_id", "the student is not assigned to this assessment")
	}
}

// ScoreRegistry holds score rules keyed by validation type.
type ScoreRegistry struct {
	strategies []ScoreStrategy
}

// NewScoreRegistry registers every built-in rule.
func NewScoreRegistry() *ScoreRegistry {
	return &ScoreRegistry{
		strategies: []ScoreStrategy{
			questionInAssessmentRule{},
			scoreWithinMaxRule{},
			answerExistsRule{},
			manualOnlyRule{},
			studentAssignedRule{},
		},
	}
}

// Register adds a rule, replacing any rule with the same type.
func (r *ScoreRegistry) Register(strategy ScoreStrategy) {
	for i, existing := range r.strategies {
		if existing.Type() == strategy.Type() {
			r.strategies[i] = strategy
			return
		}
	}
	r.strategies = append(r.strategies, strategy)
}

// Resolve finds the rule registered under a validation type.
func (r *ScoreRegistry) Resolve(validationType string) (ScoreStrategy, bool) {
	for _, strategy := range r.strategies {
		if strategy.Type() == validationType {
			return strategy, true
		}
	}
	return nil, false
}

// Types lists registered validation types in order.
func (r *ScoreRegistry) Types() []string {
	types := make([]string, 0, len(r.strategies))
	for _, strategy := range r.strategies {
		types = append(types, strategy.Type())
	}
	return types
}

// Validate runs the requested rules (all when none are named). Every rule runs even when a
// sibling already failed, so the caller receives the complete set of errors or nil.
func (r *ScoreRegistry) Validate(input ScoreInput, validationTypes ...string) *Errors {
	if len(validationTypes) == 0 {
		validationTypes = r.Types()
	}

	errs := &Errors{}
	for _, validationType := range validationTypes {
		strategy, ok := r.Resolve(validationType)
		if !ok {
			errs.Addf("validation_type", "unknown score validation %q", validationType)
			continue
		}
		strategy.Validate(input, errs)
	}
	return errs.OrNil()
}

func scoreField(index int, name string) string {
	return fmt.Sprintf("scores.%d.%s", index, name)
}
