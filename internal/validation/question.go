package validation

import (
	"fmt"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

// QuestionStrategy validates the structure of one authored question.
type QuestionStrategy interface {
	Supports(questionType models.QuestionType) bool
	Validate(index int, question models.Question, errs *Errors)
}

type multipleChoiceRule struct{}

func (multipleChoiceRule) Supports(questionType models.QuestionType) bool {
	return questionType == models.QuestionTypeMultiple
}

func (multipleChoiceRule) Validate(index int, question models.Question, errs *Errors) {
	field := choicesField(index)
	if len(question.Choices) < 2 {
		errs.Add(field, "multiple choice questions need at least 2 choices")
	}
	if question.CorrectChoiceCount() < 2 {
		errs.Add(field, "multiple choice questions need at least 2 correct choices")
	}
}

type singleChoiceRule struct{}

func (singleChoiceRule) Supports(questionType models.QuestionType) bool {
	return questionType == models.QuestionTypeOneChoice || questionType == models.QuestionTypeBoolean
}

func (singleChoiceRule) Validate(index int, question models.Question, errs *Errors) {
	field := choicesField(index)
	if len(question.Choices) < 2 {
		errs.Add(field, "single choice questions need at least 2 choices")
	}
	if correct := question.CorrectChoiceCount(); correct != 1 {
		errs.Addf(field, "single choice questions need exactly 1 correct choice, got %d", correct)
	}
}

type freeResponseRule struct{}

func (freeResponseRule) Supports(questionType models.QuestionType) bool {
	return questionType.IsManuallyGraded()
}

func (freeResponseRule) Validate(int, models.Question, *Errors) {}

// QuestionRegistry resolves question types to their authoring rule.
type QuestionRegistry struct {
	multiple multipleChoiceRule
	single   singleChoiceRule
	free     freeResponseRule
}

// NewQuestionRegistry builds the registry of authoring rules.
func NewQuestionRegistry() *QuestionRegistry {
	return &QuestionRegistry{}
}

// Resolve returns the rule for a question type.
func (r *QuestionRegistry) Resolve(questionType models.QuestionType) (QuestionStrategy, bool) {
	switch questionType {
	case models.QuestionTypeMultiple:
		return r.multiple, true
	case models.QuestionTypeOneChoice, models.QuestionTypeBoolean:
		return r.single, true
	case models.QuestionTypeText, models.QuestionTypeEssay, models.QuestionTypeFile:
		return r.free, true
	default:
		return nil, false
	}
}

// ValidateQuestions checks every question and returns all failures together, or nil.
func (r *QuestionRegistry) ValidateQuestions(questions []models.Question) *Errors {
	errs := &Errors{}
	for i, question := range questions {
		if question.Points <= 0 {
			errs.Add(fmt.Sprintf("questions.%d.points", i), "points must be greater than 0")
		}

		rule, ok := r.Resolve(question.Type)
		if !ok {
			errs.Addf(fmt.Sprintf("questions.%d.type", i), "unsupported question type %q", question.Type)
			continue
		}
		rule.Validate(i, question, errs)
	}
	return errs.OrNil()
}

func choicesField(index int) string {
	return fmt.Sprintf("questions.%d.choices", index)
}
