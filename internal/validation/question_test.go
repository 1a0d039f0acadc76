package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func authoredQuestion(questionType models.QuestionType, flags ...bool) models.Question {
	question := models.Question{Type: questionType, Points: 5, Content: "Question"}
	for _, flag := range flags {
		question.Choices = append(question.Choices, models.Choice{Content: "option", IsCorrect: flag})
	}
	return question
}

func TestValidateQuestionsAcceptsWellFormedList(t *testing.T) {
	registry := NewQuestionRegistry()
	errs := registry.ValidateQuestions([]models.Question{
		authoredQuestion(models.QuestionTypeOneChoice, true, false, false),
		authoredQuestion(models.QuestionTypeBoolean, false, true),
		authoredQuestion(models.QuestionTypeMultiple, true, true, false),
		authoredQuestion(models.QuestionTypeText),
		authoredQuestion(models.QuestionTypeFile),
	})
	require.Nil(t, errs)
}

func TestValidateQuestionsCollectsEveryFailure(t *testing.T) {
	registry := NewQuestionRegistry()
	invalidPoints := authoredQuestion(models.QuestionTypeEssay)
	invalidPoints.Points = 0

	errs := registry.ValidateQuestions([]models.Question{
		authoredQuestion(models.QuestionTypeMultiple, true, false, false),
		authoredQuestion(models.QuestionTypeOneChoice, true, true),
		authoredQuestion(models.QuestionTypeBoolean, true),
		authoredQuestion(models.QuestionTypeOneChoice, true, false),
		invalidPoints,
		authoredQuestion(models.QuestionType("matching")),
	})
	require.NotNil(t, errs)

	require.True(t, errs.Has("questions.0.choices"))
	require.True(t, errs.Has("questions.1.choices"))
	require.True(t, errs.Has("questions.2.choices"))
	require.False(t, errs.Has("questions.3.choices"))
	require.True(t, errs.Has("questions.4.points"))
	require.True(t, errs.Has("questions.5.type"))

	grouped := errs.Map()
	require.Len(t, grouped["questions.2.choices"], 1, "a single correct choice out of one supplied only fails the count rule")
}

func TestMultipleChoiceNeedsTwoChoicesAndTwoCorrect(t *testing.T) {
	registry := NewQuestionRegistry()
	errs := registry.ValidateQuestions([]models.Question{authoredQuestion(models.QuestionTypeMultiple, true)})
	require.NotNil(t, errs)
	require.Len(t, errs.Map()["questions.0.choices"], 2)
}
