package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-assessment-api/internal/models"
)

func choiceQuestion(questionType models.QuestionType, points float64, correct ...uint) models.Question {
	question := models.Question{ID: 1, Type: questionType, Points: points}
	correctSet := toSet(correct)
	for id := uint(1); id <= 4; id++ {
		_, isCorrect := correctSet[id]
		question.Choices = append(question.Choices, models.Choice{ID: id, QuestionID: 1, IsCorrect: isCorrect})
	}
	return question
}

func singleAnswer(choiceID uint) []models.Answer {
	return []models.Answer{{QuestionID: 1, ChoiceID: &choiceID}}
}

func multiAnswer(ids ...uint) []models.Answer {
	answer := models.Answer{QuestionID: 1}
	answer.SetSelectedChoices(ids)
	return []models.Answer{answer}
}

func scoredAnswer(score float64) []models.Answer {
	return []models.Answer{{QuestionID: 1, Content: "my essay", Score: &score}}
}

func TestNoAnswerScoresZeroForEveryType(t *testing.T) {
	registry := NewRegistry()
	for _, questionType := range models.QuestionTypes {
		question := choiceQuestion(questionType, 10, 1, 2)
		require.Equal(t, 0.0, registry.CalculateScore(question, nil), string(questionType))
		require.False(t, registry.IsCorrect(question, nil), string(questionType))
	}
}

func TestSingleChoiceScoring(t *testing.T) {
	registry := NewRegistry()
	tests := []struct {
		name      string
		qType     models.QuestionType
		answers   []models.Answer
		isCorrect bool
		score     float64
	}{
		{name: "boolean correct", qType: models.QuestionTypeBoolean, answers: singleAnswer(2), isCorrect: true, score: 5},
		{name: "boolean wrong", qType: models.QuestionTypeBoolean, answers: singleAnswer(1), isCorrect: false, score: 0},
		{name: "one choice correct", qType: models.QuestionTypeOneChoice, answers: singleAnswer(2), isCorrect: true, score: 5},
		{name: "one choice unknown choice", qType: models.QuestionTypeOneChoice, answers: singleAnswer(99), isCorrect: false, score: 0},
		{name: "two answers never correct", qType: models.QuestionTypeOneChoice, answers: append(singleAnswer(2), singleAnswer(2)...), isCorrect: false, score: 0},
		{name: "answer without choice", qType: models.QuestionTypeOneChoice, answers: []models.Answer{{QuestionID: 1}}, isCorrect: false, score: 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			question := choiceQuestion(tc.qType, 5, 2)
			require.Equal(t, tc.isCorrect, registry.IsCorrect(question, tc.answers))
			require.Equal(t, tc.score, registry.CalculateScore(question, tc.answers))
		})
	}
}

func TestMultipleChoiceRequiresExactSet(t *testing.T) {
	registry := NewRegistry()
	question := choiceQuestion(models.QuestionTypeMultiple, 4, 1, 4)

	tests := []struct {
		name      string
		selected  []uint
		isCorrect bool
	}{
		{name: "exact", selected: []uint{1, 4}, isCorrect: true},
		{name: "exact reordered", selected: []uint{4, 1}, isCorrect: true},
		{name: "missing one", selected: []uint{1}, isCorrect: false},
		{name: "extra one", selected: []uint{1, 4, 2}, isCorrect: false},
		{name: "disjoint", selected: []uint{2, 3}, isCorrect: false},
		{name: "empty selection", selected: []uint{}, isCorrect: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			answers := multiAnswer(tc.selected...)
			require.Equal(t, tc.isCorrect, registry.IsCorrect(question, answers))
			expected := 0.0
			if tc.isCorrect {
				expected = 4
			}
			require.Equal(t, expected, registry.CalculateScore(question, answers))
		})
	}
}

func TestManualStrategiesReportAssignedScore(t *testing.T) {
	registry := NewRegistry()
	for _, questionType := range []models.QuestionType{models.QuestionTypeText, models.QuestionTypeEssay, models.QuestionTypeFile} {
		question := models.Question{ID: 1, Type: questionType, Points: 20}

		ungraded := []models.Answer{{QuestionID: 1, Content: "draft"}}
		require.Equal(t, 0.0, registry.CalculateScore(question, ungraded))
		require.False(t, registry.IsCorrect(question, ungraded))

		graded := scoredAnswer(12.5)
		require.Equal(t, 12.5, registry.CalculateScore(question, graded))
		require.Equal(t, 12.5, registry.CalculateScore(question, graded), "repeated calls must be stable")
		require.True(t, registry.IsCorrect(question, graded))

		zero := scoredAnswer(0)
		require.Equal(t, 0.0, registry.CalculateScore(question, zero))
		require.False(t, registry.IsCorrect(question, zero))
	}
}

func TestRegistryResolve(t *testing.T) {
	registry := NewRegistry()
	for _, questionType := range models.QuestionTypes {
		strategy, ok := registry.Resolve(questionType)
		require.True(t, ok, string(questionType))
		require.True(t, strategy.Supports(questionType))
		require.NotEmpty(t, strategy.Describe())
	}

	strategy, ok := registry.Resolve(models.QuestionType("matching"))
	require.False(t, ok)
	require.Nil(t, strategy)

	text, _ := registry.Resolve(models.QuestionTypeText)
	essay, _ := registry.Resolve(models.QuestionTypeEssay)
	require.Equal(t, text.Describe(), essay.Describe())
	require.Len(t, registry.Strategies(), 4)
}

func TestScoreAssignmentFlagsUnsupportedAndPendingManual(t *testing.T) {
	registry := NewRegistry()
	questions := []models.Question{
		choiceQuestion(models.QuestionTypeOneChoice, 5, 2),
		{ID: 2, Type: models.QuestionTypeEssay, Points: 20},
		{ID: 3, Type: models.QuestionType("matching"), Points: 10},
		{ID: 4, Type: models.QuestionTypeText, Points: 5},
	}
	choice := uint(2)
	answers := []models.Answer{
		{QuestionID: 1, ChoiceID: &choice},
		{QuestionID: 2, Content: "essay body"},
		{QuestionID: 3, Content: "A-1"},
	}

	result := registry.ScoreAssignment(questions, GroupAnswers(answers))
	require.Len(t, result.Questions, 4)
	require.Equal(t, 5.0, result.Total)
	require.Equal(t, 40.0, result.MaxPoints)
	require.Equal(t, 1, result.PendingManual)
	require.Equal(t, 1, result.Unsupported)
	require.Equal(t, 1, result.CorrectAnswers)
	require.True(t, result.Questions[2].Unsupported)
	require.True(t, result.Questions[1].NeedsManual)
	require.False(t, result.Questions[3].Answered)
	require.False(t, result.Complete())
}
