// Package scoring computes per-question verdicts and scores from submitted answers.
package scoring

import "github.com/noah-isme/gema-assessment-api/internal/models"

// Strategy scores a single question of the types it supports.
type Strategy interface {
	Supports(questionType models.QuestionType) bool
	CalculateScore(question models.Question, answers []models.Answer) float64
	IsCorrect(question models.Question, answers []models.Answer) bool
	Describe() string
}

// singleChoiceStrategy serves boolean and one-choice questions.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Supports(questionType models.QuestionType) bool {
	return questionType == models.QuestionTypeBoolean || questionType == models.QuestionTypeOneChoice
}

func (s singleChoiceStrategy) CalculateScore(question models.Question, answers []models.Answer) float64 {
	if s.IsCorrect(question, answers) {
		return question.Points
	}
	return 0
}

func (singleChoiceStrategy) IsCorrect(question models.Question, answers []models.Answer) bool {
	if len(answers) != 1 || answers[0].ChoiceID == nil {
		return false
	}
	choice, ok := question.FindChoice(*answers[0].ChoiceID)
	return ok && choice.IsCorrect
}

func (singleChoiceStrategy) Describe() string {
	return "single choice: full points when the selected choice is the correct one"
}

// multipleChoiceStrategy awards points only for an exact match of the correct set.
type multipleChoiceStrategy struct{}

func (multipleChoiceStrategy) Supports(questionType models.QuestionType) bool {
	return questionType == models.QuestionTypeMultiple
}

func (s multipleChoiceStrategy) CalculateScore(question models.Question, answers []models.Answer) float64 {
	if s.IsCorrect(question, answers) {
		return question.Points
	}
	return 0
}

func (multipleChoiceStrategy) IsCorrect(question models.Question, answers []models.Answer) bool {
	selected := selectedChoiceIDs(answers)
	if len(selected) == 0 {
		return false
	}
	return equalSet(selected, question.CorrectChoiceIDs())
}

func (multipleChoiceStrategy) Describe() string {
	return "multiple choice: full points when the selection equals the correct set, no partial credit"
}

// manualStrategy reports the teacher-assigned score.
type manualStrategy struct {
	types       []models.QuestionType
	description string
}

func (s manualStrategy) Supports(questionType models.QuestionType) bool {
	for _, t := range s.types {
		if t == questionType {
			return true
		}
	}
	return false
}

func (manualStrategy) CalculateScore(_ models.Question, answers []models.Answer) float64 {
	if score, ok := manualScore(answers); ok {
		return score
	}
	return 0
}

func (manualStrategy) IsCorrect(_ models.Question, answers []models.Answer) bool {
	score, ok := manualScore(answers)
	return ok && score > 0
}

func (s manualStrategy) Describe() string {
	return s.description
}

func newTextStrategy() manualStrategy {
	return manualStrategy{
		types:       []models.QuestionType{models.QuestionTypeText, models.QuestionTypeEssay},
		description: "text and essay: manually graded, reports the assigned score",
	}
}

func newFileStrategy() manualStrategy {
	return manualStrategy{
		types:       []models.QuestionType{models.QuestionTypeFile},
		description: "file: manually graded, reports the assigned score",
	}
}

func manualScore(answers []models.Answer) (float64, bool) {
	for _, answer := range answers {
		if answer.Score != nil {
			return *answer.Score, true
		}
	}
	return 0, false
}

// selectedChoiceIDs merges multi-choice selections and single choice references across answers.
func selectedChoiceIDs(answers []models.Answer) []uint {
	ids := make([]uint, 0)
	for _, answer := range answers {
		ids = append(ids, answer.SelectedChoiceIDs()...)
		if answer.ChoiceID != nil {
			ids = append(ids, *answer.ChoiceID)
		}
	}
	return ids
}

func equalSet(left, right []uint) bool {
	a := toSet(left)
	b := toSet(right)
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
