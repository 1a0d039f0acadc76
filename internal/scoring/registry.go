package scoring

import "github.com/noah-isme/gema-assessment-api/internal/models"

// Registry resolves question types to their scoring strategy.
type Registry struct {
	singleChoice   singleChoiceStrategy
	multipleChoice multipleChoiceStrategy
	text           manualStrategy
	file           manualStrategy
}

// NewRegistry builds a registry with every built-in strategy.
func NewRegistry() *Registry {
	return &Registry{
		text: newTextStrategy(),
		file: newFileStrategy(),
	}
}

// Resolve returns the strategy for the question type. Unknown types report false
// and must be treated as "cannot auto-score" rather than a failure.
func (r *Registry) Resolve(questionType models.QuestionType) (Strategy, bool) {
	switch questionType {
	case models.QuestionTypeBoolean, models.QuestionTypeOneChoice:
		return r.singleChoice, true
	case models.QuestionTypeMultiple:
		return r.multipleChoice, true
	case models.QuestionTypeText, models.QuestionTypeEssay:
		return r.text, true
	case models.QuestionTypeFile:
		return r.file, true
	default:
		return nil, false
	}
}

// Strategies lists the registered strategies in resolution order.
func (r *Registry) Strategies() []Strategy {
	return []Strategy{r.singleChoice, r.multipleChoice, r.text, r.file}
}

// CalculateScore scores one question; unanswered or unsupported questions score zero.
func (r *Registry) CalculateScore(question models.Question, answers []models.Answer) float64 {
	if len(answers) == 0 {
		return 0
	}
	strategy, ok := r.Resolve(question.Type)
	if !ok {
		return 0
	}
	return strategy.CalculateScore(question, answers)
}

// IsCorrect reports the verdict for one question; unanswered questions are never correct.
func (r *Registry) IsCorrect(question models.Question, answers []models.Answer) bool {
	if len(answers) == 0 {
		return false
	}
	strategy, ok := r.Resolve(question.Type)
	if !ok {
		return false
	}
	return strategy.IsCorrect(question, answers)
}
