package scoring

import "github.com/noah-isme/gema-assessment-api/internal/models"

// QuestionResult is the scoring outcome of one question.
type QuestionResult struct {
	QuestionID   uint                `json:"question_id"`
	QuestionType models.QuestionType `json:"question_type"`
	Score        float64             `json:"score"`
	MaxPoints    float64             `json:"max_points"`
	Correct      bool                `json:"correct"`
	Answered     bool                `json:"answered"`
	NeedsManual  bool                `json:"needs_manual"`
	Unsupported  bool                `json:"unsupported"`
}

// Result aggregates per-question outcomes for one assignment.
type Result struct {
	Questions      []QuestionResult `json:"questions"`
	Total          float64          `json:"total"`
	MaxPoints      float64          `json:"max_points"`
	PendingManual  int              `json:"pending_manual"`
	Unsupported    int              `json:"unsupported"`
	CorrectAnswers int              `json:"correct_answers"`
}

// Complete reports whether nothing is left for a teacher to score.
func (r Result) Complete() bool {
	return r.PendingManual == 0 && r.Unsupported == 0
}

// ScoreAssignment scores every question. An unsupported type is flagged for review and
// contributes zero; it never aborts the rest of the run.
func (r *Registry) ScoreAssignment(questions []models.Question, answersByQuestion map[uint][]models.Answer) Result {
	result := Result{Questions: make([]QuestionResult, 0, len(questions))}

	for _, question := range questions {
		answers := answersByQuestion[question.ID]
		item := QuestionResult{
			QuestionID:   question.ID,
			QuestionType: question.Type,
			MaxPoints:    question.Points,
			Answered:     len(answers) > 0,
		}
		result.MaxPoints += question.Points

		if _, ok := r.Resolve(question.Type); !ok {
			item.Unsupported = true
			result.Unsupported++
			result.Questions = append(result.Questions, item)
			continue
		}

		item.Score = r.CalculateScore(question, answers)
		item.Correct = r.IsCorrect(question, answers)
		if question.Type.IsManuallyGraded() && item.Answered {
			_, graded := manualScore(answers)
			item.NeedsManual = !graded
		}
		if item.NeedsManual {
			result.PendingManual++
		}
		if item.Correct {
			result.CorrectAnswers++
		}

		result.Total += item.Score
		result.Questions = append(result.Questions, item)
	}

	return result
}

// GroupAnswers indexes answers by question identifier.
func GroupAnswers(answers []models.Answer) map[uint][]models.Answer {
	grouped := make(map[uint][]models.Answer, len(answers))
	for _, answer := range answers {
		grouped[answer.QuestionID] = append(grouped[answer.QuestionID], answer)
	}
	return grouped
}
