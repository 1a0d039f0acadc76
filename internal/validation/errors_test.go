package validation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type scorePayload struct {
	Scores []scoreItem `json:"scores" validate:"required,min=1,dive"`
}

type scoreItem struct {
	QuestionID uint     `json:"question_id" validate:"required,gt=0"`
	Score      *float64 `json:"score" validate:"required,gte=0"`
}

func TestFromValidatorUsesJSONPaths(t *testing.T) {
	validate := NewValidator()
	negative := -2.0
	err := validate.Struct(scorePayload{Scores: []scoreItem{{QuestionID: 0, Score: &negative}}})
	require.Error(t, err)

	errs, ok := FromValidator(err)
	require.True(t, ok)
	require.True(t, errs.Has("scores.0.question_id"))
	require.True(t, errs.Has("scores.0.score"))

	wrapped, ok := AsErrors(errs)
	require.True(t, ok)
	require.Same(t, errs, wrapped)
}

func TestErrorsOrNil(t *testing.T) {
	errs := &Errors{}
	require.Nil(t, errs.OrNil())
	errs.Add("field", "broken")
	require.NotNil(t, errs.OrNil())
	require.Contains(t, errs.Error(), "field: broken")
}
