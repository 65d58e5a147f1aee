package grading

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	encoded, err := json.Marshal(v)
	require.NoError(t, err)
	return encoded
}

func sampleQuestions(t *testing.T) []Question {
	return []Question{
		{ID: 3, Number: 3, Type: TypeEssay, Text: "Explain recursion", Points: 10},
		{ID: 1, Number: 1, Type: TypeMCQ, Text: "2+2?", Points: 2, Choices: raw(t, []string{"3", "4", "5"}), Answer: raw(t, 1)},
		{ID: 2, Number: 2, Type: TypeTrueFalse, Text: "Go has generics", Points: 1, Choices: raw(t, []string{"True", "False"}), Answer: raw(t, []string{"true"})},
		{ID: 4, Number: 4, Type: TypeShortAnswer, Text: "Capital of France", Points: 3, Answer: raw(t, []string{"Paris", "paris city"})},
	}
}

func TestGradeAggregatesScores(t *testing.T) {
	answers := map[string]any{
		"1": float64(1),
		"2": "True",
		"3": "A function calling itself",
		"4": "  PARIS ",
	}

	result := Grade(sampleQuestions(t), answers)

	require.Len(t, result.Details, 4)
	require.Equal(t, 6.0, result.TotalScore)
	require.Equal(t, 16.0, result.MaxScore)
	require.Equal(t, 37.5, result.Percentage)

	essay := result.Details["3"]
	require.True(t, essay.RequiresManualGrading)
	require.False(t, essay.IsCorrect)
	require.Zero(t, essay.Score)
	require.Equal(t, 10.0, essay.MaxScore)

	mcq := result.Details["1"]
	require.True(t, mcq.IsCorrect)
	require.False(t, mcq.RequiresManualGrading)
	require.Equal(t, 2.0, mcq.Score)
	require.Equal(t, 1, mcq.CorrectAnswer)
	require.Equal(t, "2+2?", mcq.QuestionText)
}

func TestGradeMissingAndStaleAnswers(t *testing.T) {
	answers := map[string]any{
		"99": "stale answer for a deleted question",
		"2":  "",
	}

	result := Grade(sampleQuestions(t), answers)

	require.Len(t, result.Details, 4)
	require.NotContains(t, result.Details, "99")
	require.Zero(t, result.TotalScore)
	require.Equal(t, 16.0, result.MaxScore)
	require.Zero(t, result.Percentage)
	for _, detail := range result.Details {
		require.Nil(t, detail.UserAnswer)
		require.False(t, detail.IsCorrect)
	}
}

func TestGradeZeroQuestions(t *testing.T) {
	result := Grade(nil, map[string]any{"1": "x"})

	require.Empty(t, result.Details)
	require.Zero(t, result.TotalScore)
	require.Zero(t, result.MaxScore)
	require.Zero(t, result.Percentage)
}

func TestGradeIsIdempotent(t *testing.T) {
	questions := sampleQuestions(t)
	answers := map[string]any{"1": float64(2), "2": false, "4": "Lyon"}

	first := Grade(questions, answers)
	second := Grade(questions, answers)

	require.Equal(t, first, second)
}

func TestGradeMalformedQuestionDoesNotAbort(t *testing.T) {
	questions := []Question{
		{ID: 1, Number: 1, Type: TypeMCQ, Points: 2, Choices: json.RawMessage(`{"broken":`), Answer: raw(t, 0)},
		{ID: 2, Number: 2, Type: "matching", Points: 2},
		{ID: 3, Number: 3, Type: TypeMCQ, Points: 2, Choices: raw(t, []string{"a", "b"}), Answer: raw(t, 7)},
		{ID: 4, Number: 4, Type: TypeShortAnswer, Points: 0, Answer: raw(t, "x")},
		{ID: 5, Number: 5, Type: TypeShortAnswer, Points: 4, Answer: raw(t, "ok")},
	}
	answers := map[string]any{"1": float64(0), "2": "x", "3": float64(0), "4": "x", "5": "OK"}

	result := Grade(questions, answers)

	require.Len(t, result.Details, 5)
	for _, key := range []string{"1", "2", "3", "4"} {
		require.NotEmpty(t, result.Details[key].Error, key)
		require.Zero(t, result.Details[key].Score, key)
	}
	require.Equal(t, 4.0, result.TotalScore)
	require.Equal(t, 10.0, result.MaxScore)
	require.Equal(t, 40.0, result.Percentage)
}

func TestEvaluateMCQ(t *testing.T) {
	choices := raw(t, []string{"red", "green", "blue"})
	tests := []struct {
		name     string
		key      json.RawMessage
		answer   any
		answered bool
		correct  bool
		err      bool
	}{
		{name: "index match", key: raw(t, 2), answer: float64(2), answered: true, correct: true},
		{name: "numeric string answer", key: raw(t, 2), answer: "2", answered: true, correct: true},
		{name: "other index", key: raw(t, 2), answer: float64(0), answered: true},
		{name: "out of range answer", key: raw(t, 2), answer: float64(9), answered: true},
		{name: "text answer is not an index", key: raw(t, 2), answer: "blue", answered: true},
		{name: "missing answer", key: raw(t, 2), answered: false},
		{name: "legacy text key", key: raw(t, "green"), answer: float64(1), answered: true, correct: true},
		{name: "legacy text key is case sensitive", key: raw(t, "Green"), answer: float64(1), answered: true, err: true},
		{name: "single element list key", key: raw(t, []int{0}), answer: float64(0), answered: true, correct: true},
		{name: "fractional key", key: raw(t, 1.5), answer: float64(1), answered: true, err: true},
		{name: "missing key", answer: float64(1), answered: true, err: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := Question{ID: 1, Type: TypeMCQ, Points: 5, Choices: choices, Answer: tc.key}
			detail := Evaluate(q, tc.answer, tc.answered)
			if tc.err {
				require.NotEmpty(t, detail.Error)
				require.Zero(t, detail.Score)
				return
			}
			require.Empty(t, detail.Error)
			require.Equal(t, tc.correct, detail.IsCorrect)
			if tc.correct {
				require.Equal(t, 5.0, detail.Score)
			} else {
				require.Zero(t, detail.Score)
			}
		})
	}
}

func TestEvaluateTrueFalse(t *testing.T) {
	choices := raw(t, []string{"True", "False"})
	tests := []struct {
		name    string
		key     json.RawMessage
		answer  any
		correct bool
	}{
		{name: "bool answer", key: raw(t, []string{"true"}), answer: true, correct: true},
		{name: "string answer any case", key: raw(t, []string{"true"}), answer: " TRUE ", correct: true},
		{name: "index answer", key: raw(t, []string{"false"}), answer: float64(1), correct: true},
		{name: "decoded number index answer", key: raw(t, []string{"true"}), answer: json.Number("0"), correct: true},
		{name: "wrong value", key: raw(t, []string{"false"}), answer: "true"},
		{name: "several accepted values", key: raw(t, []any{"true", "false"}), answer: false, correct: true},
		{name: "scalar bool key", key: raw(t, true), answer: "true", correct: true},
		{name: "index key", key: raw(t, 0), answer: "True", correct: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := Question{ID: 1, Type: TypeTrueFalse, Points: 1, Choices: choices, Answer: tc.key}
			detail := Evaluate(q, tc.answer, true)
			require.Empty(t, detail.Error)
			require.Equal(t, tc.correct, detail.IsCorrect)
		})
	}
}

func TestEvaluateTextMatch(t *testing.T) {
	q := Question{ID: 1, Type: TypeShortAnswer, Points: 2, Answer: raw(t, []string{" Goroutine ", "thread"})}

	require.True(t, Evaluate(q, "goroutine", true).IsCorrect)
	require.True(t, Evaluate(q, "  GOROUTINE\n", true).IsCorrect)
	require.False(t, Evaluate(q, "thread", true).IsCorrect, "only the first accepted text is graded")
	require.False(t, Evaluate(q, "goroutines", true).IsCorrect)
	require.Equal(t, "Goroutine", Evaluate(q, nil, false).CorrectAnswer)

	numeric := Question{ID: 2, Type: TypeShortAnswer, Points: 1, Answer: raw(t, "42")}
	require.True(t, Evaluate(numeric, float64(42), true).IsCorrect)
	require.True(t, Evaluate(numeric, json.Number("42"), true).IsCorrect)
}

func TestEvaluateEssay(t *testing.T) {
	essay := Question{ID: 1, Type: TypeEssay, Points: 10}
	detail := Evaluate(essay, "long answer", true)
	require.True(t, detail.RequiresManualGrading)
	require.False(t, detail.IsCorrect)
	require.Zero(t, detail.Score)
	require.Empty(t, detail.Error)

	unanswered := Evaluate(essay, nil, false)
	require.True(t, unanswered.RequiresManualGrading)

	textMatched := Question{ID: 2, Type: TypeEssay, Points: 3, TextMatch: true, Answer: raw(t, []string{"Mitochondria"})}
	matched := Evaluate(textMatched, "mitochondria", true)
	require.False(t, matched.RequiresManualGrading)
	require.True(t, matched.IsCorrect)
	require.Equal(t, 3.0, matched.Score)
}

func TestMCQWrongAnswerDiffersFromPendingEssay(t *testing.T) {
	questions := []Question{
		{ID: 1, Number: 1, Type: TypeMCQ, Points: 1, Choices: raw(t, []string{"a", "b"}), Answer: raw(t, 0)},
		{ID: 2, Number: 2, Type: TypeEssay, Points: 1},
	}
	result := Grade(questions, map[string]any{"1": float64(1), "2": "essay"})

	wrong := result.Details["1"]
	pending := result.Details["2"]
	require.False(t, wrong.IsCorrect)
	require.False(t, pending.IsCorrect)
	require.False(t, wrong.RequiresManualGrading)
	require.True(t, pending.RequiresManualGrading)
}

func TestSummarizeAfterManualScore(t *testing.T) {
	result := Grade(sampleQuestions(t), map[string]any{"1": float64(1)})
	essay := result.Details["3"]
	essay.Score = 7.5
	essay.ManuallyGraded = true
	result.Details["3"] = essay

	summary := Summarize(result.Details)
	require.Equal(t, 9.5, summary.TotalScore)
	require.Equal(t, 16.0, summary.MaxScore)
	require.Equal(t, 59.38, summary.Percentage)
}

func TestPercentage(t *testing.T) {
	require.Zero(t, Percentage(5, 0))
	require.Zero(t, Percentage(0, 0))
	require.Equal(t, 33.33, Percentage(1, 3))
	require.Equal(t, 66.67, Percentage(2, 3))
	require.Equal(t, 100.0, Percentage(7, 7))
}

func TestLetterGradeBands(t *testing.T) {
	cases := []struct {
		pct    float64
		letter string
	}{
		{0, "F"}, {59.9, "F"}, {59.999, "F"},
		{60, "D"}, {66.9, "D"},
		{67, "C"}, {75.9, "C"},
		{76, "B"}, {88.9, "B"},
		{89, "A"}, {100, "A"},
	}

	for _, tc := range cases {
		require.Equal(t, tc.letter, LetterGrade(tc.pct), "percentage %v", tc.pct)
	}
}

func TestLetterGradeIsMonotonic(t *testing.T) {
	rank := map[string]int{"F": 0, "D": 1, "C": 2, "B": 3, "A": 4}
	previous := rank[LetterGrade(0)]
	for pct := 0.0; pct <= 100; pct += 0.1 {
		current := rank[LetterGrade(pct)]
		require.GreaterOrEqual(t, current, previous, "percentage %v", pct)
		previous = current
	}
}
