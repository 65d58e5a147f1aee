// Package grading evaluates finished submissions against an assessment's questions
// and derives the scores, percentages and letter grades built on top of them.
//
// Everything in this package is pure: no I/O, no clocks, no shared state.
package grading

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Question types understood by the engine.
const (
	TypeMCQ         = "mcq"
	TypeTrueFalse   = "true_false"
	TypeShortAnswer = "short_answer"
	TypeEssay       = "essay"
)

// Question is the engine's view of a stored question.
type Question struct {
	ID        uint
	Number    int
	Type      string
	Text      string
	Points    float64
	Choices   json.RawMessage
	Answer    json.RawMessage
	TextMatch bool
}

// Detail is the per-question breakdown persisted as a submission's grading details.
type Detail struct {
	QuestionID            uint    `json:"question_id"`
	QuestionNumber        int     `json:"question_number"`
	QuestionType          string  `json:"question_type"`
	QuestionText          string  `json:"question_text"`
	UserAnswer            any     `json:"user_answer"`
	CorrectAnswer         any     `json:"correct_answer"`
	IsCorrect             bool    `json:"is_correct"`
	Score                 float64 `json:"score"`
	MaxScore              float64 `json:"max_score"`
	RequiresManualGrading bool    `json:"requires_manual_grading"`
	ManuallyGraded        bool    `json:"manually_graded,omitempty"`
	Feedback              string  `json:"feedback,omitempty"`
	Error                 string  `json:"error,omitempty"`
}

// Result is the aggregate outcome of grading one submission.
type Result struct {
	TotalScore float64           `json:"total_score"`
	MaxScore   float64           `json:"max_score"`
	Percentage float64           `json:"percentage"`
	Details    map[string]Detail `json:"grading_details"`
}

// QuestionKey is the key used for a question in answers and grading details.
func QuestionKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// Grade evaluates every question in question_number order. Answers keyed by ids
// that are not part of questions are ignored; questions without an answer score 0.
func Grade(questions []Question, answers map[string]any) Result {
	ordered := make([]Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Number != ordered[j].Number {
			return ordered[i].Number < ordered[j].Number
		}
		return ordered[i].ID < ordered[j].ID
	})

	details := make(map[string]Detail, len(ordered))
	for _, question := range ordered {
		key := QuestionKey(question.ID)
		answer, present := answers[key]
		details[key] = Evaluate(question, answer, present && !isBlank(answer))
	}

	return Summarize(details)
}

// Summarize recomputes totals from a set of details. It is used after manual
// scores have been applied to previously graded details.
func Summarize(details map[string]Detail) Result {
	result := Result{Details: details}
	for _, detail := range details {
		result.TotalScore += detail.Score
		result.MaxScore += detail.MaxScore
	}
	result.TotalScore = round2(result.TotalScore)
	result.MaxScore = round2(result.MaxScore)
	result.Percentage = Percentage(result.TotalScore, result.MaxScore)
	return result
}

// Evaluate grades a single question. Malformed question data never panics or
// aborts: the question scores 0 and the reason is reported in Detail.Error.
func Evaluate(question Question, answer any, answered bool) (detail Detail) {
	detail = Detail{
		QuestionID:     question.ID,
		QuestionNumber: question.Number,
		QuestionType:   question.Type,
		QuestionText:   question.Text,
		MaxScore:       math.Max(question.Points, 0),
	}
	if answered {
		detail.UserAnswer = answer
	}

	defer func() {
		if r := recover(); r != nil {
			detail.IsCorrect = false
			detail.Score = 0
			detail.Error = fmt.Sprintf("evaluation failed: %v", r)
		}
	}()

	if question.Points <= 0 {
		detail.Error = "question points must be positive"
		return detail
	}

	strategy, err := strategyFor(question)
	if err != nil {
		detail.Error = err.Error()
		return detail
	}

	out, err := strategy.evaluate(question, answer, answered)
	if err != nil {
		detail.Error = err.Error()
		return detail
	}

	detail.CorrectAnswer = out.correct
	detail.RequiresManualGrading = out.manual
	detail.IsCorrect = out.isCorrect
	if out.isCorrect {
		detail.Score = question.Points
	}

	return detail
}

// Percentage returns 100*score/max rounded to two decimals, or 0 when max is not positive.
func Percentage(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return round2(100 * score / max)
}

// LetterGrade maps a percentage onto the F/D/C/B/A bands. Each band includes its lower bound.
func LetterGrade(percentage float64) string {
	switch {
	case percentage < 60:
		return "F"
	case percentage < 67:
		return "D"
	case percentage < 76:
		return "C"
	case percentage < 89:
		return "B"
	default:
		return "A"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
