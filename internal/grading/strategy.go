package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type outcome struct {
	correct   any
	isCorrect bool
	manual    bool
}

// strategy grades one question type.
type strategy interface {
	evaluate(q Question, answer any, answered bool) (outcome, error)
}

var strategies = map[string]strategy{
	TypeMCQ:         mcqStrategy{},
	TypeTrueFalse:   trueFalseStrategy{},
	TypeShortAnswer: textMatchStrategy{},
	TypeEssay:       essayStrategy{},
}

func strategyFor(q Question) (strategy, error) {
	if q.Type == TypeEssay && q.TextMatch {
		return textMatchStrategy{}, nil
	}
	s, ok := strategies[q.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported question type %q", q.Type)
	}
	return s, nil
}

// mcqStrategy compares the learner's choice index with the canonical key index.
type mcqStrategy struct{}

func (mcqStrategy) evaluate(q Question, answer any, answered bool) (outcome, error) {
	choices, err := decodeChoices(q.Choices)
	if err != nil {
		return outcome{}, err
	}
	if len(choices) == 0 {
		return outcome{}, errors.New("multiple choice question has no choices")
	}

	key, err := resolveChoiceKey(q.Answer, choices)
	if err != nil {
		return outcome{}, err
	}

	out := outcome{correct: key}
	if !answered {
		return out, nil
	}

	idx, ok := choiceIndex(answer)
	if !ok || idx < 0 || idx >= len(choices) {
		return out, nil
	}
	out.isCorrect = idx == key
	return out, nil
}

// trueFalseStrategy accepts the learner's choice when it is one of the accepted values.
type trueFalseStrategy struct{}

func (trueFalseStrategy) evaluate(q Question, answer any, answered bool) (outcome, error) {
	choices, err := decodeChoices(q.Choices)
	if err != nil {
		return outcome{}, err
	}

	accepted, err := acceptedTokens(q.Answer, choices)
	if err != nil {
		return outcome{}, err
	}

	out := outcome{correct: accepted}
	if !answered {
		return out, nil
	}

	token, ok := choiceToken(answer, choices)
	if !ok {
		return out, nil
	}
	for _, candidate := range accepted {
		if candidate == token {
			out.isCorrect = true
			break
		}
	}
	return out, nil
}

// textMatchStrategy does a case-insensitive, trimmed comparison against the first accepted text.
type textMatchStrategy struct{}

func (textMatchStrategy) evaluate(q Question, answer any, answered bool) (outcome, error) {
	keys, err := decodeTextKey(q.Answer)
	if err != nil {
		return outcome{}, err
	}

	expected := keys[0]
	out := outcome{correct: expected}
	if !answered {
		return out, nil
	}

	given, ok := scalarText(answer)
	if !ok {
		return out, nil
	}
	out.isCorrect = strings.EqualFold(strings.TrimSpace(given), expected)
	return out, nil
}

// essayStrategy never scores; the question waits for a teacher.
type essayStrategy struct{}

func (essayStrategy) evaluate(Question, any, bool) (outcome, error) {
	return outcome{manual: true}, nil
}

func decodeChoices(raw json.RawMessage) ([]string, error) {
	if isNullJSON(raw) {
		return nil, nil
	}
	var choices []string
	if err := json.Unmarshal(raw, &choices); err != nil {
		return nil, fmt.Errorf("malformed choices: %w", err)
	}
	return choices, nil
}

// resolveChoiceKey turns a stored MCQ key into a choice index. The canonical form
// is the index itself; legacy keys stored as the literal choice text are mapped
// to the index of the matching choice. A single-element list is unwrapped.
func resolveChoiceKey(raw json.RawMessage, choices []string) (int, error) {
	if isNullJSON(raw) {
		return 0, errors.New("missing answer key")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("malformed answer key: %w", err)
	}
	if list, ok := value.([]any); ok {
		if len(list) != 1 {
			return 0, fmt.Errorf("multiple choice key must hold exactly one value, got %d", len(list))
		}
		value = list[0]
	}

	switch v := value.(type) {
	case float64:
		idx, ok := integral(v)
		if !ok || idx < 0 || idx >= len(choices) {
			return 0, fmt.Errorf("answer key index %v out of range", v)
		}
		return idx, nil
	case string:
		for i, choice := range choices {
			if choice == v {
				return i, nil
			}
		}
		idx, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || idx < 0 || idx >= len(choices) {
			return 0, fmt.Errorf("answer key %q matches no choice", v)
		}
		return idx, nil
	default:
		return 0, fmt.Errorf("unsupported answer key type %T", value)
	}
}

func choiceIndex(answer any) (int, bool) {
	switch v := answer.(type) {
	case float64:
		return integral(v)
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// acceptedTokens decodes a true/false key, which may be a single value or a list.
func acceptedTokens(raw json.RawMessage, choices []string) ([]string, error) {
	if isNullJSON(raw) {
		return nil, errors.New("missing answer key")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("malformed answer key: %w", err)
	}

	values, ok := value.([]any)
	if !ok {
		values = []any{value}
	}

	tokens := make([]string, 0, len(values))
	for _, item := range values {
		token, ok := choiceToken(item, choices)
		if !ok {
			return nil, fmt.Errorf("unsupported answer key value %v", item)
		}
		tokens = append(tokens, token)
	}
	if len(tokens) == 0 {
		return nil, errors.New("answer key holds no accepted values")
	}
	return tokens, nil
}

// choiceToken normalises a true/false value: booleans and strings are lower-cased,
// numeric values index into choices when choices are present.
func choiceToken(v any, choices []string) (string, bool) {
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t), true
	case string:
		token := strings.ToLower(strings.TrimSpace(t))
		return token, token != ""
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return "", false
		}
		return choiceToken(f, choices)
	case float64:
		idx, ok := integral(t)
		if !ok {
			return "", false
		}
		if len(choices) > 0 {
			if idx < 0 || idx >= len(choices) {
				return "", false
			}
			return strings.ToLower(strings.TrimSpace(choices[idx])), true
		}
		return strconv.Itoa(idx), true
	default:
		return "", false
	}
}

// decodeTextKey accepts a string or a list of strings and returns the trimmed entries.
func decodeTextKey(raw json.RawMessage) ([]string, error) {
	if isNullJSON(raw) {
		return nil, errors.New("missing answer key")
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("malformed answer key: %w", err)
	}

	var keys []string
	switch v := value.(type) {
	case string:
		keys = []string{strings.TrimSpace(v)}
	case []any:
		for _, item := range v {
			text, ok := scalarText(item)
			if !ok {
				return nil, fmt.Errorf("unsupported answer key value %v", item)
			}
			keys = append(keys, strings.TrimSpace(text))
		}
	default:
		return nil, fmt.Errorf("unsupported answer key type %T", value)
	}

	if len(keys) == 0 || keys[0] == "" {
		return nil, errors.New("answer key holds no accepted text")
	}
	return keys, nil
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

func integral(v float64) (int, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
