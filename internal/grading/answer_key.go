package grading

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidAnswerKey is returned when a question's answer key cannot be normalised.
var ErrInvalidAnswerKey = errors.New("invalid answer key")

// NormalizeAnswerKey returns the canonical stored form of a question's answer key:
//
//	mcq           one-element list holding the choice index, e.g. [2]
//	true_false    list of lower-cased accepted values, e.g. ["true"]
//	short_answer  list of trimmed accepted texts, the first one is graded
//	essay         null, unless text_match is set (then as short_answer)
func NormalizeAnswerKey(q Question) (json.RawMessage, error) {
	choices, err := decodeChoices(q.Choices)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswerKey, err)
	}

	var canonical any
	switch {
	case q.Type == TypeMCQ:
		if len(choices) < 2 {
			return nil, fmt.Errorf("%w: multiple choice questions need at least two choices", ErrInvalidAnswerKey)
		}
		idx, err := resolveChoiceKey(q.Answer, choices)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAnswerKey, err)
		}
		canonical = []int{idx}
	case q.Type == TypeTrueFalse:
		tokens, err := acceptedTokens(q.Answer, choices)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAnswerKey, err)
		}
		canonical = tokens
	case q.Type == TypeShortAnswer, q.Type == TypeEssay && q.TextMatch:
		keys, err := decodeTextKey(q.Answer)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAnswerKey, err)
		}
		canonical = keys
	case q.Type == TypeEssay:
		return json.RawMessage("null"), nil
	default:
		return nil, fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswerKey, q.Type)
	}

	encoded, err := json.Marshal(canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnswerKey, err)
	}
	return encoded, nil
}
