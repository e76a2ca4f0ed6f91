// Package bank loads and validates the question bank. The on-disk
// format is TOML: one table per question keyed by its prompt, plus the
// reserved top-level strings "winner" and "failed" holding the
// post-win and post-loss message text.
package bank

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

const (
	keyWinner = "winner"
	keyFailed = "failed"
)

// Load reads and validates a TOML bank file.
func Load(path string) (*domain.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bank file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw TOML bank content.
func Parse(data []byte) (*domain.Bank, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse bank file: %w", err)
	}
	return FromRaw(raw)
}

// FromRaw builds a validated bank from a decoded document. It is shared
// by the TOML and Postgres loading paths so both enforce identical
// rules: the reserved result messages must be present, every question
// needs at least two options, and the correct answer must be one of
// them. Options and answers may arrive as numbers (TOML integers, JSON
// numbers); they are coerced to strings before comparison.
func FromRaw(raw map[string]any) (*domain.Bank, error) {
	winMessage, err := reservedMessage(raw, keyWinner)
	if err != nil {
		return nil, err
	}
	lossMessage, err := reservedMessage(raw, keyFailed)
	if err != nil {
		return nil, err
	}

	prompts := make([]string, 0, len(raw))
	for prompt := range raw {
		if prompt == keyWinner || prompt == keyFailed {
			continue
		}
		prompts = append(prompts, prompt)
	}
	// Decoding into a map loses document order; keep the bank
	// deterministic across restarts.
	sort.Strings(prompts)

	questions := make([]domain.Question, 0, len(prompts))
	for _, prompt := range prompts {
		q, err := buildQuestion(prompt, raw[prompt])
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}

	return domain.NewBank(questions, winMessage, lossMessage), nil
}

func reservedMessage(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", &domain.ValidationError{Reason: fmt.Sprintf("missing reserved %q message", key)}
	}
	s, ok := v.(string)
	if !ok {
		return "", &domain.ValidationError{Reason: fmt.Sprintf("reserved %q message must be a string", key)}
	}
	return s, nil
}

func buildQuestion(prompt string, v any) (domain.Question, error) {
	entry, ok := v.(map[string]any)
	if !ok {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "entry is not a table"}
	}

	rawOptions, ok := entry["options"].([]any)
	if !ok {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "missing options list"}
	}
	if len(rawOptions) < 2 {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "needs at least 2 options"}
	}

	options := make([]string, len(rawOptions))
	for i, opt := range rawOptions {
		s, ok := coerceString(opt)
		if !ok {
			return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: fmt.Sprintf("option %d is not a string or number", i)}
		}
		options[i] = s
	}

	rawCorrect, ok := entry["correct"]
	if !ok {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "missing correct answer"}
	}
	correct, ok := coerceString(rawCorrect)
	if !ok {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "correct answer is not a string or number"}
	}

	if !contains(options, correct) {
		return domain.Question{}, &domain.ValidationError{Prompt: prompt, Reason: "correct answer is not among the options"}
	}

	return domain.Question{Prompt: prompt, Options: options, Correct: correct}, nil
}

// coerceString normalizes the value types the two decoders produce:
// go-toml yields int64 for TOML integers, encoding/json yields float64.
func coerceString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case int:
		return strconv.Itoa(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	default:
		return "", false
	}
}

func contains(options []string, s string) bool {
	for _, opt := range options {
		if opt == s {
			return true
		}
	}
	return false
}
