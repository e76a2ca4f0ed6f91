package bank

import (
	"errors"
	"testing"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

func TestParseValidBank(t *testing.T) {
	data := []byte(`
winner = "you won"
failed = "you lost"

["What is 2 + 2?"]
options = ["3", "4"]
correct = "4"

["Pick the even number"]
options = [1, 2, 3]
correct = 2
`)
	b, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", b.Len())
	}
	if b.WinMessage != "you won" || b.LossMessage != "you lost" {
		t.Fatalf("unexpected messages: %q / %q", b.WinMessage, b.LossMessage)
	}

	q, ok := b.Question("Pick the even number")
	if !ok {
		t.Fatalf("expected question present")
	}
	if q.Correct != "2" {
		t.Fatalf("expected integer answer coerced to %q, got %q", "2", q.Correct)
	}
	if len(q.Options) != 3 || q.Options[0] != "1" {
		t.Fatalf("expected coerced options, got %v", q.Options)
	}
}

func TestParseCoercesIntOptionsAgainstStringAnswer(t *testing.T) {
	data := []byte(`
winner = "w"
failed = "f"

["Pick four"]
options = [3, 4, 5]
correct = "4"
`)
	b, err := Parse(data)
	if err != nil {
		t.Fatalf("expected coercion to validate, got %v", err)
	}
	q, _ := b.Question("Pick four")
	if q.Correct != "4" {
		t.Fatalf("got correct=%q", q.Correct)
	}
}

func TestParseRejections(t *testing.T) {
	cases := []struct {
		name   string
		data   string
		prompt string
	}{
		{
			name: "missing winner message",
			data: "failed = \"f\"\n\n[\"q\"]\noptions = [\"a\", \"b\"]\ncorrect = \"a\"\n",
		},
		{
			name: "missing failed message",
			data: "winner = \"w\"\n\n[\"q\"]\noptions = [\"a\", \"b\"]\ncorrect = \"a\"\n",
		},
		{
			name:   "too few options",
			data:   "winner = \"w\"\nfailed = \"f\"\n\n[\"lonely\"]\noptions = [\"a\"]\ncorrect = \"a\"\n",
			prompt: "lonely",
		},
		{
			name:   "correct answer not among options",
			data:   "winner = \"w\"\nfailed = \"f\"\n\n[\"off\"]\noptions = [\"a\", \"b\"]\ncorrect = \"c\"\n",
			prompt: "off",
		},
		{
			name:   "missing correct answer",
			data:   "winner = \"w\"\nfailed = \"f\"\n\n[\"none\"]\noptions = [\"a\", \"b\"]\n",
			prompt: "none",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Prompt != tc.prompt {
				t.Fatalf("expected offending prompt %q, got %q", tc.prompt, verr.Prompt)
			}
		})
	}
}
