package domain

// Question is a single multiple-choice entry in the bank. The prompt
// doubles as the question's key; Correct always equals one of Options.
type Question struct {
	Prompt  string
	Options []string
	Correct string
}

// Bank is the immutable, process-wide question table plus the two
// reserved result messages. It is built and validated once at startup
// and shared read-only by every session afterwards.
type Bank struct {
	prompts   []string
	questions map[string]Question

	// WinMessage and LossMessage come from the reserved "winner" and
	// "failed" keys of the raw bank.
	WinMessage  string
	LossMessage string
}

// NewBank assembles a bank from already-validated questions, preserving
// the given prompt order.
func NewBank(questions []Question, winMessage, lossMessage string) *Bank {
	b := &Bank{
		prompts:     make([]string, 0, len(questions)),
		questions:   make(map[string]Question, len(questions)),
		WinMessage:  winMessage,
		LossMessage: lossMessage,
	}
	for _, q := range questions {
		b.prompts = append(b.prompts, q.Prompt)
		b.questions[q.Prompt] = q
	}
	return b
}

// Len reports the number of questions in the bank.
func (b *Bank) Len() int { return len(b.prompts) }

// Prompts returns the prompts in load order. Callers must not mutate
// the returned slice.
func (b *Bank) Prompts() []string { return b.prompts }

// Question looks up a question by prompt.
func (b *Bank) Question(prompt string) (Question, bool) {
	q, ok := b.questions[prompt]
	return q, ok
}

// Session is the per-user quiz record. It outlives individual
// conversations so that Won and Attempt keep gating replays.
type Session struct {
	UserID        int64    `json:"userId"`
	Won           bool     `json:"won"`
	Attempt       int      `json:"attempt"`
	QuestionOrder []string `json:"questionOrder"`
	QuestionIndex int      `json:"questionIndex"`
	Score         int      `json:"score"`
}

// NewSession creates the record for a user's first attempt.
func NewSession(userID int64) *Session {
	return &Session{UserID: userID, Attempt: 1}
}
