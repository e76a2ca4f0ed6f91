// Package quiz implements the per-user quiz state machine.
package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/H-SG/telegram-quizbot/internal/domain"
)

// State is the conversational state of a single chat. It is transient:
// drivers keep it per chat and feed it back into Step, while the
// durable quiz progress lives in the session store.
type State int

const (
	// StateIdle means no conversation is active for the chat.
	StateIdle State = iota
	// StateAwaitingStart means the play/decline menu is showing.
	StateAwaitingStart
	// StateInQuestion means a question is on screen awaiting an answer.
	StateInQuestion
	// StateEnded means the conversation was closed; only /start revives it.
	StateEnded
)

// EventKind classifies inbound events.
type EventKind int

const (
	// EventStart is the /start command.
	EventStart EventKind = iota
	// EventAnswer is a selected choice or typed text.
	EventAnswer
	// EventHelp asks for the rules.
	EventHelp
	// EventCancel is the /cancel command.
	EventCancel
	// EventTimeout is injected by the driver when the per-question time
	// budget elapses; it scores as an incorrect answer.
	EventTimeout
)

// Event is a single inbound occurrence for one user.
type Event struct {
	Kind EventKind
	Text string
}

// Reply is one outbound message. An empty Choices slice renders as
// plain text; otherwise the transport shows the labels as buttons.
type Reply struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices,omitempty"`
}

// SessionStore abstracts how sessions are stored (in-memory, Redis).
// Get returns (nil, nil) when the user has no session yet. The engine
// does not serialize access; drivers must guarantee at most one
// in-flight Step per user.
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*domain.Session, error)
	Put(ctx context.Context, userID int64, sess *domain.Session) error
}

// Params are the quiz tuning knobs.
type Params struct {
	// Questions is the sample size per attempt.
	Questions int
	// Retries is the maximum number of attempts per user.
	Retries int
	// WinThreshold is the minimum score that counts as a win.
	WinThreshold int
	// QuestionTime is the per-question time budget.
	QuestionTime time.Duration
}

func (p Params) validate(bankSize int) error {
	switch {
	case p.Questions < 1:
		return &domain.ConfigError{Reason: "questions must be at least 1"}
	case p.Questions > bankSize:
		return &domain.ConfigError{Reason: fmt.Sprintf("questions (%d) exceeds bank size (%d)", p.Questions, bankSize)}
	case p.WinThreshold < 1 || p.WinThreshold > p.Questions:
		return &domain.ConfigError{Reason: fmt.Sprintf("win threshold (%d) must be between 1 and questions (%d)", p.WinThreshold, p.Questions)}
	case p.Retries < 1:
		return &domain.ConfigError{Reason: "retries must be at least 1"}
	case p.QuestionTime <= 0:
		return &domain.ConfigError{Reason: "question time must be positive"}
	}
	return nil
}

// Menu button labels. Answer comparison elsewhere is against bank
// options, so these only matter in the start menu.
const (
	ChoiceYes  = "Yes"
	ChoiceNo   = "No"
	ChoiceHelp = "Help"
)

// Engine computes state transitions. It holds no per-user state itself
// beyond what it reads from and writes to the session store.
type Engine struct {
	bank   *domain.Bank
	store  SessionStore
	params Params

	// rand.Rand is not safe for concurrent use.
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEngine validates params against the bank and builds an engine.
func NewEngine(bank *domain.Bank, store SessionStore, params Params) (*Engine, error) {
	return NewEngineWithRand(bank, store, params, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewEngineWithRand allows deterministic sampling in tests.
func NewEngineWithRand(bank *domain.Bank, store SessionStore, params Params, rnd *rand.Rand) (*Engine, error) {
	if err := params.validate(bank.Len()); err != nil {
		return nil, err
	}
	return &Engine{bank: bank, store: store, params: params, rnd: rnd}, nil
}

// QuestionTime is the per-question budget drivers should arm timers with.
func (e *Engine) QuestionTime() time.Duration { return e.params.QuestionTime }

// Step applies one event to one user's conversation and returns the
// next conversational state plus the ordered replies to send. Rejected
// transitions (ineligibility, unrecognized input) are ordinary
// outcomes; only store failures and invariant violations return errors.
func (e *Engine) Step(ctx context.Context, userID int64, state State, ev Event) (State, []Reply, error) {
	// /start and /cancel cut across every state.
	switch ev.Kind {
	case EventStart:
		return StateAwaitingStart, []Reply{e.greeting()}, nil
	case EventCancel:
		return StateEnded, []Reply{{Text: msgFarewell}}, nil
	}

	switch state {
	case StateAwaitingStart:
		return e.stepAwaitingStart(ctx, userID, ev)
	case StateInQuestion:
		return e.stepInQuestion(ctx, userID, ev)
	default:
		// Idle and ended chats react to nothing but /start.
		return state, nil, nil
	}
}

func (e *Engine) stepAwaitingStart(ctx context.Context, userID int64, ev Event) (State, []Reply, error) {
	if ev.Kind == EventHelp || (ev.Kind == EventAnswer && ev.Text == ChoiceHelp) {
		return StateAwaitingStart, []Reply{e.rules()}, nil
	}
	if ev.Kind != EventAnswer {
		return StateAwaitingStart, nil, nil
	}

	switch ev.Text {
	case ChoiceNo:
		return StateEnded, []Reply{{Text: msgDeclined}}, nil
	case ChoiceYes:
		return e.beginAttempt(ctx, userID)
	default:
		// Unrecognized input: no-op, keep the menu state.
		return StateAwaitingStart, nil, nil
	}
}

// beginAttempt applies the eligibility gates and, when allowed, deals a
// fresh attempt: a new sample of questions, cursor and score reset.
func (e *Engine) beginAttempt(ctx context.Context, userID int64) (State, []Reply, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return StateAwaitingStart, nil, fmt.Errorf("load session: %w", err)
	}

	switch {
	case sess == nil:
		sess = domain.NewSession(userID)
	case sess.Won:
		return StateEnded, []Reply{{Text: msgAlreadyWon}}, nil
	case sess.Attempt >= e.params.Retries:
		return StateEnded, []Reply{{Text: msgExhausted}}, nil
	default:
		sess.Attempt++
	}

	sess.QuestionOrder = e.sampleQuestions()
	sess.QuestionIndex = 0
	sess.Score = 0

	question, err := e.questionReply(sess)
	if err != nil {
		return StateAwaitingStart, nil, err
	}
	if err := e.store.Put(ctx, userID, sess); err != nil {
		return StateAwaitingStart, nil, fmt.Errorf("save session: %w", err)
	}
	return StateInQuestion, []Reply{question}, nil
}

func (e *Engine) stepInQuestion(ctx context.Context, userID int64, ev Event) (State, []Reply, error) {
	switch ev.Kind {
	case EventAnswer:
		return e.grade(ctx, userID, ev.Text, false)
	case EventTimeout:
		return e.grade(ctx, userID, "", true)
	default:
		return StateInQuestion, nil, nil
	}
}

// grade scores the current question, advances the cursor, and either
// presents the next question or closes the attempt against the win
// threshold.
func (e *Engine) grade(ctx context.Context, userID int64, answer string, timedOut bool) (State, []Reply, error) {
	sess, err := e.store.Get(ctx, userID)
	if err != nil {
		return StateInQuestion, nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return StateEnded, nil, &domain.InvariantError{UserID: userID, Detail: "answer received without a session"}
	}
	if sess.QuestionIndex >= len(sess.QuestionOrder) {
		return StateEnded, nil, &domain.InvariantError{UserID: userID, Detail: fmt.Sprintf("question cursor %d beyond order of %d", sess.QuestionIndex, len(sess.QuestionOrder))}
	}

	prompt := sess.QuestionOrder[sess.QuestionIndex]
	question, ok := e.bank.Question(prompt)
	if !ok {
		return StateEnded, nil, &domain.InvariantError{UserID: userID, Detail: fmt.Sprintf("prompt %q not in bank", prompt)}
	}

	// Exact string match, case-sensitive, no trimming.
	correct := !timedOut && answer == question.Correct
	if correct {
		sess.Score++
	}
	sess.QuestionIndex++

	var replies []Reply
	switch {
	case correct:
		replies = append(replies, Reply{Text: msgCorrect})
	case timedOut:
		replies = append(replies, Reply{Text: fmt.Sprintf(msgTimedOut, question.Correct)})
	default:
		replies = append(replies, Reply{Text: fmt.Sprintf(msgWrong, question.Correct)})
	}

	if sess.QuestionIndex < len(sess.QuestionOrder) {
		next, err := e.questionReply(sess)
		if err != nil {
			return StateEnded, nil, err
		}
		if err := e.store.Put(ctx, userID, sess); err != nil {
			return StateInQuestion, nil, fmt.Errorf("save session: %w", err)
		}
		return StateInQuestion, append(replies, next), nil
	}

	// Attempt finished: summarize, mark the win sticky, offer a replay.
	replies = append(replies, Reply{Text: fmt.Sprintf(msgSummary, sess.Score, len(sess.QuestionOrder))})
	if sess.Score >= e.params.WinThreshold {
		sess.Won = true
		replies = append(replies, Reply{Text: e.bank.WinMessage})
	} else {
		replies = append(replies, Reply{Text: e.bank.LossMessage})
	}
	if err := e.store.Put(ctx, userID, sess); err != nil {
		return StateInQuestion, nil, fmt.Errorf("save session: %w", err)
	}
	replies = append(replies, Reply{Text: msgReplay, Choices: startChoices()})
	return StateAwaitingStart, replies, nil
}

// sampleQuestions draws a uniform sample without replacement from the
// bank. Bank size versus sample size was checked at construction.
func (e *Engine) sampleQuestions() []string {
	prompts := e.bank.Prompts()

	e.mu.Lock()
	perm := e.rnd.Perm(len(prompts))
	e.mu.Unlock()

	order := make([]string, e.params.Questions)
	for i := range order {
		order[i] = prompts[perm[i]]
	}
	return order
}

// questionReply renders the current question with freshly shuffled
// options. Shuffling happens per presentation, not at sampling time.
func (e *Engine) questionReply(sess *domain.Session) (Reply, error) {
	prompt := sess.QuestionOrder[sess.QuestionIndex]
	question, ok := e.bank.Question(prompt)
	if !ok {
		return Reply{}, &domain.InvariantError{UserID: sess.UserID, Detail: fmt.Sprintf("prompt %q not in bank", prompt)}
	}

	options := make([]string, len(question.Options))
	copy(options, question.Options)

	e.mu.Lock()
	e.rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	e.mu.Unlock()

	text := fmt.Sprintf("Question %d/%d\n\n%s", sess.QuestionIndex+1, len(sess.QuestionOrder), question.Prompt)
	return Reply{Text: text, Choices: options}, nil
}

func (e *Engine) greeting() Reply {
	return Reply{
		Text:    fmt.Sprintf(msgGreeting, e.params.Questions, e.params.WinThreshold),
		Choices: startChoices(),
	}
}

func (e *Engine) rules() Reply {
	return Reply{
		Text: fmt.Sprintf(msgRules,
			e.params.Questions,
			int(e.params.QuestionTime.Seconds()),
			e.params.WinThreshold,
			e.params.Retries),
		Choices: startChoices(),
	}
}

func startChoices() []string {
	return []string{ChoiceYes, ChoiceNo, ChoiceHelp}
}

const (
	msgGreeting   = "Hi! I host a trivia quiz: %d questions, %d or more right answers to win. Want to play?"
	msgRules      = "The rules: you get %d randomly picked questions and %d seconds to answer each one. Score %d or more to win. You have %d attempts in total."
	msgDeclined   = "No problem. Send /start whenever you feel like playing."
	msgAlreadyWon = "You have already beaten the quiz. There is nothing left to prove!"
	msgExhausted  = "You are out of attempts. Thanks for playing!"
	msgCorrect    = "Correct!"
	msgWrong      = "Wrong! The right answer was: %s"
	msgTimedOut   = "Time's up! The right answer was: %s"
	msgSummary    = "That's all! You answered %d out of %d correctly."
	msgReplay     = "Want to play again?"
	msgFarewell   = "Bye! Send /start to talk to me again."
)
