// Package telegram drives the quiz engine over the Telegram Bot API
// using long polling and inline keyboards.
package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/H-SG/telegram-quizbot/internal/domain"
	"github.com/H-SG/telegram-quizbot/internal/quiz"
)

// Bot is the conversation driver: it resolves the per-chat state, feeds
// events into the engine one at a time per chat, and renders replies as
// messages with inline keyboards.
type Bot struct {
	api    *tgbotapi.BotAPI
	engine *quiz.Engine
	log    zerolog.Logger
	locks  *quiz.UserLocks

	mu    sync.Mutex
	chats map[int64]*chatState
}

// chatState is the transient conversational state of one chat. The
// serial increments on every processed event; a pending question timer
// captures the serial it was armed under and is discarded when they no
// longer match (an answer got there first).
type chatState struct {
	state  quiz.State
	serial uint64
	timer  *time.Timer
}

func NewBot(token string, engine *quiz.Engine, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:    api,
		engine: engine,
		log:    log.With().Str("transport", "telegram").Logger(),
		locks:  quiz.NewUserLocks(),
		chats:  make(map[int64]*chatState),
	}, nil
}

// Run polls for updates until ctx is canceled. Each update is handled
// on its own goroutine; the per-chat lock serializes chats, so distinct
// chats proceed in parallel while one chat's events stay ordered.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info().Str("account", b.api.Self.UserName).Msg("bot authorized")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		chatID := update.Message.Chat.ID
		switch update.Message.Command() {
		case "start":
			b.dispatch(ctx, chatID, quiz.Event{Kind: quiz.EventStart})
		case "cancel":
			b.dispatch(ctx, chatID, quiz.Event{Kind: quiz.EventCancel})
		case "help":
			b.dispatch(ctx, chatID, quiz.Event{Kind: quiz.EventHelp})
		default:
			b.dispatch(ctx, chatID, quiz.Event{Kind: quiz.EventAnswer, Text: update.Message.Text})
		}
	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
			b.log.Warn().Err(err).Msg("answer callback query")
		}
		if callback.Message == nil {
			return
		}
		b.dispatch(ctx, callback.Message.Chat.ID, quiz.Event{Kind: quiz.EventAnswer, Text: callback.Data})
	}
}

// dispatch serializes the event under the chat's lock and runs it.
func (b *Bot) dispatch(ctx context.Context, chatID int64, ev quiz.Event) {
	unlock := b.locks.Lock(chatID)
	defer unlock()
	b.stepLocked(ctx, chatID, ev)
}

// fireTimeout is the question timer callback. It re-checks under the
// lock that no event was processed since the timer was armed.
func (b *Bot) fireTimeout(chatID int64, serial uint64) {
	unlock := b.locks.Lock(chatID)
	defer unlock()

	cs := b.chat(chatID)
	if cs.serial != serial || cs.state != quiz.StateInQuestion {
		return
	}
	b.stepLocked(context.Background(), chatID, quiz.Event{Kind: quiz.EventTimeout})
}

// stepLocked must be called with the chat's lock held.
func (b *Bot) stepLocked(ctx context.Context, chatID int64, ev quiz.Event) {
	cs := b.chat(chatID)
	cs.serial++
	if cs.timer != nil {
		cs.timer.Stop()
		cs.timer = nil
	}

	next, replies, err := b.engine.Step(ctx, chatID, cs.state, ev)
	if err != nil {
		var inv *domain.InvariantError
		if errors.As(err, &inv) {
			b.log.Error().Err(inv).Int64("chat", chatID).Msg("session invariant violated, aborting conversation")
			cs.state = quiz.StateEnded
			b.send(chatID, quiz.Reply{Text: "Something went wrong on my side. Send /start to try again."})
			return
		}
		b.log.Error().Err(err).Int64("chat", chatID).Msg("transition failed")
		return
	}

	cs.state = next
	for _, reply := range replies {
		b.send(chatID, reply)
	}

	if next == quiz.StateInQuestion {
		serial := cs.serial
		cs.timer = time.AfterFunc(b.engine.QuestionTime(), func() {
			b.fireTimeout(chatID, serial)
		})
	}
}

func (b *Bot) chat(chatID int64) *chatState {
	b.mu.Lock()
	defer b.mu.Unlock()
	cs, ok := b.chats[chatID]
	if !ok {
		cs = &chatState{state: quiz.StateIdle}
		b.chats[chatID] = cs
	}
	return cs
}

func (b *Bot) send(chatID int64, reply quiz.Reply) {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	if len(reply.Choices) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Choices))
		for _, choice := range reply.Choices {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(choice, choice),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat", chatID).Msg("send message")
	}
}
