// Package telegram connects the chat gateway to the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/ashureev/askzen/internal/bot"
	"github.com/ashureev/askzen/internal/domain"
)

const pollTimeoutSeconds = 30

// Dispatcher turns one inbound event into a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) bot.Reply
}

// Adapter relays Telegram messages to the dispatcher and sends replies back.
type Adapter struct {
	bot        *telego.Bot
	dispatcher Dispatcher
	logger     *slog.Logger
}

// New creates a Telegram adapter for the given bot token.
func New(token string, dispatcher Dispatcher, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Adapter{bot: b, dispatcher: dispatcher, logger: logger}, nil
}

// Run polls for updates until ctx is cancelled.
func (a *Adapter) Run(ctx context.Context) error {
	updates, err := a.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: pollTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(a.bot, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return a.handle(ctx, message)
	}, th.AnyMessage())

	a.logger.Info("Telegram bot connected", "username", a.bot.Username())
	go bh.Start()

	<-ctx.Done()
	bh.Stop()
	a.logger.Info("Telegram bot stopped")
	return nil
}

func (a *Adapter) handle(ctx context.Context, message telego.Message) error {
	ev, ok := toEvent(message)
	if !ok {
		return nil
	}
	chatID := tu.ID(message.Chat.ID)

	if err := a.bot.SendChatAction(ctx, tu.ChatAction(chatID, telego.ChatActionTyping)); err != nil {
		a.logger.Debug("Failed to send chat action", "user_id", ev.UserID, "error", err)
	}

	reply := a.dispatcher.Dispatch(ctx, ev)
	if reply.Text == "" {
		return nil
	}
	if _, err := a.bot.SendMessage(ctx, tu.Message(chatID, reply.Text)); err != nil {
		a.logger.Error("Failed to send reply", "user_id", ev.UserID, "command", ev.Command, "error", err)
		return err
	}
	return nil
}

// toEvent converts a Telegram message into a gateway event. Messages without
// a sender or text (stickers, photos, service messages) are skipped.
func toEvent(message telego.Message) (domain.Event, bool) {
	if message.From == nil || strings.TrimSpace(message.Text) == "" {
		return domain.Event{}, false
	}
	from := message.From

	ev := domain.NewEvent(strconv.FormatInt(from.ID, 10), message.Text)
	ev.DisplayName = strings.TrimSpace(from.FirstName + " " + from.LastName)
	ev.Username = from.Username
	ev.LanguageCode = from.LanguageCode
	return ev, true
}
