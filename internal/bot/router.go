// Package bot routes inbound events to command handlers and the free-text
// conversation handler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ashureev/askzen/internal/catalog"
	"github.com/ashureev/askzen/internal/completion"
	"github.com/ashureev/askzen/internal/domain"
	"github.com/ashureev/askzen/internal/language"
	"github.com/ashureev/askzen/internal/session"
	"github.com/google/uuid"
)

// Completer sends one completion request.
type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

// Recorder receives a transcript record of every handled event. Record must
// not block.
type Recorder interface {
	Record(turn domain.Turn)
}

// Rand is the randomness used by /roll, /random, /flip, and the catalog commands.
type Rand interface {
	IntN(n int) int
	Uint64N(n uint64) uint64
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

func (globalRand) Uint64N(n uint64) uint64 { return rand.Uint64N(n) }

// Reply is the router's answer to one event. Text may be empty when there is
// nothing to send.
type Reply struct {
	Text     string
	Language domain.Language
	Outcome  domain.Outcome
}

// Router dispatches events to registered commands.
type Router struct {
	sessions  *session.Store
	resolver  *language.Resolver
	completer Completer
	catalog   *catalog.Catalog
	limiter   *Limiter
	recorder  Recorder
	rand      Rand
	now       func() time.Time
	logger    *slog.Logger

	commands map[string]*Command
	order    []*Command
}

// Option configures a Router.
type Option func(*Router)

// WithCatalog sets the joke/quote/fact catalog. The embedded catalog is used otherwise.
func WithCatalog(c *catalog.Catalog) Option {
	return func(r *Router) { r.catalog = c }
}

// WithLimiter enables per-user rate limiting of AI commands and free text.
func WithLimiter(l *Limiter) Option {
	return func(r *Router) { r.limiter = l }
}

// WithRecorder hands every handled event to rec.
func WithRecorder(rec Recorder) Option {
	return func(r *Router) { r.recorder = rec }
}

// WithRand replaces the random source.
func WithRand(rnd Rand) Option {
	return func(r *Router) { r.rand = rnd }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLogger sets the logger. slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// NewRouter creates a router with the built-in command set registered.
func NewRouter(sessions *session.Store, resolver *language.Resolver, completer Completer, opts ...Option) *Router {
	r := &Router{
		sessions:  sessions,
		resolver:  resolver,
		completer: completer,
		rand:      globalRand{},
		now:       time.Now,
		logger:    slog.Default(),
		commands:  make(map[string]*Command),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.catalog == nil {
		r.catalog = catalog.Default()
	}
	r.registerBuiltins()
	return r
}

// Register adds or replaces a command.
func (r *Router) Register(cmd Command) {
	name := strings.ToLower(strings.TrimPrefix(cmd.Name, "/"))
	cmd.Name = name
	if existing, ok := r.commands[name]; ok {
		*existing = cmd
		return
	}
	c := &cmd
	r.commands[name] = c
	r.order = append(r.order, c)
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []Command {
	out := make([]Command, len(r.order))
	for i, c := range r.order {
		out[i] = *c
	}
	return out
}

// Dispatch handles one event. Events of the same user are serialized;
// events of different users run concurrently.
func (r *Router) Dispatch(ctx context.Context, ev domain.Event) Reply {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = r.now()
	}
	if !ev.IsCommand() && strings.TrimSpace(ev.Text) == "" {
		return Reply{Language: domain.FallbackLanguage, Outcome: domain.OutcomeUsage}
	}

	unlock := r.sessions.Lock(ev.UserID)
	defer unlock()

	var reply Reply
	switch cmd, ok := r.commands[ev.Command]; {
	case !ev.IsCommand():
		reply = r.chat(ctx, ev)
	case ok:
		reply = r.runCommand(ctx, cmd, ev)
	default:
		lang := r.commandLanguage(ev.UserID)
		reply = Reply{
			Text:     fmt.Sprintf(msgUnknownCommand.In(lang), ev.Command),
			Language: lang,
			Outcome:  domain.OutcomeUnknown,
		}
	}

	r.record(ev, reply)
	return reply
}

func (r *Router) runCommand(ctx context.Context, cmd *Command, ev domain.Event) Reply {
	lang := r.commandLanguage(ev.UserID)

	if err := cmd.Args.Validate(ev.Args); err != nil {
		var usage *UsageError
		if errors.As(err, &usage) {
			usage.Command = cmd.Name
		}
		r.logger.Debug("command usage rejected", "user_id", ev.UserID, "command", cmd.Name, "error", err)
		return r.usageReply(cmd, lang)
	}
	if cmd.AI && !r.limiter.Allow(ev.UserID) {
		return r.rateLimited(ev, lang)
	}

	reply := cmd.Run(ctx, Call{Event: ev, Lang: lang})
	if reply.Language == "" {
		reply.Language = lang
	}
	if reply.Outcome == "" {
		reply.Outcome = domain.OutcomeOK
	}
	return reply
}

// commandLanguage localizes command replies: the explicit preference, else the
// language last detected from the user's free text, else the fallback.
func (r *Router) commandLanguage(userID string) domain.Language {
	if _, explicit := r.sessions.Language(userID); !explicit {
		if lang, ok := r.sessions.DetectedLanguage(userID); ok {
			return lang
		}
	}
	return r.resolver.Resolve(userID, "")
}

// chat is the default handler for free text.
func (r *Router) chat(ctx context.Context, ev domain.Event) Reply {
	if !r.limiter.Allow(ev.UserID) {
		return r.rateLimited(ev, r.resolver.Resolve(ev.UserID, ev.Text))
	}

	r.sessions.IncrementUsage(ev.UserID)
	r.sessions.AppendHistory(ev.UserID, domain.RoleUser, ev.Text)
	lang := r.resolver.Resolve(ev.UserID, ev.Text)
	if _, explicit := r.sessions.Language(ev.UserID); !explicit {
		r.sessions.SetDetectedLanguage(ev.UserID, lang)
	}

	// The call outlives a disconnected client; only the gateway timeout ends it.
	text, err := r.completer.Complete(context.WithoutCancel(ctx), completion.Request{
		SystemPrompt: systemPrompt.In(lang),
		Messages:     r.sessions.History(ev.UserID),
		MaxTokens:    chatMaxTokens,
		Temperature:  chatTemperature,
	})
	if err != nil {
		r.logger.Error("free text completion failed", "user_id", ev.UserID, "language", lang, "error", err)
		return Reply{Text: msgChatFailed.In(lang), Language: lang, Outcome: domain.OutcomeBackendError}
	}

	r.sessions.AppendHistory(ev.UserID, domain.RoleAssistant, text)
	return Reply{Text: text, Language: lang, Outcome: domain.OutcomeOK}
}

func (r *Router) usageReply(cmd *Command, lang domain.Language) Reply {
	return Reply{
		Text:     fmt.Sprintf(msgUsage.In(lang), cmd.usageLine(lang)),
		Language: lang,
		Outcome:  domain.OutcomeUsage,
	}
}

func (r *Router) rateLimited(ev domain.Event, lang domain.Language) Reply {
	r.logger.Warn("rate limit exceeded", "user_id", ev.UserID, "command", ev.Command)
	return Reply{Text: msgRateLimited.In(lang), Language: lang, Outcome: domain.OutcomeRateLimited}
}

func (r *Router) record(ev domain.Event, reply Reply) {
	if r.recorder == nil {
		return
	}
	now := r.now()
	r.recorder.Record(domain.Turn{
		ID:          uuid.NewString(),
		UserID:      ev.UserID,
		DisplayName: ev.DisplayName,
		Username:    ev.Username,
		Command:     ev.Command,
		Input:       ev.Text,
		Reply:       reply.Text,
		Outcome:     reply.Outcome,
		Language:    reply.Language,
		Duration:    now.Sub(ev.ReceivedAt),
		CreatedAt:   now,
	})
}
