package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/askzen/internal/catalog"
	"github.com/ashureev/askzen/internal/language"
)

const timeLayout = "2006-01-02 15:04:05"

func (r *Router) registerBuiltins() {
	r.Register(Command{Name: "start", Summary: Phrase{TR: "Karşılama mesajı", EN: "Welcome message"}, Run: r.handleStart})
	r.Register(Command{Name: "help", Summary: Phrase{TR: "Komut listesi", EN: "Show commands"}, Run: r.handleHelp})
	r.Register(Command{
		Name:    "lang",
		Summary: Phrase{TR: "Dil tercihini değiştir", EN: "Change language"},
		Usage:   Phrase{TR: "<tr|en>", EN: "<tr|en>"},
		Args:    ArgSpec{MinArgs: 1},
		Run:     r.handleLang,
	})
	r.Register(Command{Name: "reset", Summary: Phrase{TR: "Sohbet geçmişini temizle", EN: "Clear history"}, Run: r.handleReset})
	r.Register(Command{Name: "stats", Summary: Phrase{TR: "İstek istatistiklerini göster", EN: "Show usage stats"}, Run: r.handleStats})
	r.Register(Command{Name: "joke", Summary: Phrase{TR: "Rastgele şaka", EN: "Get random joke"}, Run: r.catalogHandler(catalog.KindJoke)})
	r.Register(Command{Name: "quote", Summary: Phrase{TR: "Rastgele alıntı", EN: "Get random quote"}, Run: r.catalogHandler(catalog.KindQuote)})
	r.Register(Command{Name: "fact", Summary: Phrase{TR: "Rastgele bilgi", EN: "Get random fact"}, Run: r.catalogHandler(catalog.KindFact)})

	for _, task := range aiTasks {
		r.Register(Command{
			Name:    task.name,
			Summary: task.summary,
			Usage:   task.usage,
			Args:    task.args,
			AI:      true,
			Run:     r.aiHandler(task),
		})
	}

	r.Register(Command{
		Name:    "todo_add",
		Summary: Phrase{TR: "Yapılacak ekle", EN: "Add to to-do list"},
		Usage:   Phrase{TR: "<madde>", EN: "<item>"},
		Args:    ArgSpec{Text: true},
		Run:     r.handleTodoAdd,
	})
	r.Register(Command{Name: "todo_list", Summary: Phrase{TR: "Yapılacak liste", EN: "Show to-do list"}, Run: r.handleTodoList})
	r.Register(Command{Name: "todo_clear", Summary: Phrase{TR: "Yapılacak temizle", EN: "Clear to-do list"}, Run: r.handleTodoClear})
	r.Register(Command{Name: "ping", Summary: Phrase{TR: "Gecikmeyi ölç", EN: "Measure latency"}, Run: r.handlePing})
	r.Register(Command{Name: "time", Summary: Phrase{TR: "Mevcut zamanı göster", EN: "Show current time"}, Run: r.handleTime})
	r.Register(Command{
		Name:    "roll",
		Summary: Phrase{TR: "1 ila sayı arasında rastgele sayı", EN: "Roll a number"},
		Usage:   Phrase{TR: "<sayi>", EN: "<number>"},
		Args:    ArgSpec{Numeric: 1},
		Run:     r.handleRoll,
	})
	r.Register(Command{
		Name:    "random",
		Summary: Phrase{TR: "Rastgele sayı üret", EN: "Generate random number"},
		Usage:   Phrase{TR: "<min> <max>", EN: "<min> <max>"},
		Args:    ArgSpec{Numeric: 2},
		Run:     r.handleRandom,
	})
	r.Register(Command{Name: "flip", Summary: Phrase{TR: "Yazı-tura at", EN: "Flip a coin"}, Run: r.handleFlip})
	r.Register(Command{
		Name:    "calc",
		Summary: Phrase{TR: "Matematik hesaplama", EN: "Math calculate"},
		Usage:   Phrase{TR: "<ifade>", EN: "<expression>"},
		Args:    ArgSpec{Text: true},
		Run:     r.handleCalc,
	})
	r.Register(Command{
		Name:    "echo",
		Summary: Phrase{TR: "Yazılanı tekrar yazar", EN: "Echo text"},
		Usage:   Phrase{TR: "<metin>", EN: "<text>"},
		Args:    ArgSpec{Text: true},
		Run:     r.handleEcho,
	})
	r.Register(Command{Name: "about", Summary: Phrase{TR: "Bot hakkında bilgi", EN: "About this bot"}, Run: r.handleAbout})
	r.Register(Command{Name: "user", Summary: Phrase{TR: "Kullanıcı bilgilerini göster", EN: "Show user info"}, Run: r.handleUser})
}

func textReply(text string) Reply {
	return Reply{Text: text}
}

func (r *Router) handleStart(_ context.Context, call Call) Reply {
	lang := language.FromLocale(call.Event.LanguageCode)
	r.sessions.SetLanguage(call.Event.UserID, lang)
	return Reply{Text: msgWelcome.In(lang), Language: lang}
}

func (r *Router) handleHelp(_ context.Context, call Call) Reply {
	var b strings.Builder
	b.WriteString(msgHelpHeader.In(call.Lang))
	for _, cmd := range r.order {
		b.WriteString("\n")
		b.WriteString(cmd.usageLine(call.Lang))
		if s := cmd.Summary.In(call.Lang); s != "" {
			b.WriteString(" - ")
			b.WriteString(s)
		}
	}
	return textReply(b.String())
}

func (r *Router) handleLang(_ context.Context, call Call) Reply {
	lang, ok := language.ParseCode(call.Event.Args[0])
	if !ok {
		return r.usageReply(r.commands["lang"], call.Lang)
	}
	r.sessions.SetLanguage(call.Event.UserID, lang)
	return Reply{Text: msgLangSet.In(lang), Language: lang}
}

func (r *Router) handleReset(_ context.Context, call Call) Reply {
	r.sessions.ClearHistory(call.Event.UserID)
	return textReply(msgReset.In(call.Lang))
}

func (r *Router) handleStats(_ context.Context, call Call) Reply {
	return textReply(fmt.Sprintf(msgStats.In(call.Lang), r.sessions.Usage(call.Event.UserID)))
}

func (r *Router) catalogHandler(kind catalog.Kind) HandlerFunc {
	return func(_ context.Context, call Call) Reply {
		entries := r.catalog.Entries(kind, call.Lang)
		if len(entries) == 0 {
			return textReply("")
		}
		return textReply(entries[r.rand.IntN(len(entries))])
	}
}

func (r *Router) handleTodoAdd(_ context.Context, call Call) Reply {
	r.sessions.AddTodo(call.Event.UserID, call.Event.ArgText())
	return textReply(msgTodoAdded.In(call.Lang))
}

func (r *Router) handleTodoList(_ context.Context, call Call) Reply {
	todos := r.sessions.ListTodos(call.Event.UserID)
	if len(todos) == 0 {
		return textReply(msgTodoEmpty.In(call.Lang))
	}
	lines := make([]string, len(todos))
	for i, item := range todos {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return textReply(strings.Join(lines, "\n"))
}

func (r *Router) handleTodoClear(_ context.Context, call Call) Reply {
	r.sessions.ClearTodos(call.Event.UserID)
	return textReply(msgTodoCleared.In(call.Lang))
}

func (r *Router) handlePing(_ context.Context, call Call) Reply {
	latency := r.now().Sub(call.Event.ReceivedAt).Milliseconds()
	return textReply(fmt.Sprintf("Pong! %d ms", max(latency, 0)))
}

func (r *Router) handleTime(_ context.Context, call Call) Reply {
	return textReply(fmt.Sprintf(msgTime.In(call.Lang), r.now().Format(timeLayout)))
}

// handleRoll picks uniformly from [1, max(1, n)].
func (r *Router) handleRoll(_ context.Context, call Call) Reply {
	n, _ := strconv.Atoi(call.Event.Args[0])
	return textReply(strconv.Itoa(1 + r.rand.IntN(max(1, n))))
}

// handleRandom picks uniformly from [min, max], swapping reversed bounds.
func (r *Router) handleRandom(_ context.Context, call Call) Reply {
	lo, _ := strconv.Atoi(call.Event.Args[0])
	hi, _ := strconv.Atoi(call.Event.Args[1])
	if lo > hi {
		lo, hi = hi, lo
	}
	// Bounds are non-negative, so the span fits in uint64 even for [0, MaxInt].
	span := uint64(hi-lo) + 1
	return textReply(strconv.FormatUint(uint64(lo)+r.rand.Uint64N(span), 10))
}

func (r *Router) handleFlip(_ context.Context, call Call) Reply {
	if r.rand.IntN(2) == 0 {
		return textReply(msgHeads.In(call.Lang))
	}
	return textReply(msgTails.In(call.Lang))
}

func (r *Router) handleCalc(_ context.Context, call Call) Reply {
	v, err := Evaluate(call.Event.ArgText())
	if err != nil {
		r.logger.Debug("calc rejected", "user_id", call.Event.UserID, "error", err)
		return textReply(msgCalcInvalid.In(call.Lang))
	}
	return textReply(FormatNumber(v))
}

func (r *Router) handleEcho(_ context.Context, call Call) Reply {
	return textReply(call.Event.ArgText())
}

func (r *Router) handleAbout(_ context.Context, call Call) Reply {
	return textReply(msgAbout.In(call.Lang))
}

func (r *Router) handleUser(_ context.Context, call Call) Reply {
	ev := call.Event
	name := ev.DisplayName
	if name == "" {
		name = msgNone.In(call.Lang)
	}
	handle := msgNone.In(call.Lang)
	if ev.Username != "" {
		handle = "@" + ev.Username
	}
	return textReply(fmt.Sprintf(msgUserInfo.In(call.Lang), ev.UserID, name, handle))
}
