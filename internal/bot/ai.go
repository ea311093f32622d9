package bot

import (
	"context"
	"strings"

	"github.com/ashureev/askzen/internal/completion"
	"github.com/ashureev/askzen/internal/domain"
)

const (
	chatMaxTokens   = 128
	chatTemperature = 0.6
)

// aiTask is a one-shot command answered by the completion backend. It never
// touches history or usage.
type aiTask struct {
	name        string
	summary     Phrase
	usage       Phrase
	args        ArgSpec
	maxTokens   int
	temperature float32
	failure     Phrase
	// prompt builds the system prompt and user content from the arguments.
	prompt func(args []string) (system, input string)
}

func fixedPrompt(system string) func([]string) (string, string) {
	return func(args []string) (string, string) {
		return system, strings.Join(args, " ")
	}
}

var aiTasks = []aiTask{
	{
		name:        "translate",
		summary:     Phrase{TR: "Metni çevir", EN: "Translate text"},
		usage:       Phrase{TR: "<hedef_dil> <metin>", EN: "<target_lang> <text>"},
		args:        ArgSpec{MinArgs: 2},
		maxTokens:   256,
		temperature: 0.2,
		failure:     Phrase{TR: "❌ Çeviri yapılamadı.", EN: "❌ Translation failed."},
		prompt: func(args []string) (string, string) {
			return "You are a translator. Translate to " + args[0] + ".", strings.Join(args[1:], " ")
		},
	},
	{
		name:        "summary",
		summary:     Phrase{TR: "Metni özetle", EN: "Summarize text"},
		usage:       Phrase{TR: "<metin>", EN: "<text>"},
		args:        ArgSpec{Text: true},
		maxTokens:   128,
		temperature: 0.2,
		failure:     Phrase{TR: "❌ Özet alınamadı.", EN: "❌ Summarization failed."},
		prompt:      fixedPrompt("You are a summarizer. Summarize the following text."),
	},
	{
		name:        "define",
		summary:     Phrase{TR: "Kelime tanımı yap", EN: "Define a word"},
		usage:       Phrase{TR: "<kelime>", EN: "<word>"},
		args:        ArgSpec{Text: true},
		maxTokens:   64,
		temperature: 0.2,
		failure:     Phrase{TR: "❌ Tanım bulunamadı.", EN: "❌ Definition failed."},
		prompt:      fixedPrompt("You are a dictionary. Provide a clear definition."),
	},
	{
		name:        "poem",
		summary:     Phrase{TR: "Konuya şiir oluştur", EN: "Create poem"},
		usage:       Phrase{TR: "<konu>", EN: "<topic>"},
		args:        ArgSpec{Text: true},
		maxTokens:   128,
		temperature: 0.7,
		failure:     Phrase{TR: "❌ Şiir oluşturulamadı.", EN: "❌ Could not generate poem."},
		prompt:      fixedPrompt("You are a poet. Write a short poem about the topic."),
	},
	{
		name:        "story",
		summary:     Phrase{TR: "Konuya hikaye oluştur", EN: "Create story"},
		usage:       Phrase{TR: "<konu>", EN: "<topic>"},
		args:        ArgSpec{Text: true},
		maxTokens:   256,
		temperature: 0.7,
		failure:     Phrase{TR: "❌ Hikaye oluşturulamadı.", EN: "❌ Could not generate story."},
		prompt:      fixedPrompt("You are a storyteller. Write a short story about the topic."),
	},
}

func (r *Router) aiHandler(task aiTask) HandlerFunc {
	return func(ctx context.Context, call Call) Reply {
		system, input := task.prompt(call.Event.Args)
		text, err := r.completer.Complete(context.WithoutCancel(ctx), completion.Request{
			SystemPrompt: system,
			Messages:     []domain.HistoryEntry{{Role: domain.RoleUser, Content: input}},
			MaxTokens:    task.maxTokens,
			Temperature:  task.temperature,
		})
		if err == nil {
			return textReply(text)
		}

		r.logger.Error("command completion failed", "user_id", call.Event.UserID, "command", task.name, "error", err)
		reply := Reply{Text: task.failure.In(call.Lang), Outcome: domain.OutcomeBackendError}
		if be, ok := completion.AsBackendError(err); ok {
			if msg, ok := be.Rejection(); ok {
				reply.Text = msg
			}
		}
		return reply
	}
}
