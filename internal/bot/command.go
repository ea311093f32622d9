package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ashureev/askzen/internal/domain"
)

// Phrase is a piece of user-facing text in every supported language.
type Phrase struct {
	TR string
	EN string
}

// In returns the phrase for lang, using English for anything but Turkish.
func (p Phrase) In(lang domain.Language) string {
	if lang == domain.LanguageTurkish {
		return p.TR
	}
	return p.EN
}

// Call is the input handed to a command handler.
type Call struct {
	Event domain.Event
	Lang  domain.Language
}

// HandlerFunc runs a validated command.
type HandlerFunc func(ctx context.Context, call Call) Reply

// ArgSpec declares the arguments a command accepts. It is checked before the
// handler runs.
type ArgSpec struct {
	// MinArgs is the minimum number of whitespace-separated arguments.
	MinArgs int
	// Numeric is how many leading arguments must be non-negative integers.
	Numeric int
	// Text requires a non-empty argument text.
	Text bool
}

// Validate checks args against the declared argument shape.
func (s ArgSpec) Validate(args []string) error {
	need := max(s.MinArgs, s.Numeric)
	if s.Text {
		need = max(need, 1)
	}
	if len(args) < need {
		return &UsageError{Reason: fmt.Sprintf("want at least %d argument(s), got %d", need, len(args))}
	}
	for i := range s.Numeric {
		if !isDigits(args[i]) {
			return &UsageError{Reason: fmt.Sprintf("argument %d is not a non-negative integer: %q", i+1, args[i])}
		}
		if _, err := strconv.Atoi(args[i]); err != nil {
			return &UsageError{Reason: fmt.Sprintf("argument %d is out of range", i+1)}
		}
	}
	if s.Text && strings.TrimSpace(strings.Join(args, " ")) == "" {
		return &UsageError{Reason: "text is required"}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// UsageError reports arguments that do not match a command's ArgSpec.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	if e.Command == "" {
		return "usage: " + e.Reason
	}
	return fmt.Sprintf("usage of /%s: %s", e.Command, e.Reason)
}

// Command is a registered command.
type Command struct {
	Name    string
	Summary Phrase
	// Usage is the argument hint shown in help and usage replies, e.g. "<tr|en>".
	Usage Phrase
	Args  ArgSpec
	// AI marks commands that call the completion backend. They are rate limited.
	AI  bool
	Run HandlerFunc
}

func (c *Command) usageLine(lang domain.Language) string {
	line := "/" + c.Name
	if hint := c.Usage.In(lang); hint != "" {
		line += " " + hint
	}
	return line
}
