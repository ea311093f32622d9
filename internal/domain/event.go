package domain

import (
	"strings"
	"time"
)

// Event is a single inbound interaction delivered by a transport.
type Event struct {
	UserID       string
	Text         string
	Command      string // lowercased keyword without the leading slash, empty for free text
	Args         []string
	DisplayName  string
	Username     string
	LanguageCode string // client locale reported by the transport, may be empty
	ReceivedAt   time.Time
}

// IsCommand returns true if the event names a command.
func (e Event) IsCommand() bool {
	return e.Command != ""
}

// ArgText joins the arguments with single spaces.
func (e Event) ArgText() string {
	return strings.Join(e.Args, " ")
}

// ParseCommand splits "/name@bot arg1 arg2" into its keyword and arguments.
// ok is false when text is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	text = strings.TrimSpace(text)
	if len(text) < 2 || text[0] != '/' {
		return "", nil, false
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return "", nil, false
	}
	name = fields[0]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// NewEvent builds an event from raw text, parsing a leading command when present.
func NewEvent(userID, text string) Event {
	ev := Event{
		UserID:     userID,
		Text:       text,
		ReceivedAt: time.Now(),
	}
	if name, args, ok := ParseCommand(text); ok {
		ev.Command = name
		ev.Args = args
	}
	return ev
}
