package domain

// Language is a response-language code from the closed set the gateway localizes into.
type Language string

const (
	// LanguageTurkish is the primary supported language.
	LanguageTurkish Language = "tr"
	// LanguageEnglish is the fallback language.
	LanguageEnglish Language = "en"

	PrimaryLanguage  = LanguageTurkish
	FallbackLanguage = LanguageEnglish
)

// Valid reports whether l belongs to the supported set.
func (l Language) Valid() bool {
	return l == LanguageTurkish || l == LanguageEnglish
}

// Role identifies the author of a history entry. The system prompt is added
// by the completion gateway and never stored.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryLimit is the maximum number of entries kept in a user's conversation memory.
const HistoryLimit = 6

// HistoryEntry is one recorded turn of a conversation.
type HistoryEntry struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserSession is the volatile per-user state owned by the session store.
// Values handed out by the store are copies.
type UserSession struct {
	UserID       string
	Language     *Language // explicit preference, nil when never set
	Detected     *Language // last language detected from free text; localizes commands only
	History      []HistoryEntry
	RequestCount int
	Todos        []string
}

// HasLanguage returns true if the user has set an explicit language preference.
func (s *UserSession) HasLanguage() bool {
	return s.Language != nil
}
