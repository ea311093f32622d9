package language

import (
	"strings"

	"github.com/ashureev/askzen/internal/domain"
	"golang.org/x/text/language"
)

var supported = map[language.Base]domain.Language{
	mustBase("tr"): domain.LanguageTurkish,
	mustBase("en"): domain.LanguageEnglish,
}

func mustBase(s string) language.Base {
	b, err := language.ParseBase(s)
	if err != nil {
		panic(err)
	}
	return b
}

// ParseCode maps a language code or locale ("TR", "tr-TR", "en_US") onto the
// supported set. ok is false for anything else, including malformed input.
func ParseCode(code string) (domain.Language, bool) {
	code = strings.ReplaceAll(strings.TrimSpace(code), "_", "-")
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", false
	}
	lang, ok := supported[base]
	return lang, ok
}

// FromLocale maps a client locale onto the supported set. Turkish locales get
// Turkish, everything else the fallback.
func FromLocale(locale string) domain.Language {
	if lang, ok := ParseCode(locale); ok {
		return lang
	}
	return domain.FallbackLanguage
}
