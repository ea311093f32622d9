// Package language decides which language a reply is written in.
package language

import (
	"github.com/ashureev/askzen/internal/domain"
)

// Detector guesses the language of free text and returns an ISO 639-1 code.
type Detector interface {
	Detect(text string) (string, error)
}

// PreferenceSource exposes explicit per-user language preferences.
type PreferenceSource interface {
	Language(userID string) (domain.Language, bool)
}

// Resolver applies the preference-then-detection policy.
type Resolver struct {
	prefs    PreferenceSource
	detector Detector
}

// NewResolver creates a resolver. A nil detector always yields the fallback
// language for users without a preference.
func NewResolver(prefs PreferenceSource, detector Detector) *Resolver {
	return &Resolver{prefs: prefs, detector: detector}
}

// Resolve returns the language to reply in. An explicit preference wins and
// skips detection; otherwise the detected primary language is returned and
// anything else falls back. Resolve never mutates the session.
func (r *Resolver) Resolve(userID, text string) domain.Language {
	if lang, ok := r.prefs.Language(userID); ok {
		return lang
	}
	return r.Detect(text)
}

// Detect runs detection alone and never fails.
func (r *Resolver) Detect(text string) (lang domain.Language) {
	if r.detector == nil {
		return domain.FallbackLanguage
	}
	defer func() {
		if recover() != nil {
			lang = domain.FallbackLanguage
		}
	}()

	code, err := r.detector.Detect(text)
	if err != nil {
		return domain.FallbackLanguage
	}
	if parsed, ok := ParseCode(code); ok && parsed == domain.PrimaryLanguage {
		return domain.PrimaryLanguage
	}
	return domain.FallbackLanguage
}
