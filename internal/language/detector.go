package language

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var (
	errEmptyText        = errors.New("no text to detect")
	errUndetermined     = errors.New("language could not be determined")
	errDetectorPanicked = errors.New("detector panicked")
)

// TrigramDetector detects languages with whatlanggo's trigram model.
type TrigramDetector struct {
	// MinConfidence rejects guesses below this score. Zero accepts any guess.
	MinConfidence float64
}

// Detect implements Detector.
func (d TrigramDetector) Detect(text string) (code string, err error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyText
	}
	defer func() {
		if r := recover(); r != nil {
			code, err = "", fmt.Errorf("%w: %v", errDetectorPanicked, r)
		}
	}()

	info := whatlanggo.Detect(text)
	code = info.Lang.Iso6391()
	if code == "" {
		return "", errUndetermined
	}
	if info.Confidence < d.MinConfidence {
		return "", fmt.Errorf("%w: %s scored %.2f", errUndetermined, code, info.Confidence)
	}
	return code, nil
}
