package document

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	minDetectWords      = 3
	minDetectConfidence = 0.5
)

// DetectLanguage guesses the language of text; short or low-confidence input falls back to English.
func DetectLanguage(text string) language.Tag {
	if len(strings.Fields(text)) < minDetectWords {
		return language.English
	}
	info := whatlanggo.Detect(text)
	if info.Confidence < minDetectConfidence {
		return language.English
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil || tag == language.Und {
		return language.English
	}
	return tag
}

// LanguageName renders tag in English, e.g. "French".
func LanguageName(tag language.Tag) string {
	name := display.English.Languages().Name(tag)
	if name == "" {
		return "English"
	}
	return name
}
