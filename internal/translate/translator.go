package translate

import (
	"context"
	"strings"
)

// Translator is a machine translation backend. Language codes are ISO 639-1;
// source may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Nop returns text unchanged. Used when no provider is configured.
type Nop struct{}

func (Nop) Translate(_ context.Context, text, _, _ string) (string, error) {
	return text, nil
}

// NormalizeTag reduces a BCP 47 style tag to its base language:
// "fr-CA" -> "fr", "EN" -> "en".
func NormalizeTag(tag string) string {
	lang := strings.ToLower(strings.TrimSpace(tag))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}
