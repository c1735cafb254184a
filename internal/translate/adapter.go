package translate

import (
	"context"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/fathima-sithara/dm-service/internal/metrics"
	"go.uber.org/zap"
)

// Adapter wraps a Translator with the message pipeline's policy: it never
// fails, and hands back the original text when the provider does.
type Adapter struct {
	tr          Translator
	defaultLang string
	log         *zap.Logger
	detect      func(string) string
}

func NewAdapter(tr Translator, defaultLang string, logger *zap.Logger) *Adapter {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return &Adapter{tr: tr, defaultLang: NormalizeTag(defaultLang), log: logger, detect: DetectSource}
}

func (a *Adapter) Translate(ctx context.Context, text, targetLang string) string {
	target := NormalizeTag(targetLang)
	if target == "" {
		target = a.defaultLang
	}

	// local detection only short-circuits; the provider detects the source
	if a.detect(text) == target {
		metrics.Translations.WithLabelValues("skipped").Inc()
		return text
	}

	out, err := a.tr.Translate(ctx, text, AutoSource, target)
	if err != nil || strings.TrimSpace(out) == "" {
		a.log.Warn("translation degraded to original text",
			zap.String("target", target), zap.Error(err))
		metrics.Translations.WithLabelValues("degraded").Inc()
		return text
	}
	metrics.Translations.WithLabelValues("ok").Inc()
	return out
}

// AutoSource asks the provider to detect the source language itself.
const AutoSource = "auto"

// DetectSource returns the ISO 639-1 code of text when detection is
// reliable, AutoSource otherwise.
func DetectSource(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return AutoSource
	}
	if code := info.Lang.Iso6391(); code != "" {
		return code
	}
	return AutoSource
}
