package main

import (
	"fmt"
	"log/slog"
	"strconv"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/voicewriter/internal/config"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography/crossref"
	"github.com/MrWong99/voicewriter/pkg/provider/bibliography/semanticscholar"
	"github.com/MrWong99/voicewriter/pkg/provider/llm"
	"github.com/MrWong99/voicewriter/pkg/provider/llm/anyllm"
	"github.com/MrWong99/voicewriter/pkg/provider/llm/openai"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
	"github.com/MrWong99/voicewriter/pkg/provider/stt/deepgram"
	"github.com/MrWong99/voicewriter/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation package.
func registerBuiltinProviders(reg *config.Registry, version string) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	// openai goes through the official SDK so that organisation and retry
	// settings are honoured.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if org := entry.Option("organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		if n, ok := optInt(entry, "max_retries"); ok {
			opts = append(opts, openai.WithMaxRetries(n))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// Every other backend shares the any-llm-go pattern: optional APIKey and
	// optional BaseURL. Local servers such as ollama only need the BaseURL.
	for _, name := range anyllm.Backends() {
		if name == "openai" {
			continue
		}
		reg.RegisterLLM(name, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(name, entry.Model, opts...)
		})
	}

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if rate, ok := optInt(entry, "sample_rate"); ok {
			opts = append(opts, deepgram.WithSampleRate(rate))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := entry.Option("language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if rate, ok := optInt(entry, "sample_rate"); ok {
			opts = append(opts, whisper.WithSampleRate(rate))
		}
		if ms, ok := optInt(entry, "silence_threshold_ms"); ok {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		if ms, ok := optInt(entry, "max_buffer_ms"); ok {
			opts = append(opts, whisper.WithMaxBufferDurationMs(ms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	// ── Bibliography ──────────────────────────────────────────────────────────

	reg.RegisterBibliography("crossref", func(entry config.ProviderEntry) (bibliography.Provider, error) {
		opts := []crossref.Option{crossref.WithUserAgent("voicewriter/" + version)}
		if entry.BaseURL != "" {
			opts = append(opts, crossref.WithBaseURL(entry.BaseURL))
		}
		if mailto := entry.Option("mailto"); mailto != "" {
			opts = append(opts, crossref.WithMailto(mailto))
		}
		if entry.RateLimit > 0 {
			opts = append(opts, crossref.WithRateLimit(entry.RateLimit))
		}
		return crossref.New(opts...), nil
	})

	reg.RegisterBibliography("semanticscholar", func(entry config.ProviderEntry) (bibliography.Provider, error) {
		var opts []semanticscholar.Option
		if entry.APIKey != "" {
			opts = append(opts, semanticscholar.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, semanticscholar.WithBaseURL(entry.BaseURL))
		}
		if entry.RateLimit > 0 {
			opts = append(opts, semanticscholar.WithRateLimit(entry.RateLimit))
		}
		return semanticscholar.New(opts...), nil
	})

	for kind, names := range reg.Names() {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// optInt reads an integer option. YAML decodes numbers as int, but quoted
// values are accepted too.
func optInt(entry config.ProviderEntry, key string) (int, bool) {
	switch v := entry.Options[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("ignoring non-numeric provider option", "provider", entry.Name, "option", key, "value", v)
			return 0, false
		}
		return n, true
	case nil:
		return 0, false
	default:
		slog.Warn("ignoring provider option", "provider", entry.Name, "option", key, "type", fmt.Sprintf("%T", v))
		return 0, false
	}
}
