// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the voicewriter server.
package config

import (
	"time"

	"github.com/MrWong99/voicewriter/internal/touchup"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr        = ":8080"
	DefaultCitationStyle     = "APA"
	DefaultMaxResults        = 5
	DefaultLookupTimeout     = 10 * time.Second
	DefaultTouchupTimeout    = 15 * time.Second
	DefaultLanguage          = "en-US"
	DefaultPhoneticThreshold = 0.70
	DefaultMCPPath           = "/mcp"
)

// DefaultBibliography is the lookup chain used when none is configured:
// Crossref first, Semantic Scholar as fallback.
var DefaultBibliography = []ProviderEntry{
	{Name: "crossref"},
	{Name: "semanticscholar"},
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Citation  CitationConfig  `yaml:"citation"`
	Touchup   TouchupConfig   `yaml:"touchup"`
	Dictation DictationConfig `yaml:"dictation"`
	MCP       MCPConfig       `yaml:"mcp"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on.
	ListenAddr string `yaml:"listen_addr"`

	LogLevel LogLevel `yaml:"log_level"`

	// LogFile, when set, receives a JSON copy of every log record.
	LogFile string `yaml:"log_file"`

	// TLS enables HTTPS. When nil the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds PEM file paths.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the backends registered in a [Registry].
type ProvidersConfig struct {
	// LLM backs text improvement. Empty means local rules only.
	LLM ProviderEntry `yaml:"llm"`

	// LLMFallbacks are tried in order when LLM fails.
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`

	// STT selects server-side speech recognition. Empty means the browser's
	// own recognizer relays results over the dictation socket.
	STT ProviderEntry `yaml:"stt"`

	// STTFallbacks are tried in order when STT cannot open a session.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// Bibliography is the ordered lookup chain. Empty selects
	// [DefaultBibliography].
	Bibliography []ProviderEntry `yaml:"bibliography"`
}

// ProviderEntry is the configuration block shared by all provider kinds.
// Name selects the constructor in the [Registry].
type ProviderEntry struct {
	Name    string `yaml:"name"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	// RateLimit caps requests per second. Zero keeps the provider default.
	RateLimit float64 `yaml:"rate_limit"`

	// Options holds provider-specific values (e.g. crossref "mailto").
	Options map[string]any `yaml:"options"`
}

// Option returns the string option key, or "" when absent or not a string.
func (e ProviderEntry) Option(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// CitationConfig tunes lookup and formatting.
type CitationConfig struct {
	DefaultStyle  string        `yaml:"default_style"`
	MaxResults    int           `yaml:"max_results"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// TouchupConfig tunes text improvement.
type TouchupConfig struct {
	Timeout time.Duration `yaml:"timeout"`

	// Replacements overrides the built-in colloquialism list.
	Replacements []ReplacementConfig `yaml:"replacements"`
}

// ReplacementConfig is one whole-word substitution.
type ReplacementConfig struct {
	Word string `yaml:"word"`
	With string `yaml:"with"`
}

// Rules converts the configured replacements into touch-up rules. No
// replacements yields the built-in defaults.
func (t TouchupConfig) Rules() *touchup.Rules {
	reps := make([]touchup.Replacement, 0, len(t.Replacements))
	for _, r := range t.Replacements {
		reps = append(reps, touchup.Replacement{Word: r.Word, With: r.With})
	}
	return touchup.NewRules(reps)
}

// DictationConfig tunes speech capture and command recognition.
type DictationConfig struct {
	Language string `yaml:"language"`

	// PhoneticCommands lets sound-alike words such as "site" start a
	// citation command.
	PhoneticCommands bool `yaml:"phonetic_commands"`

	PhoneticThreshold float64 `yaml:"phonetic_threshold"`
}

// MCPConfig controls the Model Context Protocol tool server.
type MCPConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// IsEnabled reports whether the MCP endpoint should be served.
func (m MCPConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if len(c.Providers.Bibliography) == 0 {
		c.Providers.Bibliography = append([]ProviderEntry(nil), DefaultBibliography...)
	}
	if c.Citation.DefaultStyle == "" {
		c.Citation.DefaultStyle = DefaultCitationStyle
	}
	if c.Citation.MaxResults == 0 {
		c.Citation.MaxResults = DefaultMaxResults
	}
	if c.Citation.LookupTimeout == 0 {
		c.Citation.LookupTimeout = DefaultLookupTimeout
	}
	if c.Touchup.Timeout == 0 {
		c.Touchup.Timeout = DefaultTouchupTimeout
	}
	if c.Dictation.Language == "" {
		c.Dictation.Language = DefaultLanguage
	}
	if c.Dictation.PhoneticThreshold == 0 {
		c.Dictation.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if c.MCP.Path == "" {
		c.MCP.Path = DefaultMCPPath
	}
}

// Default returns a Config with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
