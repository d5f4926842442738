package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// [Validate] warns about names outside this list.
var ValidProviderNames = map[string][]string{
	"llm":          {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"stt":          {"deepgram", "whisper", "browser"},
	"bibliography": {"crossref", "semanticscholar"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// from the environment, applies defaults and validates the result. An empty
// document yields the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv replaces every ${VAR} in data with the value of the environment
// variable VAR. Unset variables expand to the empty string. A bare $VAR is
// left alone so that literal dollar signs survive.
func ExpandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// LoadDotEnv loads KEY=value pairs from each existing file in paths into the
// process environment. Missing files are skipped; variables already set in
// the environment win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load env file %q: %w", p, err)
		}
		slog.Debug("loaded env file", "path", p)
	}
	return nil
}

// Validate checks that cfg contains a coherent set of values. It expects
// defaults to be applied and returns all failures joined together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("llm", fb.Name)
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	validateProviderName("stt", cfg.Providers.STT.Name)
	for i, fb := range cfg.Providers.STTFallbacks {
		switch fb.Name {
		case "":
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is required", i))
			continue
		case "browser":
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d]: browser recognition cannot be a fallback", i))
			continue
		}
		validateProviderName("stt", fb.Name)
	}
	if n := cfg.Providers.STT.Name; len(cfg.Providers.STTFallbacks) > 0 && (n == "" || n == "browser") {
		errs = append(errs, errors.New("providers.stt_fallbacks requires a server-side providers.stt"))
	}

	seen := make(map[string]int, len(cfg.Providers.Bibliography))
	for i, b := range cfg.Providers.Bibliography {
		prefix := fmt.Sprintf("providers.bibliography[%d]", i)
		if b.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := seen[b.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of providers.bibliography[%d]", prefix, b.Name, prev))
		}
		seen[b.Name] = i
		if b.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("%s.rate_limit must not be negative", prefix))
		}
		validateProviderName("bibliography", b.Name)
	}

	if cfg.Citation.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("citation.max_results %d must not be negative", cfg.Citation.MaxResults))
	}
	if cfg.Citation.LookupTimeout < 0 {
		errs = append(errs, fmt.Errorf("citation.lookup_timeout %s must not be negative", cfg.Citation.LookupTimeout))
	}
	if strings.TrimSpace(cfg.Citation.DefaultStyle) == "" && cfg.Citation.DefaultStyle != "" {
		errs = append(errs, errors.New("citation.default_style must not be blank"))
	}

	if cfg.Touchup.Timeout < 0 {
		errs = append(errs, fmt.Errorf("touchup.timeout %s must not be negative", cfg.Touchup.Timeout))
	}
	for i, r := range cfg.Touchup.Replacements {
		if strings.TrimSpace(r.Word) == "" {
			errs = append(errs, fmt.Errorf("touchup.replacements[%d].word is required", i))
		}
	}

	if t := cfg.Dictation.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("dictation.phonetic_threshold %.2f is out of range [0, 1]", t))
	}

	if cfg.MCP.Path != "" && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not listed in
// [ValidProviderNames] for kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
