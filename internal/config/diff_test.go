package config_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/MrWong99/voicewriter/internal/config"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *config.Config)
		want   config.ConfigDiff
	}{
		{
			name:   "no changes",
			mutate: func(*config.Config) {},
			want:   config.ConfigDiff{},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			want:   config.ConfigDiff{LogLevelChanged: true, NewLogLevel: config.LogDebug},
		},
		{
			name:   "default style",
			mutate: func(c *config.Config) { c.Citation.DefaultStyle = "MLA" },
			want:   config.ConfigDiff{DefaultStyleChanged: true, NewDefaultStyle: "MLA"},
		},
		{
			name:   "phonetic commands",
			mutate: func(c *config.Config) { c.Dictation.PhoneticCommands = true },
			want: config.ConfigDiff{
				PhoneticChanged:      true,
				NewPhonetic:          true,
				NewPhoneticThreshold: config.DefaultPhoneticThreshold,
			},
		},
		{
			name:   "listen address needs restart",
			mutate: func(c *config.Config) { c.Server.ListenAddr = ":1234" },
			want:   config.ConfigDiff{RestartRequired: []string{"server"}},
		},
		{
			name: "providers and mcp need restart",
			mutate: func(c *config.Config) {
				c.Providers.LLM = config.ProviderEntry{Name: "openai"}
				off := false
				c.MCP.Enabled = &off
			},
			want: config.ConfigDiff{RestartRequired: []string{"providers", "mcp"}},
		},
		{
			name: "mixed",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogWarn
				c.Citation.MaxResults = 9
				c.Touchup.Replacements = []config.ReplacementConfig{{Word: "a", With: "b"}}
				c.Dictation.Language = "de-DE"
			},
			want: config.ConfigDiff{
				LogLevelChanged: true,
				NewLogLevel:     config.LogWarn,
				RestartRequired: []string{"citation", "touchup", "dictation"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			updated := config.Default()
			tc.mutate(updated)

			got := config.Diff(old, updated)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Diff mismatch (-want +got):\n%s", diff)
			}
			if want := tc.want.LogLevelChanged || tc.want.DefaultStyleChanged || tc.want.PhoneticChanged; got.Changed() != want {
				t.Errorf("Changed() = %v, want %v", got.Changed(), want)
			}
		})
	}
}
