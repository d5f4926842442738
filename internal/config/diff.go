package config

import "reflect"

// ConfigDiff describes what changed between two configs. Hot-reloadable
// fields carry their new value; everything else is listed in
// RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultStyleChanged bool
	NewDefaultStyle     string

	PhoneticChanged      bool
	NewPhonetic          bool
	NewPhoneticThreshold float64

	// RestartRequired names the top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Changed reports whether any hot-reloadable field changed.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultStyleChanged || d.PhoneticChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Citation.DefaultStyle != new.Citation.DefaultStyle {
		d.DefaultStyleChanged = true
		d.NewDefaultStyle = new.Citation.DefaultStyle
	}
	if old.Dictation.PhoneticCommands != new.Dictation.PhoneticCommands ||
		old.Dictation.PhoneticThreshold != new.Dictation.PhoneticThreshold {
		d.PhoneticChanged = true
		d.NewPhonetic = new.Dictation.PhoneticCommands
		d.NewPhoneticThreshold = new.Dictation.PhoneticThreshold
	}

	// Compare the remaining fields with the hot-reloadable ones masked out.
	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	if !reflect.DeepEqual(oldServer, newServer) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	oldCitation, newCitation := old.Citation, new.Citation
	oldCitation.DefaultStyle, newCitation.DefaultStyle = "", ""
	if oldCitation != newCitation {
		d.RestartRequired = append(d.RestartRequired, "citation")
	}
	if !reflect.DeepEqual(old.Touchup, new.Touchup) {
		d.RestartRequired = append(d.RestartRequired, "touchup")
	}
	if old.Dictation.Language != new.Dictation.Language {
		d.RestartRequired = append(d.RestartRequired, "dictation")
	}
	if !reflect.DeepEqual(old.MCP, new.MCP) {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}

	return d
}
