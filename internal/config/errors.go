package config

import "fmt"

// ConfigError reports a fatal problem in the run specification. The
// document is rejected before any experiment work starts.
type ConfigError struct {
	Section string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Section == "" {
		return "config error: " + e.Reason
	}
	return fmt.Sprintf("config error in %s: %s", e.Section, e.Reason)
}
