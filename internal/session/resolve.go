package session

import "github.com/matheus3301/microchat/internal/config"

// DefaultSessionName is used when neither a flag nor the config names one.
const DefaultSessionName = "main"

// Resolve picks the session a binary works on: the --session flag wins,
// then default_session from the global config file, then "main". A config
// file that is missing or broken counts as unset.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
