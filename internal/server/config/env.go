package config

import "github.com/caarlos0/env/v11"

// EnvPrefix is prepended to every variable name declared in Config tags.
const EnvPrefix = "GOPHAUTH_"

// parseEnv overlays GOPHAUTH_* environment variables onto config. Unset
// variables leave the current value alone. Malformed values panic, like a
// broken JSON file does.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
