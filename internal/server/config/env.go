package config

import "github.com/caarlos0/env/v11"

// parseEnv overlays Config with any variables named in its env tags.
// Unset variables leave the current value untouched. Malformed values
// (e.g. a non-numeric BCRYPT_COST) cause a panic, like a broken JSON file.
func parseEnv(config *Config) {
	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
