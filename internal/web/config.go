package web

import (
	"github.com/caarlos0/env/v11"
)

// Config controls the feed server. Values are read from the environment at
// startup so deployments can be tuned without code changes.
type Config struct {
	Addr    string `env:"GEARBAG_ADDR"     envDefault:":8787"`
	DataDir string `env:"GEARBAG_DATA_DIR" envDefault:""`
	Dev     bool   `env:"GEARBAG_DEV"      envDefault:"false"`
}

// LoadConfigFromEnv loads server configuration and applies defensive
// defaults.
func LoadConfigFromEnv() Config {
	var cfg Config
	_ = env.Parse(&cfg)
	if cfg.Addr == "" {
		cfg.Addr = ":8787"
	}
	return cfg
}
