package config

import (
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
)

// configBuilder accumulates configuration from several sources and merges
// them into a single Config. Sources are applied in registration order;
// later non-zero values win via mergo override merge.
type configBuilder struct {
	steps []func(*configBuilder) error
	cfg   *Config
	err   error
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{cfg: &Config{}}
}

// withDotenv loads an optional .env file into the process environment before
// env parsing. The file path comes from the DOTENV variable; when unset, a
// plain ".env" in the working directory is loaded if it exists. A missing
// file is not an error.
func (b *configBuilder) withDotenv() *configBuilder {
	b.steps = append(b.steps, func(b *configBuilder) error {
		path := os.Getenv("DOTENV")
		if path == "" {
			path = ".env"
		}
		if _, err := os.Stat(path); err != nil {
			return nil
		}
		return godotenv.Load(path)
	})
	return b
}

// withEnv parses the process environment into a fresh Config and merges it
// over the accumulated one.
func (b *configBuilder) withEnv() *configBuilder {
	b.steps = append(b.steps, func(b *configBuilder) error {
		envCfg := &Config{}
		if err := parseEnv(envCfg); err != nil {
			return err
		}
		return mergo.Merge(b.cfg, envCfg, mergo.WithOverride)
	})
	return b
}

// build runs the registered steps in order and validates the result.
func (b *configBuilder) build() (*Config, error) {
	for _, step := range b.steps {
		if err := step(b); err != nil {
			return nil, err
		}
	}

	if err := b.cfg.validate(); err != nil {
		return nil, err
	}

	return b.cfg, nil
}
