package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// SignerServe configures the `gm signer serve` process.
type SignerServe struct {
	Listen       string        `env:"GASMORPH_SIGNER_LISTEN" envDefault:"127.0.0.1:8551"`
	KeyRef       string        `env:"GASMORPH_SIGNER_KEY_REF" envDefault:"gasmorph://signer/key"`
	JWTSecretRef string        `env:"GASMORPH_SIGNER_JWT_SECRET_REF" envDefault:"gasmorph://signer/jwt_secret"`
	ReadTimeout  time.Duration `env:"GASMORPH_SIGNER_READ_TIMEOUT" envDefault:"10s"`
}

func LoadSignerServe() (SignerServe, error) {
	var cfg SignerServe
	if err := ParseEnv(&cfg); err != nil {
		return SignerServe{}, err
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
