package insight

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the configuration for the events API client.
type Config struct {
	BaseURL         string        `env:"INSIGHT_BASE_URL" envDefault:"https://insight.thirdweb.com"`
	ClientID        string        `env:"INSIGHT_CLIENT_ID"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	EventSignature  string        `env:"EVENT_SIGNATURE"  envDefault:"Transfer(address,address,uint256)"`
	Timeout         time.Duration `env:"INSIGHT_TIMEOUT"  envDefault:"30s"` // 0 disables the client timeout
}

// LoadConfig loads the events API configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse insight config: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields without which no request URL can be built.
// A missing client ID is deliberately not rejected: the API answers it with a 4xx,
// which surfaces as a network error on the first refresh.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("invalid base url: must not be empty")
	}
	if c.ContractAddress == "" {
		return errors.New("invalid contract address: must not be empty")
	}
	if c.EventSignature == "" {
		return errors.New("invalid event signature: must not be empty")
	}
	return nil
}
