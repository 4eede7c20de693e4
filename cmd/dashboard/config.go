package main

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/transfer-dashboard/pkg/api"
	"github.com/ava-labs/transfer-dashboard/pkg/insight"
	"github.com/ava-labs/transfer-dashboard/pkg/queue"
)

// maxTokenDecimals is the number of decimal digits of the largest uint256.
const maxTokenDecimals = 78

// SourceConfig holds the settings shared by every command that reads events.
type SourceConfig struct {
	Verbose       bool
	Insight       insight.Config
	TokenDecimals int32
	Location      *time.Location
}

// Config holds all configuration for the serve command
type Config struct {
	SourceConfig

	HTTP            api.Config
	RefreshInterval time.Duration
	Kafka           queue.KafkaConfig

	// Metrics settings
	MetricsHost string
	MetricsPort int
	Environment string
	Region      string
}

// ShowConfig holds all configuration for the show command
type ShowConfig struct {
	SourceConfig

	View string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort(c.MetricsHost, strconv.Itoa(c.MetricsPort))
}

// buildConfig builds a Config from environment-loaded package configs, overridden by
// any CLI flag that was set
func buildConfig(c *cli.Context) (*Config, error) {
	src, err := buildSourceConfig(c)
	if err != nil {
		return nil, err
	}

	httpCfg, err := api.LoadConfig()
	if err != nil {
		return nil, err
	}
	setString(c, "http-host", &httpCfg.Host)
	setInt(c, "http-port", &httpCfg.Port)
	setDuration(c, "http-read-timeout", &httpCfg.ReadTimeout)
	setDuration(c, "http-write-timeout", &httpCfg.WriteTimeout)

	kafkaCfg, err := queue.LoadKafkaConfig()
	if err != nil {
		return nil, err
	}
	setString(c, "kafka-brokers", &kafkaCfg.Brokers)
	setString(c, "kafka-client-id", &kafkaCfg.ClientID)
	setString(c, "kafka-topic", &kafkaCfg.Topic)
	setString(c, "kafka-sasl-username", &kafkaCfg.SASL.Username)
	setString(c, "kafka-sasl-password", &kafkaCfg.SASL.Password)
	setString(c, "kafka-sasl-mechanism", &kafkaCfg.SASL.Mechanism)
	setString(c, "kafka-security-protocol", &kafkaCfg.SASL.SecurityProtocol)

	if c.Duration("refresh-interval") < 0 {
		return nil, fmt.Errorf("invalid refresh-interval: must not be negative, got %s", c.Duration("refresh-interval"))
	}
	if err := validatePort("http-port", httpCfg.Port); err != nil {
		return nil, err
	}
	if err := validatePort("metrics-port", c.Int("metrics-port")); err != nil {
		return nil, err
	}

	return &Config{
		SourceConfig:    src,
		HTTP:            httpCfg,
		RefreshInterval: c.Duration("refresh-interval"),
		Kafka:           kafkaCfg,
		MetricsHost:     c.String("metrics-host"),
		MetricsPort:     c.Int("metrics-port"),
		Environment:     c.String("environment"),
		Region:          c.String("region"),
	}, nil
}

// buildShowConfig builds a ShowConfig from CLI context flags
func buildShowConfig(c *cli.Context) (*ShowConfig, error) {
	src, err := buildSourceConfig(c)
	if err != nil {
		return nil, err
	}
	return &ShowConfig{
		SourceConfig: src,
		View:         c.String("view"),
	}, nil
}

func buildSourceConfig(c *cli.Context) (SourceConfig, error) {
	decimals := c.Int("token-decimals")
	if decimals < 0 || decimals > maxTokenDecimals {
		return SourceConfig{}, fmt.Errorf("invalid token-decimals: must be between 0 and %d, got %d", maxTokenDecimals, decimals)
	}

	loc, err := time.LoadLocation(c.String("timezone"))
	if err != nil {
		return SourceConfig{}, fmt.Errorf("invalid timezone %q: %w", c.String("timezone"), err)
	}

	ic, err := insight.LoadConfig()
	if err != nil {
		return SourceConfig{}, err
	}
	setString(c, "insight-base-url", &ic.BaseURL)
	setString(c, "client-id", &ic.ClientID)
	setString(c, "contract-address", &ic.ContractAddress)
	setString(c, "event-signature", &ic.EventSignature)
	setDuration(c, "request-timeout", &ic.Timeout)
	if err := ic.Validate(); err != nil {
		return SourceConfig{}, fmt.Errorf("failed to build insight config: %w", err)
	}

	return SourceConfig{
		Verbose:       c.Bool("verbose"),
		Insight:       ic,
		TokenDecimals: int32(decimals),
		Location:      loc,
	}, nil
}

func validatePort(name string, port int) error {
	if port < 0 || port > math.MaxUint16 {
		return fmt.Errorf("invalid %s: must be between 0 and %d, got %d", name, math.MaxUint16, port)
	}
	return nil
}

// setString, setInt and setDuration overwrite an environment-loaded value with the flag's
// value when the flag was given on the command line or through one of its EnvVars.
func setString(c *cli.Context, name string, dst *string) {
	if c.IsSet(name) {
		*dst = c.String(name)
	}
}

func setInt(c *cli.Context, name string, dst *int) {
	if c.IsSet(name) {
		*dst = c.Int(name)
	}
}

func setDuration(c *cli.Context, name string, dst *time.Duration) {
	if c.IsSet(name) {
		*dst = c.Duration(name)
	}
}
