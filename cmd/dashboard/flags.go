package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

// globalFlags returns the flags accepted before any command.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "env-file",
			Usage:   "Load environment variables from a dotenv file before parsing command flags",
			EnvVars: []string{"ENV_FILE"},
		},
	}
}

// sourceFlags returns the flags shared by every command that talks to the events API.
func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "insight-base-url",
			Usage:   "Base URL of the events API",
			EnvVars: []string{"INSIGHT_BASE_URL"},
			Value:   "https://insight.thirdweb.com",
		},
		&cli.StringFlag{
			Name:    "client-id",
			Aliases: []string{"k"},
			Usage:   "Client identifier substituted into every events API request",
			EnvVars: []string{"INSIGHT_CLIENT_ID"},
		},
		&cli.StringFlag{
			Name:     "contract-address",
			Aliases:  []string{"a"},
			Usage:    "Address of the ERC-20 contract to watch",
			EnvVars:  []string{"CONTRACT_ADDRESS"},
			Required: true,
		},
		&cli.StringFlag{
			Name:    "event-signature",
			Usage:   "Event signature to request from the events API",
			EnvVars: []string{"EVENT_SIGNATURE"},
			Value:   "Transfer(address,address,uint256)",
		},
		&cli.IntFlag{
			Name:    "token-decimals",
			Usage:   "Number of decimals used to scale raw token amounts",
			EnvVars: []string{"TOKEN_DECIMALS"},
			Value:   transfers.DefaultDecimals,
		},
		&cli.StringFlag{
			Name:    "timezone",
			Aliases: []string{"tz"},
			Usage:   "IANA time zone used for minute labels and timestamps",
			EnvVars: []string{"TIMEZONE"},
			Value:   "Local",
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "Timeout for one events API request (0 disables it)",
			EnvVars: []string{"INSIGHT_TIMEOUT", "REQUEST_TIMEOUT"},
			Value:   30 * time.Second,
		},
	}
}

// serveFlags returns all CLI flags for the serve command
func serveFlags() []cli.Flag {
	return append(sourceFlags(),
		&cli.StringFlag{
			Name:    "http-host",
			Usage:   "Host for the API server (empty for all interfaces)",
			EnvVars: []string{"HTTP_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "http-port",
			Usage:   "Port for the API server",
			EnvVars: []string{"HTTP_PORT"},
			Value:   8080,
		},
		&cli.DurationFlag{
			Name:    "http-read-timeout",
			Usage:   "Maximum duration for reading an API request",
			EnvVars: []string{"HTTP_READ_TIMEOUT"},
			Value:   30 * time.Second,
		},
		&cli.DurationFlag{
			Name:    "http-write-timeout",
			Usage:   "Maximum duration for writing an API response",
			EnvVars: []string{"HTTP_WRITE_TIMEOUT"},
			Value:   60 * time.Second,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.DurationFlag{
			Name:    "refresh-interval",
			Aliases: []string{"i"},
			Usage:   "Refresh every view on this interval (0 refreshes only on request)",
			EnvVars: []string{"REFRESH_INTERVAL"},
			Value:   0,
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers for snapshot export (export is disabled when empty)",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Usage:   "Kafka topic receiving view snapshots",
			EnvVars: []string{"KAFKA_TOPIC"},
			Value:   "transfer-dashboard.views",
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "Kafka client ID",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "transfer-dashboard",
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-username",
			Usage:   "SASL username for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_USERNAME"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-password",
			Usage:   "SASL password for Kafka authentication",
			EnvVars: []string{"KAFKA_SASL_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "kafka-sasl-mechanism",
			Usage:   "SASL mechanism (SCRAM-SHA-256, SCRAM-SHA-512, or PLAIN)",
			EnvVars: []string{"KAFKA_SASL_MECHANISM"},
			Value:   "SCRAM-SHA-512",
		},
		&cli.StringFlag{
			Name:    "kafka-security-protocol",
			Usage:   "Security protocol (SASL_SSL or SASL_PLAINTEXT)",
			EnvVars: []string{"KAFKA_SECURITY_PROTOCOL"},
			Value:   "SASL_SSL",
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region label for metrics (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
	)
}

// showFlags returns all CLI flags for the show command
func showFlags() []cli.Flag {
	return append(sourceFlags(),
		&cli.StringFlag{
			Name:    "view",
			Usage:   "Render only this view (recent, volume, count or top-wallets)",
			EnvVars: []string{"VIEW"},
		},
	)
}
