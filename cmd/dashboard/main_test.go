package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zaptest"

	"github.com/ava-labs/transfer-dashboard/pkg/insight"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

const testContract = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

const oneEvent = `{
  "data": [
    {
      "block_number": 100,
      "block_timestamp": 1700000000,
      "transaction_hash": "0xabc",
      "log_index": 0,
      "data": "0x0F4240",
      "topics": [
        "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
        "0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
        "0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
      ]
    }
  ]
}`

// parseServe runs the serve flag set over args and returns what buildConfig made of it.
func parseServe(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg      *Config
		buildErr error
	)
	app := &cli.App{
		Name: "test",
		Commands: []*cli.Command{{
			Name:  "serve",
			Flags: serveFlags(),
			Action: func(c *cli.Context) error {
				cfg, buildErr = buildConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"test", "serve"}, args...)))
	return cfg, buildErr
}

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := parseServe(t, "--contract-address", testContract)
	require.NoError(t, err)

	assert.False(t, cfg.Verbose)
	assert.Equal(t, "https://insight.thirdweb.com", cfg.Insight.BaseURL)
	assert.Equal(t, testContract, cfg.Insight.ContractAddress)
	assert.Equal(t, "Transfer(address,address,uint256)", cfg.Insight.EventSignature)
	assert.Equal(t, 30*time.Second, cfg.Insight.Timeout)
	assert.Equal(t, int32(transfers.DefaultDecimals), cfg.TokenDecimals)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, ":8080", cfg.HTTP.Addr())
	assert.Equal(t, ":9090", cfg.MetricsAddr())
	assert.Zero(t, cfg.RefreshInterval)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Kafka.SASL.Enabled())
	assert.Equal(t, "transfer-dashboard.views", cfg.Kafka.Topic)
}

func TestBuildConfig_Overrides(t *testing.T) {
	cfg, err := parseServe(t,
		"--contract-address", testContract,
		"--client-id", "abc123",
		"--insight-base-url", "http://localhost:1234",
		"--token-decimals", "18",
		"--timezone", "UTC",
		"--http-host", "127.0.0.1",
		"--http-port", "8000",
		"--metrics-host", "127.0.0.1",
		"--metrics-port", "9100",
		"--refresh-interval", "1m",
		"--request-timeout", "5s",
		"--kafka-brokers", "localhost:9092",
		"--kafka-topic", "views",
		"--kafka-sasl-username", "user",
		"--kafka-sasl-password", "secret",
		"--environment", "staging",
		"--region", "us-east-1",
		"--verbose",
	)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.Equal(t, "abc123", cfg.Insight.ClientID)
	assert.Equal(t, "http://localhost:1234", cfg.Insight.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Insight.Timeout)
	assert.Equal(t, int32(18), cfg.TokenDecimals)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "127.0.0.1:8000", cfg.HTTP.Addr())
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr())
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, "views", cfg.Kafka.Topic)
	assert.True(t, cfg.Kafka.SASL.Enabled())
	assert.Equal(t, "SCRAM-SHA-512", cfg.Kafka.SASL.Mechanism)
	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestBuildConfig_EnvironmentConfig(t *testing.T) {
	t.Setenv("INSIGHT_TIMEOUT", "1ms")
	t.Setenv("HTTP_READ_TIMEOUT", "1s")
	t.Setenv("HTTP_WRITE_TIMEOUT", "2s")
	t.Setenv("HTTP_PORT", "8181")
	t.Setenv("KAFKA_BROKERS", "broker:9092")
	t.Setenv("KAFKA_SASL_USERNAME", "user")
	t.Setenv("KAFKA_SASL_PASSWORD", "secret")

	cfg, err := parseServe(t, "--contract-address", testContract)
	require.NoError(t, err)

	assert.Equal(t, time.Millisecond, cfg.Insight.Timeout)
	assert.Equal(t, time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.HTTP.WriteTimeout)
	assert.Equal(t, 8181, cfg.HTTP.Port)
	assert.Equal(t, "broker:9092", cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.SASL.Enabled())
	assert.Equal(t, "SASL_SSL", cfg.Kafka.SASL.SecurityProtocol)
}

func TestBuildConfig_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("INSIGHT_TIMEOUT", "1ms")
	t.Setenv("HTTP_READ_TIMEOUT", "1s")

	cfg, err := parseServe(t,
		"--contract-address", testContract,
		"--request-timeout", "5s",
		"--http-read-timeout", "3s",
	)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Insight.Timeout)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.HTTP.WriteTimeout)
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{
			name:        "negative decimals",
			args:        []string{"--token-decimals", "-1"},
			errContains: "invalid token-decimals",
		},
		{
			name:        "too many decimals",
			args:        []string{"--token-decimals", "79"},
			errContains: "invalid token-decimals",
		},
		{
			name:        "unknown timezone",
			args:        []string{"--timezone", "Mars/Olympus_Mons"},
			errContains: "invalid timezone",
		},
		{
			name:        "negative refresh interval",
			args:        []string{"--refresh-interval", "-1s"},
			errContains: "invalid refresh-interval",
		},
		{
			name:        "http port out of range",
			args:        []string{"--http-port", "70000"},
			errContains: "invalid http-port",
		},
		{
			name:        "empty base url",
			args:        []string{"--insight-base-url", ""},
			errContains: "invalid base url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--contract-address", testContract}, tt.args...)
			cfg, err := parseServe(t, args...)
			require.Error(t, err)
			require.Nil(t, cfg)
			require.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestServe_RequiresContract(t *testing.T) {
	app := &cli.App{
		Name: "test",
		Commands: []*cli.Command{{
			Name:   "serve",
			Flags:  serveFlags(),
			Action: func(*cli.Context) error { return nil },
		}},
	}
	err := app.Run([]string{"test", "serve"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "contract-address")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.env")
	require.NoError(t, os.WriteFile(path, []byte("CONTRACT_ADDRESS="+testContract+"\nVIEW=count\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("CONTRACT_ADDRESS") //nolint:errcheck // test cleanup
		os.Unsetenv("VIEW")             //nolint:errcheck // test cleanup
	})

	var cfg *ShowConfig
	app := &cli.App{
		Name:   "test",
		Flags:  globalFlags(),
		Before: loadEnvFile,
		Commands: []*cli.Command{{
			Name:  "show",
			Flags: showFlags(),
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = buildShowConfig(c)
				return err
			},
		}},
	}
	require.NoError(t, app.Run([]string{"test", "--env-file", path, "show"}))
	require.Equal(t, testContract, cfg.Insight.ContractAddress)
	require.Equal(t, "count", cfg.View)
}

func TestLoadEnvFile_Missing(t *testing.T) {
	app := &cli.App{
		Name:     "test",
		Flags:    globalFlags(),
		Before:   loadEnvFile,
		Commands: []*cli.Command{{Name: "noop", Action: func(*cli.Context) error { return nil }}},
	}
	err := app.Run([]string{"test", "--env-file", filepath.Join(t.TempDir(), "missing.env"), "noop"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to load env file")
}

func TestSelectDefinitions(t *testing.T) {
	defs := views.Definitions(time.UTC, nil)

	all, err := selectDefinitions(defs, "")
	require.NoError(t, err)
	require.Len(t, all, 4)

	one, err := selectDefinitions(defs, "top-wallets")
	require.NoError(t, err)
	require.Len(t, one, 1)
	require.Equal(t, views.KindTopWallets, one[0].Kind)
	require.Equal(t, views.TopWalletsLimit, one[0].Limit)

	_, err = selectDefinitions(defs, "histogram")
	require.ErrorIs(t, err, views.ErrUnknownView)

	_, err = selectDefinitions(defs[:1], "count")
	require.ErrorIs(t, err, views.ErrUnknownView)
}

type fetcherFunc func(ctx context.Context, q insight.Query) ([]insight.Event, error)

func (f fetcherFunc) FetchEvents(ctx context.Context, q insight.Query) ([]insight.Event, error) {
	return f(ctx, q)
}

func TestBoardHealth(t *testing.T) {
	fail := true
	fetcher := fetcherFunc(func(context.Context, insight.Query) ([]insight.Event, error) {
		if fail {
			return nil, insight.ErrNetwork
		}
		return []insight.Event{{
			BlockNumber:     100,
			BlockTimestamp:  1700000000,
			TransactionHash: "0xabc",
			Data:            "0x0F4240",
			Topics: []string{
				"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
				"0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
				"0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			},
		}}, nil
	})
	board, err := views.NewBoard(views.Definitions(time.UTC, nil), fetcher, transfers.DefaultDecoder, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	health := boardHealth(board)

	require.NoError(t, health(), "idle views are healthy")

	require.Error(t, board.RefreshAll(t.Context()))
	err = health()
	require.Error(t, err)
	require.Contains(t, err.Error(), "all views failed")
	require.Contains(t, err.Error(), "failed to fetch events")

	// A single view recovering is enough.
	fail = false
	require.NoError(t, board.Refresh(t.Context(), views.KindRecent))
	require.NoError(t, health())
}

func TestNewBoard(t *testing.T) {
	board, err := newBoard(SourceConfig{
		Insight: insight.Config{
			BaseURL:         "http://localhost",
			ContractAddress: testContract,
			EventSignature:  "Transfer(address,address,uint256)",
		},
		TokenDecimals: 6,
		Location:      time.UTC,
	}, zaptest.NewLogger(t).Sugar(), nil)
	require.NoError(t, err)
	require.Equal(t, []views.Kind{views.KindRecent, views.KindVolume, views.KindCount, views.KindTopWallets}, board.Kinds())

	_, err = newBoard(SourceConfig{
		Insight:       insight.Config{BaseURL: "http://localhost", ContractAddress: testContract, EventSignature: "Transfer()"},
		TokenDecimals: -1,
	}, zaptest.NewLogger(t).Sugar(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to create decoder")
}

func TestShow(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		w.Write([]byte(oneEvent)) //nolint:errcheck // test server
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run([]string{"dashboard", "show",
		"--insight-base-url", srv.URL,
		"--client-id", "test",
		"--contract-address", testContract,
		"--timezone", "UTC",
		"--view", "recent",
	})
	require.NoError(t, err)
	require.Equal(t, "10", gotLimit)
	require.Contains(t, out.String(), "Recent transfers")
	require.Contains(t, out.String(), "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.Contains(t, out.String(), "1.00")
}

func TestShow_RefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run([]string{"dashboard", "show",
		"--insight-base-url", srv.URL,
		"--contract-address", testContract,
		"--view", "count",
	})
	require.Error(t, err)
	require.True(t, errors.Is(err, insight.ErrNetwork))
	require.Contains(t, err.Error(), "failed to refresh views")
	require.Contains(t, out.String(), "failed to fetch events")
}
