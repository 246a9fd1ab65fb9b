package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	batcher "github.com/branched-services/go-batcher"
	"github.com/branched-services/go-batcher/substrate"
)

const envPrefix = "BATCHER"

// Config keys. Each is settable from batcher.yaml, a BATCHER_* environment
// variable or the matching flag.
const (
	keyRPCURL          = "rpc.url"
	keyCodec           = "codec"
	keyContractABI     = "contract.abi"
	keyContractCode    = "contract.code"
	keyContractAddress = "contract.address"
	keySafetyFactor    = "tx.safety_factor"
	keyToleranceBlocks = "tx.tolerance_blocks"
	keyWaitFinalized   = "tx.wait_finalized"
	keyTimeout         = "tx.timeout"
	keyLogLevel        = "log.level"
	keyMetricsNS       = "metrics.namespace"
	keyMetricsListen   = "metrics.listen"
)

// cliConfig is the resolved configuration for one command run.
type cliConfig struct {
	RPCURL          string
	Codec           string
	ContractABI     string
	ContractCode    string
	ContractAddress string
	SafetyFactor    float64
	ToleranceBlocks uint64
	WaitFinalized   bool
	Timeout         time.Duration
	LogLevel        string
	MetricsNS       string
	MetricsListen   string
}

// app carries state shared by the subcommands.
type app struct {
	v      *viper.Viper
	cfg    cliConfig
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "batcher",
		Short:         "Deploy and call contracts with dry-run cost estimation and batched submission",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to config file (default ./batcher.yaml if present)")
	flags.String("rpc-url", "ws://127.0.0.1:9944", "Node JSON-RPC endpoint")
	flags.String("codec", "", "Registered SCALE codec name")
	flags.String("abi", "", "Path to the contract ABI JSON")
	flags.String("code", "", "Path to the contract code blob")
	flags.String("contract", "", "Contract address (SS58 or 0x hex)")
	flags.Float64("safety-factor", float64(batcher.DefaultSafetyFactor), "Multiplier applied to measured weight and deposits")
	flags.Uint64("tolerance-blocks", batcher.DefaultToleranceBlocks, "Blocks the block weight budget is spread across")
	flags.Bool("finalized", false, "Wait for finality instead of block inclusion")
	flags.Duration("timeout", 2*time.Minute, "Deadline for the whole command")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("metrics-namespace", "", "Enable Prometheus metrics under this namespace")
	flags.String("metrics-listen", "", "Serve Prometheus metrics on this address")

	bindings := map[string]string{
		keyRPCURL:          "rpc-url",
		keyCodec:           "codec",
		keyContractABI:     "abi",
		keyContractCode:    "code",
		keyContractAddress: "contract",
		keySafetyFactor:    "safety-factor",
		keyToleranceBlocks: "tolerance-blocks",
		keyWaitFinalized:   "finalized",
		keyTimeout:         "timeout",
		keyLogLevel:        "log-level",
		keyMetricsNS:       "metrics-namespace",
		keyMetricsListen:   "metrics-listen",
	}
	for key, flag := range bindings {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(
		a.snapshotCmd(),
		a.intervalCmd(),
		a.deployCmd(),
		a.callCmd(),
	)
	return rootCmd
}

// load reads the config file and environment, then builds the logger.
func (a *app) load(configFile string) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if configFile != "" {
		a.v.SetConfigFile(configFile)
	} else {
		a.v.SetConfigName("batcher")
		a.v.AddConfigPath(".")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	a.cfg = cliConfig{
		RPCURL:          a.v.GetString(keyRPCURL),
		Codec:           a.v.GetString(keyCodec),
		ContractABI:     a.v.GetString(keyContractABI),
		ContractCode:    a.v.GetString(keyContractCode),
		ContractAddress: a.v.GetString(keyContractAddress),
		SafetyFactor:    a.v.GetFloat64(keySafetyFactor),
		ToleranceBlocks: a.v.GetUint64(keyToleranceBlocks),
		WaitFinalized:   a.v.GetBool(keyWaitFinalized),
		Timeout:         a.v.GetDuration(keyTimeout),
		LogLevel:        a.v.GetString(keyLogLevel),
		MetricsNS:       a.v.GetString(keyMetricsNS),
		MetricsListen:   a.v.GetString(keyMetricsListen),
	}

	level, err := zerolog.ParseLevel(a.cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.cfg.LogLevel, err)
	}
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return nil
}

// context returns the command context bounded by the configured timeout.
func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), a.cfg.Timeout)
}

// codec resolves the configured codec. required reports whether the
// command cannot run without one.
func (a *app) codec(required bool) (substrate.Codec, error) {
	if a.cfg.Codec == "" {
		if required {
			return nil, fmt.Errorf("%w: set --codec (available: %v)", substrate.ErrNoCodec, substrate.Codecs())
		}
		return nil, nil
	}
	return substrate.LookupCodec(a.cfg.Codec)
}

// dial connects to the node and returns a traced client.
func (a *app) dial(ctx context.Context, codec substrate.Codec) (*substrate.Client, batcher.ChainClient, error) {
	client, err := substrate.Dial(ctx, a.cfg.RPCURL, codec, substrate.WithLogger(a.logger))
	if err != nil {
		return nil, nil, err
	}
	return client, batcher.WithTracing(client), nil
}

// options returns the library options derived from the config.
func (a *app) options() []batcher.Option {
	opts := []batcher.Option{
		batcher.WithLogger(a.logger),
		batcher.WithSafetyFactor(batcher.SafetyFactor(a.cfg.SafetyFactor)),
		batcher.WithToleranceBlocks(a.cfg.ToleranceBlocks),
	}
	if a.cfg.WaitFinalized {
		opts = append(opts, batcher.WithFinalized())
	}
	if a.cfg.MetricsNS != "" {
		opts = append(opts, batcher.WithMetrics(batcher.PrometheusMetrics(a.cfg.MetricsNS)))
		a.serveMetrics()
	}
	return opts
}

func (a *app) serveMetrics() {
	if a.cfg.MetricsListen == "" {
		return
	}
	srv := &http.Server{Addr: a.cfg.MetricsListen, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	a.logger.Info().Str("addr", a.cfg.MetricsListen).Msg("serving metrics")
}
