package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/arbcommand/arbcommand/internal/alerts"
	"github.com/arbcommand/arbcommand/internal/alloc"
	"github.com/arbcommand/arbcommand/internal/config"
	"github.com/arbcommand/arbcommand/internal/engine"
	"github.com/arbcommand/arbcommand/internal/fx"
	"github.com/arbcommand/arbcommand/internal/httpapi"
	"github.com/arbcommand/arbcommand/internal/hub"
	"github.com/arbcommand/arbcommand/internal/market"
	"github.com/arbcommand/arbcommand/internal/scheduler"
	"github.com/arbcommand/arbcommand/internal/venues"
	"github.com/arbcommand/arbcommand/internal/wallet"
)

const (
	appName = "arbcommand"
	version = "v0.1.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Real-time cross-venue crypto arbitrage detector",
		Version: version,
		Long: `arbcommand watches spot and perpetual markets across global and
Korean venues, detects cross-venue price, premium, basis and funding
divergences, and serves them over REST and WebSocket.`,
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the detector and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config/config.yaml", "Path to config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s %s\n", appName, version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := venues.NewClient(cfg.ConnectorTimeout())
	universe := venues.NewUniverse(cfg.TradingSymbols)
	connectors := buildConnectors(cfg, client, universe)
	if len(connectors) == 0 {
		return fmt.Errorf("no venues enabled")
	}

	snapshot := market.NewSnapshot()
	resolver := fx.NewResolver(client, snapshot, cfg.FxFallbackKRWPerUSD, cfg.StaleTTL())
	curve := alloc.NewCurve(cfg.AllocationCurve, cfg.TetherTotalEquityUSD)
	oracle := wallet.NewOracle()
	eng := engine.New(cfg, curve, oracle)
	tracker := alerts.NewTracker(cfg.AlertTTL())

	var store *hub.Store
	if cfg.RedisAddr != "" {
		store = hub.NewStore(cfg.RedisAddr)
		if err := store.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).
				Msg("redis unreachable, last-good mirroring disabled")
			store = nil
		} else {
			defer store.Close()
		}
	}
	h := hub.New(cfg.LastGoodTTL(), store)

	sched := scheduler.New(
		cfg.DetectInterval(), cfg.ConnectorTimeout(), cfg.WalletRefreshInterval(),
		connectors, snapshot, eng, tracker, h, resolver, oracle,
	)

	go resolver.Run(ctx, cfg.FxRefreshInterval())
	go sched.Run(ctx)

	log.Info().
		Int("venues", len(connectors)).
		Str("listen", cfg.Listen).
		Dur("interval", cfg.DetectInterval()).
		Msg("arbcommand starting")

	server := httpapi.NewServer(cfg, h, resolver)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server failed: %w", err)
	}
	log.Info().Msg("arbcommand stopped")
	return nil
}

func buildConnectors(cfg config.Config, client *venues.Client, universe *venues.Universe) []venues.Connector {
	var out []venues.Connector
	if cfg.Venues.Binance {
		out = append(out, venues.NewBinance(client, universe))
	}
	if cfg.Venues.OKX {
		out = append(out, venues.NewOKX(client, universe))
	}
	if cfg.Venues.Upbit {
		out = append(out, venues.NewUpbit(client, universe))
	}
	if cfg.Venues.Bithumb {
		out = append(out, venues.NewBithumb(client, universe))
	}
	if cfg.Venues.Bybit {
		out = append(out, venues.NewBybit(client, universe))
	}
	if cfg.Venues.Gate {
		out = append(out, venues.NewGate(client, universe))
	}
	if cfg.Venues.Bitget {
		out = append(out, venues.NewBitget(client, universe))
	}
	if cfg.Venues.BingX {
		out = append(out, venues.NewBingX(client, universe))
	}
	if cfg.Venues.BinanceFutures {
		out = append(out, venues.NewBinanceFutures(client, universe))
	}
	if cfg.Venues.Hyperliquid {
		out = append(out, venues.NewHyperliquid(client, universe))
	}
	if cfg.Venues.Synthetix {
		out = append(out, venues.NewSynthetix(client, universe))
	}
	return out
}
