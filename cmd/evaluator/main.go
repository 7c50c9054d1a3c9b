package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"liquidity-event-evaluator/internal/chain"
	"liquidity-event-evaluator/internal/config"
	"liquidity-event-evaluator/internal/domain"
	"liquidity-event-evaluator/internal/ingestion"
	"liquidity-event-evaluator/internal/observability"
	"liquidity-event-evaluator/internal/offchain"
	"liquidity-event-evaluator/internal/onchain"
	"liquidity-event-evaluator/internal/pipeline"
	"liquidity-event-evaluator/internal/price"
	"liquidity-event-evaluator/internal/simulation"
	"liquidity-event-evaluator/internal/storage"
	"liquidity-event-evaluator/internal/storage/memory"
)

func main() {
	// Parse flags
	envFile := flag.String("env", ".env", "Optional env file; variables already set win")
	pretty := flag.Bool("pretty", false, "Human-readable console logs instead of JSON")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address, overrides METRICS_ADDR (\"off\" to disable)")
	backfillFrom := flag.Uint64("backfill-from", 0, "Evaluate PairCreated events from this block up to head before going live")

	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if cfg.MetricsAddr == "off" {
		cfg.MetricsAddr = ""
	}

	// Setup logger
	logger := newLogger(cfg.LogLevel, *pretty)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger, *backfillFrom)

	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("evaluator stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func newLogger(level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "evaluator").Logger()
}

// run wires every component and blocks until the intake closes or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, backfillFrom uint64) error {
	// 1. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry, "evaluator")
	decisions := memory.NewDecisionStore(cfg.DecisionHistory)
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, registry, decisions, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	// 2. Nodes
	upstream, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", cfg.RPCURL, err)
	}
	defer upstream.Close()

	forkRPC, err := rpc.DialContext(ctx, cfg.ForkRPCURL)
	if err != nil {
		return fmt.Errorf("dial fork %s: %w", cfg.ForkRPCURL, err)
	}
	defer forkRPC.Close()
	fork := ethclient.NewClient(forkRPC)

	key, err := cfg.Key()
	if err != nil {
		return fmt.Errorf("load private key: %w", err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	reader, err := chain.NewClient(chain.ClientOptions{Backend: upstream, ChainID: chainID, Router: cfg.Router})
	if err != nil {
		return err
	}
	wallet, err := chain.NewClient(chain.ClientOptions{
		Backend:    fork,
		PrivateKey: key,
		ChainID:    chainID,
		GasLimit:   cfg.TxGasLimit,
		Router:     cfg.Router,
	})
	if err != nil {
		return err
	}
	logger.Info().
		Str("upstream", cfg.RPCURL).
		Str("fork", cfg.ForkRPCURL).
		Str("wallet", wallet.Wallet().Hex()).
		Msg("connected")

	// 3. Off-chain services
	fetcherLogger := logger.With().Str("component", "offchain").Logger()
	fetcher := offchain.NewFetcher(
		offchain.WithTimeout(cfg.HTTPTimeout),
		offchain.WithMaxRetries(cfg.OffChainRetries),
		offchain.WithRetryDelay(cfg.OffChainRetryDelay),
		offchain.WithLogger(fetcherLogger),
		offchain.WithMetrics(metrics),
	)
	dexscreener := offchain.NewDexscreener(fetcher, cfg.DexscreenerURL)
	goplus := offchain.NewGoPlus(fetcher, cfg.GoPlusURL, cfg.ChainID)

	var basePrice price.Source = price.Static(cfg.BasePriceUSD)
	if cfg.BasePriceSource == config.PriceSourceLive {
		basePrice = price.NewLive(dexscreener, cfg.BaseAsset)
	}

	// 4. Stages
	onchainLogger := logger.With().Str("component", "onchain").Logger()
	simLogger := logger.With().Str("component", "simulation").Logger()
	pipelineLogger := logger.With().Str("component", "pipeline").Logger()

	p := pipeline.New(pipeline.Options{
		ChainID:         cfg.ChainID,
		BaseAsset:       cfg.BaseAsset,
		MinLiquidityUSD: cfg.MinLiquidityUSD,
		MaxFeePercent:   cfg.MaxFeePercent,
		OnChain: onchain.NewEnricher(onchain.Options{
			Client:    reader,
			BaseAsset: cfg.BaseAsset,
			Price:     basePrice,
			Retries:   cfg.OnChainRetries,
			Logger:    &onchainLogger,
		}),
		OffChain: offchain.NewEnricher(goplus, dexscreener),
		Simulator: simulation.NewEngine(simulation.Options{
			Client:       wallet,
			Fork:         chain.NewForker(forkRPC, cfg.ForkUpstreamURL),
			Notional:     cfg.SimNotionalWei,
			Deadline:     cfg.SwapDeadline,
			SwapGasLimit: cfg.SwapGasLimit,
			FundWei:      cfg.SimFundWei,
			Logger:       &simLogger,
			Metrics:      metrics,
		}),
		Store:   decisions,
		Metrics: metrics,
		Logger:  &pipelineLogger,
	})

	// 5. Intake
	intakeLogger := logger.With().Str("component", "intake").Logger()
	source := ingestion.NewFactorySource(ingestion.FactorySourceOptions{
		Logs:       upstream,
		Factory:    cfg.Factory,
		Progress:   memory.NewIntakeProgressStore(),
		StartBlock: cfg.StartBlock,
		Logger:     &intakeLogger,
		Metrics:    metrics,
	})

	if backfillFrom > 0 {
		head, err := reader.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("read head block: %w", err)
		}
		result, err := source.Backfill(ctx, backfillFrom, head)
		if err != nil {
			return err
		}
		if err := p.Run(ctx, replay(result.Events)); err != nil {
			return err
		}
	}

	events, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}
	logger.Info().
		Str("factory", cfg.Factory.Hex()).
		Str("base_asset", cfg.BaseAsset.Hex()).
		Str("min_liquidity_usd", cfg.MinLiquidityUSD.String()).
		Str("max_fee_percent", cfg.MaxFeePercent.String()).
		Msg("evaluator running")

	return p.Run(ctx, events)
}

// replay feeds already fetched events to the pipeline.
func replay(events []domain.PairEvent) <-chan domain.PairEvent {
	ch := make(chan domain.PairEvent, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func startMetricsServer(addr string, g prometheus.Gatherer, decisions storage.DecisionStore, logger zerolog.Logger) *http.Server {
	httpLogger := logger.With().Str("component", "http").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(g))
	mux.Handle("/decisions", pipeline.DecisionsHandler(decisions, &httpLogger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("addr", addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}
