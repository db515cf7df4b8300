package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/whatsy12/bitcoinminer/internal/blocknotify"
	"github.com/whatsy12/bitcoinminer/internal/blockwatch"
	"github.com/whatsy12/bitcoinminer/internal/config"
	"github.com/whatsy12/bitcoinminer/internal/job"
	"github.com/whatsy12/bitcoinminer/internal/journal"
	"github.com/whatsy12/bitcoinminer/internal/metrics"
	"github.com/whatsy12/bitcoinminer/internal/miner"
	"github.com/whatsy12/bitcoinminer/internal/network"
	"github.com/whatsy12/bitcoinminer/internal/rpc"
	"github.com/whatsy12/bitcoinminer/internal/status"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file (defaults are used when empty)")
	logLevel := flag.String("log-level", "", "Override log level (debug, info, warn, error)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		cfg, err = config.Load(*cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.ApplyEnv()
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("miner exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	opts := []rpc.Option{rpc.WithTimeout(cfg.RPCTimeout)}
	if cfg.NodeRPCUser != "" || cfg.NodeRPCPassword != "" {
		opts = append(opts, rpc.WithCredentials(cfg.NodeRPCUser, cfg.NodeRPCPassword))
	}
	client, err := rpc.NewClient(cfg.NodeRPCURL, opts...)
	if err != nil {
		return err
	}

	// The node must answer before anything else starts.
	fetcher := network.NewFetcher(client, logger.Named("network"))
	probeCtx, cancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
	info, err := fetcher.Probe(probeCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect to node: %w", err)
	}
	logger.Info("connected to node", zap.String("chain", info.Chain), zap.Int64("blocks", info.Blocks))

	blocks, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer blocks.Close()

	pruner := journal.NewPruner(blocks, cfg.JournalRetention, cfg.JournalPruneCron, logger.Named("journal"))
	stopPruner, err := pruner.Start()
	if err != nil {
		return fmt.Errorf("start journal pruner: %w", err)
	}
	defer stopPruner()

	watcher := blockwatch.New(blocks, client, cfg.BlockConfirmations, cfg.BlockwatchInterval, logger.Named("blockwatch"))
	stopWatcher := watcher.Start()
	defer stopWatcher()

	prom, err := metrics.NewPromRecorder("miner")
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metrics.Default = prom

	stopFetcher := fetcher.Start(cfg.NetworkStatsInterval)
	defer stopFetcher()

	m := miner.New(miner.Config{
		RefreshInterval: cfg.RefreshInterval,
		RefreshMinGap:   cfg.RefreshMinGap,
		IdlePoll:        cfg.IdlePoll,
		StatsEvery:      cfg.StatsEvery,
		SubmitTimeout:   cfg.SubmitTimeout,
	}, miner.Deps{
		Source:    job.NewRPCSource(client),
		Submitter: job.NewSubmitter(client),
		Journal:   blocks,
		Recorder:  prom,
		Logger:    logger.Named("miner"),
	})

	var srv *http.Server
	if cfg.MetricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler())
		mux.Handle("/status", status.New(m, fetcher, blocks, cfg.StatusLimit, logger.Named("status")))
		srv = &http.Server{Addr: cfg.MetricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics/status listening", zap.String("addr", cfg.MetricsListen))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("start miner: %w", err)
	}

	if cfg.NodeZMQBlock != "" {
		listener := blocknotify.New(cfg.NodeZMQBlock, 0, func(n blocknotify.Notice) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.RPCTimeout)
			defer cancel()
			if err := m.Refresh(ctx); err != nil {
				logger.Warn("refresh on new block failed", zap.String("tip", n.Hash), zap.Error(err))
			}
		}, logger.Named("blocknotify"))
		stopListener, err := listener.Start()
		if err != nil {
			m.Stop()
			return fmt.Errorf("subscribe to block notifications: %w", err)
		}
		defer stopListener()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping...")
	m.Stop()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}

	s := m.Stats()
	logger.Info("final stats",
		zap.Uint64("hashes", s.Hashes),
		zap.Uint64("blocks_found", s.BlocksFound),
		zap.Uint64("blocks_accepted", s.Accepted),
	)
	return nil
}

func openJournal(cfg config.Config, logger *zap.Logger) (journal.Journal, error) {
	if cfg.PostgresDSN != "" {
		j, err := journal.NewPostgresJournal(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres journal: %w", err)
		}
		logger.Info("recording found blocks in postgres")
		return j, nil
	}
	j, err := journal.NewBoltJournal(cfg.JournalPath, logger.Named("journal"))
	if err != nil {
		return nil, fmt.Errorf("init block journal: %w", err)
	}
	return j, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
