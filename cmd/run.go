package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leadscout/leadscout/internal/classify"
	"github.com/leadscout/leadscout/internal/clock"
	"github.com/leadscout/leadscout/internal/cluster"
	"github.com/leadscout/leadscout/internal/config"
	"github.com/leadscout/leadscout/internal/lead"
	"github.com/leadscout/leadscout/internal/logging"
	"github.com/leadscout/leadscout/internal/metrics"
	"github.com/leadscout/leadscout/internal/notify"
	"github.com/leadscout/leadscout/internal/pipeline"
	"github.com/leadscout/leadscout/internal/runtrack"
	"github.com/leadscout/leadscout/internal/server"
	"github.com/leadscout/leadscout/internal/source"
	"github.com/leadscout/leadscout/internal/store"
)

// newRunCmd creates the 'run' subcommand, which executes one full pipeline
// pass and exits.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Executes one pipeline run",
		Long: `Fetches every configured feed, filters and classifies new posts,
recomputes clusters, delivers notifications, and validates store freshness.
The run is recorded stage by stage; any failure leaves a FAILED run row and
a non-zero exit code.`,
		RunE: runPipeline,
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	// A missing .env is fine; the environment may be set by the scheduler.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	clk := clock.System{}

	st, err := store.New(ctx, cfg.DB, cfg.Pipeline, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	tracker := runtrack.New(cfg.Pipeline.Trigger, st, clk, logger.Named("runtrack"))
	if err := tracker.Advance(ctx, lead.StageConfigValidated); err != nil {
		return err
	}

	if err := st.InitSchema(ctx); err != nil {
		tracker.Fail(ctx, err)
		return err
	}
	if err := tracker.Advance(ctx, lead.StageDBInitialized); err != nil {
		return err
	}

	if err := tracker.Begin(ctx); err != nil {
		tracker.Fail(ctx, err)
		return err
	}
	if err := tracker.Advance(ctx, lead.StageRunTrackingStarted); err != nil {
		tracker.Fail(ctx, err)
		return err
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Port, logger.Named("server"))
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("metrics listener shutdown", zap.Error(err))
			}
		}()
	}

	p := buildPipeline(cfg, st, clk, logger)
	if err := p.Execute(ctx, tracker); err != nil {
		tracker.Fail(ctx, err)
		metrics.ObserveRun(string(lead.RunFailed))
		return err
	}
	if err := tracker.Complete(ctx); err != nil {
		tracker.Fail(ctx, err)
		metrics.ObserveRun(string(lead.RunFailed))
		return err
	}
	metrics.ObserveRun(string(lead.RunSuccess))
	logger.Info("run completed", zap.String("run_id", tracker.Run().ID))
	return nil
}

func buildPipeline(cfg config.Config, st *store.Store, clk clock.Clock, logger *zap.Logger) *pipeline.Pipeline {
	providers := make([]classify.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers = append(providers, classify.NewHTTPProvider(pc))
	}
	chain := classify.NewChain(
		providers,
		time.Duration(cfg.Pipeline.ProviderRetryBaseMs)*time.Millisecond,
		logger.Named("classify"),
	)

	adapters := make([]source.Adapter, 0, len(cfg.Sources.RSSFeeds)+len(cfg.Sources.Forums))
	for _, fc := range cfg.Sources.RSSFeeds {
		adapters = append(adapters, source.NewRSSAdapter(fc))
	}
	for _, fc := range cfg.Sources.Forums {
		adapters = append(adapters, source.NewForumAdapter(fc))
	}

	var notifier pipeline.Notifier
	if cfg.Webhook.URL != "" {
		notifier = notify.New(cfg.Webhook, clk, logger.Named("notify"))
	}

	engine := cluster.NewEngine(st, logger.Named("cluster"))

	return pipeline.New(cfg, st, adapters, chain, engine, notifier, clk, logger.Named("pipeline"))
}
