package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crestline-eng/intaked/internal/config"
	"github.com/crestline-eng/intaked/internal/extract"
	"github.com/crestline-eng/intaked/internal/integrate"
	"github.com/crestline-eng/intaked/internal/logging"
	"github.com/crestline-eng/intaked/internal/mail"
	"github.com/crestline-eng/intaked/internal/mailbox"
	"github.com/crestline-eng/intaked/internal/pipeline"
	"github.com/crestline-eng/intaked/internal/review"
	"github.com/crestline-eng/intaked/internal/server"
	"github.com/crestline-eng/intaked/internal/validate"
)

const integrateFlushInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the intake pipeline daemon",
	Long: `Run the full intake pipeline: IMAP retrieval (when enabled), the
extraction and validation pipeline, the review bridge, and the HTTP API.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier, err := mail.NewClassifier(cfg.Sensitivity)
	if err != nil {
		return fmt.Errorf("failed to build sensitivity classifier: %w", err)
	}

	selector, localClient := buildSelector(ctx, cfg, classifier, log)

	// The plausibility check reuses the local model so no record content
	// leaves the controlled environment for validation.
	var checker validate.Checker
	if localClient != nil {
		checker = validate.NewModelChecker(localClient)
	}
	chain := validate.NewDefaultChain(log, checker)

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var retrier *integrate.Retrier
	var integrator pipeline.Integrator
	qb := integrate.NewClient(cfg.Quickbase, log)
	if qb.Configured() {
		retrier = integrate.NewRetrier(qb, log)
		integrator = retrier
	} else {
		log.Warn(ctx, "quickbase not configured, accepted records stay in the outcome store")
	}

	var bridge *review.Bridge
	var publisher pipeline.ReviewPublisher
	if cfg.Review.NATSURL != "" {
		nc, err := review.Connect(cfg.Review.NATSURL)
		if err != nil {
			return err
		}
		defer nc.Close()
		bridge = review.NewBridge(nc, cfg.Review, log)
		publisher = bridge
	}

	orch := pipeline.NewOrchestrator(cfg, selector, classifier, chain, store, publisher, integrator, log)

	if bridge != nil {
		if err := bridge.Listen(orch); err != nil {
			return err
		}
		defer bridge.Close()
	}

	srv := server.New(cfg.Server, orch, log)
	errs := make(chan error, 1)
	go func() { errs <- srv.Start() }()

	if retrier != nil {
		go flushLoop(ctx, retrier)
	}

	if cfg.Mailbox.Enabled {
		retriever, err := mailbox.NewRetriever(cfg.Mailbox, log)
		if err != nil {
			return err
		}
		messages := make(chan mail.RawMessage, cfg.Pipeline.Workers)
		pool := pipeline.NewPool(orch, cfg.Pipeline.Workers, log)

		go func() {
			if err := retriever.Run(ctx, messages); err != nil && ctx.Err() == nil {
				log.Error(ctx, "mailbox retriever stopped", zap.Error(err))
			}
			close(messages)
		}()
		go func() {
			if err := pool.Run(ctx, messages); err != nil && ctx.Err() == nil {
				log.Error(ctx, "worker pool stopped", zap.Error(err))
			}
		}()
	}

	log.Info(ctx, "intaked started",
		zap.String("mode", cfg.Pipeline.Mode),
		zap.String("addr", cfg.Server.Addr),
		zap.Bool("mailbox", cfg.Mailbox.Enabled),
	)

	select {
	case <-ctx.Done():
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildSelector registers every configured strategy. Rules are always
// present; the model strategies join when their providers are reachable
// from configuration.
func buildSelector(ctx context.Context, cfg *config.Config, classifier *mail.Classifier, log *logging.Logger) (*extract.Selector, extract.ModelClient) {
	strategies := []extract.Strategy{extract.NewRuleStrategy()}

	if cloudClient, err := extract.NewCloudModel(cfg.Extraction.Cloud); err != nil {
		log.Warn(ctx, "cloud extraction disabled", zap.Error(err))
	} else {
		strategies = append(strategies,
			extract.NewCloudStrategy(cloudClient, classifier, cfg.Extraction.Cloud.Timeout.Duration()))
	}

	var localClient extract.ModelClient
	if client, err := extract.NewLocalModel(cfg.Extraction.Local); err != nil {
		log.Warn(ctx, "local extraction disabled", zap.Error(err))
	} else {
		localClient = client
		strategies = append(strategies,
			extract.NewLocalStrategy(client, cfg.Extraction.Local.Timeout.Duration()))
	}

	return extract.NewSelector(log, strategies...), localClient
}

const memoryOutcomeDB = ":memory:"

// buildStore opens the outcome store. Serve defaults to the durable sqlite
// store: exactly-once across restarts depends on it, so the in-memory
// store must be asked for explicitly.
func buildStore(cfg *config.Config) (pipeline.OutcomeStore, error) {
	path := cfg.Pipeline.OutcomeDB
	if path == memoryOutcomeDB {
		return pipeline.NewMemoryStore(), nil
	}
	if path == "" {
		derived, err := defaultOutcomeDBPath()
		if err != nil {
			return nil, err
		}
		path = derived
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create outcome store directory: %w", err)
	}
	store, err := pipeline.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome store: %w", err)
	}
	return store, nil
}

func defaultOutcomeDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "intaked", "outcomes.db"), nil
}

// flushLoop periodically redelivers parked Quickbase submissions.
func flushLoop(ctx context.Context, retrier *integrate.Retrier) {
	ticker := time.NewTicker(integrateFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retrier.Flush(ctx)
		}
	}
}
