package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crestline-eng/intaked/internal/mail"
	"github.com/crestline-eng/intaked/internal/pipeline"
	"github.com/crestline-eng/intaked/internal/validate"
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Run one email through the pipeline and print the outcome",
	Long: `Run a single email through the full pipeline without touching the
outcome database, the review bridge, or Quickbase. The file may be a raw
RFC 822 message or a plain-text body.

Examples:
  intaked parse assignment.eml
  intaked parse --config intaked.yaml body.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	msg, err := mail.ParseRFC822(raw, time.Now().UTC())
	if err != nil {
		// Not a full message; treat the file as a bare body.
		msg = mail.RawMessage{
			ID:         uuid.NewString(),
			Body:       string(raw),
			ReceivedAt: time.Now().UTC(),
		}
	}

	classifier, err := mail.NewClassifier(cfg.Sensitivity)
	if err != nil {
		return fmt.Errorf("failed to build sensitivity classifier: %w", err)
	}
	selector, _ := buildSelector(cmd.Context(), cfg, classifier, log)
	chain := validate.NewDefaultChain(log, nil)
	store := pipeline.NewMemoryStore()
	defer store.Close()

	orch := pipeline.NewOrchestrator(cfg, selector, classifier, chain, store, nil, nil, log)

	rec, err := orch.Process(cmd.Context(), msg)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if rec.Outcome != pipeline.OutcomeAccepted {
		fmt.Fprintf(cmd.OutOrStdout(), "\noutcome: %s (%s)\n", rec.Outcome, rec.Reason)
	}
	return nil
}
