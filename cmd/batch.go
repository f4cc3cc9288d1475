package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/pipeline"
)

var (
	batchInput string
	batchDate  string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Personalise a batch of leads",
	Long:  "Reads leads with enrichment signals from a JSON file, or pulls pending leads for a batch date from the store, and runs each through the personalisation pipeline concurrently.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		inputs, err := loadBatchInputs(ctx, env)
		if err != nil {
			return err
		}

		if len(inputs) == 0 {
			zap.L().Info("no leads to process")
			return nil
		}

		// Apply limit
		if batchLimit > 0 && len(inputs) > batchLimit {
			inputs = inputs[:batchLimit]
		}

		stats, err := env.Pipeline.ProcessBatch(ctx, inputs)
		if err != nil {
			return eris.Wrap(err, "process batch")
		}

		zap.L().Info("batch complete",
			zap.Int64("processed", stats.Processed),
			zap.Int64("auto_send", stats.AutoSend),
			zap.Int64("needs_review", stats.NeedsReview),
			zap.Int64("blocked", stats.Blocked),
			zap.Int64("suppressed", stats.Suppressed),
			zap.Int64("failed", stats.Failed),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

// loadBatchInputs resolves the batch source: an explicit JSON input file
// wins, otherwise pending leads for the batch date come from the store.
func loadBatchInputs(ctx context.Context, env *pipelineEnv) ([]pipeline.LeadInput, error) {
	if batchInput != "" {
		data, err := os.ReadFile(batchInput)
		if err != nil {
			return nil, eris.Wrap(err, "read batch input")
		}
		var inputs []pipeline.LeadInput
		if err := json.Unmarshal(data, &inputs); err != nil {
			return nil, eris.Wrap(err, "parse batch input")
		}
		return inputs, nil
	}

	date := batchDate
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	leads, err := env.Store.LeadsForBatch(ctx, date)
	if err != nil {
		return nil, eris.Wrap(err, "load batch leads")
	}

	inputs := make([]pipeline.LeadInput, 0, len(leads))
	for _, l := range leads {
		if l.Status != model.LeadStatusPending {
			continue
		}
		inputs = append(inputs, pipeline.LeadInput{Lead: l})
	}
	return inputs, nil
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", "", "path to JSON file of leads with signals")
	batchCmd.Flags().StringVar(&batchDate, "date", "", "batch date YYYY-MM-DD (default today)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of leads to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
