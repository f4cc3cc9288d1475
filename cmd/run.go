package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/pipeline"
)

var (
	runEmail     string
	runFirstName string
	runLastName  string
	runCompany   string
	runTitle     string
	runIndustry  string
	runBatch     string
	runSignals   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run personalisation for a single lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		batch := runBatch
		if batch == "" {
			batch = time.Now().UTC().Format("2006-01-02")
		}

		input := pipeline.LeadInput{
			Lead: model.Lead{
				Email:     runEmail,
				FirstName: runFirstName,
				LastName:  runLastName,
				Company:   runCompany,
				Title:     runTitle,
				Industry:  runIndustry,
				BatchDate: batch,
			},
		}

		if runSignals != "" {
			data, err := os.ReadFile(runSignals)
			if err != nil {
				return eris.Wrap(err, "read signals file")
			}
			if err := json.Unmarshal(data, &input.Signals); err != nil {
				return eris.Wrap(err, "parse signals file")
			}
		}

		result := env.Pipeline.Process(ctx, input)
		if result.Err != nil {
			zap.L().Error("personalisation failed",
				zap.String("email", runEmail),
				zap.Error(result.Err),
			)
		}

		zap.L().Info("personalisation complete",
			zap.String("email", runEmail),
			zap.String("outcome", string(result.Outcome)),
		)

		out := struct {
			Lead    model.Lead     `json:"lead"`
			Outcome model.Outcome  `json:"outcome"`
			Attempt *model.Attempt `json:"attempt,omitempty"`
			Error   string         `json:"error,omitempty"`
		}{
			Lead:    result.Lead,
			Outcome: result.Outcome,
			Attempt: result.Attempt,
		}
		if result.Err != nil {
			out.Error = result.Err.Error()
		}

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "lead email (required)")
	runCmd.Flags().StringVar(&runFirstName, "first-name", "", "lead first name")
	runCmd.Flags().StringVar(&runLastName, "last-name", "", "lead last name")
	runCmd.Flags().StringVar(&runCompany, "company", "", "lead company name")
	runCmd.Flags().StringVar(&runTitle, "title", "", "lead job title")
	runCmd.Flags().StringVar(&runIndustry, "industry", "", "lead industry")
	runCmd.Flags().StringVar(&runBatch, "batch", "", "batch date YYYY-MM-DD (default today)")
	runCmd.Flags().StringVar(&runSignals, "signals", "", "path to JSON file of enrichment signals")
	_ = runCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(runCmd)
}
