package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/store"
)

var (
	importCSVPath string
	importBatch   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import leads from CSV into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withStore(cmd, func(st store.Store) error {
			batch := importBatch
			if batch == "" {
				batch = time.Now().UTC().Format("2006-01-02")
			}

			f, err := os.Open(importCSVPath)
			if err != nil {
				return eris.Wrap(err, "open csv")
			}
			defer f.Close() //nolint:errcheck

			leads, err := store.ParseLeadsCSV(f, batch)
			if err != nil {
				return err
			}

			imported, err := store.ImportLeads(cmd.Context(), st, leads)
			if err != nil {
				return err
			}

			zap.L().Info("import complete",
				zap.Int("imported", imported),
				zap.String("batch", batch),
				zap.String("csv", importCSVPath),
			)
			return nil
		})
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	importCmd.Flags().StringVar(&importBatch, "batch", "", "batch date YYYY-MM-DD (default today)")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}
