package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/humtech/outreach-cli/internal/model"
	"github.com/humtech/outreach-cli/internal/store"
)

var reviewDate string

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Show the review queue and outcome counts for a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			ctx := cmd.Context()

			date := reviewDate
			if date == "" {
				date = time.Now().UTC().Format("2006-01-02")
			}

			items, err := st.BatchReview(ctx, date)
			if err != nil {
				return eris.Wrap(err, "batch review")
			}
			counts, err := st.BatchCounts(ctx, date)
			if err != nil {
				return eris.Wrap(err, "batch counts")
			}

			out := struct {
				BatchDate string             `json:"batch_date"`
				Counts    *model.BatchCounts `json:"counts"`
				Items     []model.ReviewItem `json:"items"`
			}{date, counts, items}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		})
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewDate, "date", "", "batch date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(reviewCmd)
}
