package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/humtech/outreach-cli/internal/store"
)

var attemptsFilter store.AttemptFilter

var attemptsCmd = &cobra.Command{
	Use:   "attempts",
	Short: "Query the personalisation audit trail",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			attempts, err := st.ListAttempts(cmd.Context(), attemptsFilter)
			if err != nil {
				return eris.Wrap(err, "list attempts")
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(attempts)
		})
	},
}

func init() {
	attemptsCmd.Flags().StringVar(&attemptsFilter.LeadID, "lead", "", "filter by lead ID")
	attemptsCmd.Flags().StringVar(&attemptsFilter.PromptVersion, "prompt-version", "", "filter by prompt version")
	attemptsCmd.Flags().StringVar(&attemptsFilter.BatchDate, "date", "", "filter by batch date YYYY-MM-DD")
	attemptsCmd.Flags().IntVar(&attemptsFilter.Limit, "limit", 100, "max attempts to return")
	attemptsCmd.Flags().IntVar(&attemptsFilter.Offset, "offset", 0, "offset into the result set")
	rootCmd.AddCommand(attemptsCmd)
}
