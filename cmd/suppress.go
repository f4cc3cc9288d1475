package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/store"
)

var (
	suppressEmail  string
	suppressReason string
)

var suppressCmd = &cobra.Command{
	Use:   "suppress",
	Short: "Add an email to the suppression list",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			if err := st.AddSuppression(cmd.Context(), suppressEmail, suppressReason); err != nil {
				return eris.Wrap(err, "add suppression")
			}

			zap.L().Info("suppression added",
				zap.String("email", suppressEmail),
				zap.String("reason", suppressReason),
			)
			return nil
		})
	},
}

func init() {
	suppressCmd.Flags().StringVar(&suppressEmail, "email", "", "email or company domain to suppress (required)")
	suppressCmd.Flags().StringVar(&suppressReason, "reason", "manual", "suppression reason")
	_ = suppressCmd.MarkFlagRequired("email")
	rootCmd.AddCommand(suppressCmd)
}
