package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/dispatch"
)

var sendDate string

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Dispatch auto-send leads for a batch to the outbound webhook",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("send"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		date := sendDate
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		sender := dispatch.NewWebhookSender(cfg.Dispatch.WebhookURL, cfg.Dispatch.APIKey)
		stats, err := dispatch.New(st, sender).Run(ctx, date)
		if err != nil {
			return eris.Wrap(err, "dispatch batch")
		}

		zap.L().Info("dispatch complete",
			zap.String("batch", date),
			zap.Int("sent", stats.Sent),
			zap.Int("failed", stats.Failed),
		)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendDate, "date", "", "batch date YYYY-MM-DD (default today)")
	rootCmd.AddCommand(sendCmd)
}
