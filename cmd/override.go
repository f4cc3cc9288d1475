package main

import (
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/humtech/outreach-cli/internal/store"
)

var (
	overrideAttemptID string
	overrideOpener    string
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Human override of a personalisation attempt",
}

var overrideEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Replace an attempt's opener with a human-edited one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			ctx := cmd.Context()
			if err := st.OverrideOpener(ctx, overrideAttemptID, overrideOpener); err != nil {
				return describeOverrideErr(err)
			}
			zap.L().Info("opener overridden", zap.String("attempt", overrideAttemptID))
			return nil
		})
	},
}

var overrideRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove an attempt from the batch entirely",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st store.Store) error {
			ctx := cmd.Context()
			if err := st.RemoveAttempt(ctx, overrideAttemptID); err != nil {
				return describeOverrideErr(err)
			}
			zap.L().Info("attempt removed", zap.String("attempt", overrideAttemptID))
			return nil
		})
	},
}

// withStore opens and migrates the store for the duration of fn.
func withStore(cmd *cobra.Command, fn func(st store.Store) error) error {
	if err := cfg.Validate("store"); err != nil {
		return err
	}

	st, err := initStore(cmd.Context())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(cmd.Context()); err != nil {
		return eris.Wrap(err, "migrate store")
	}

	return fn(st)
}

func describeOverrideErr(err error) error {
	switch {
	case errors.Is(err, store.ErrAlreadySent):
		return eris.New("attempt has already been sent and can no longer be changed")
	case errors.Is(err, store.ErrNotFound):
		return eris.New("attempt not found")
	default:
		return err
	}
}

func init() {
	overrideEditCmd.Flags().StringVar(&overrideAttemptID, "attempt", "", "attempt ID (required)")
	overrideEditCmd.Flags().StringVar(&overrideOpener, "opener", "", "replacement opener (required)")
	_ = overrideEditCmd.MarkFlagRequired("attempt")
	_ = overrideEditCmd.MarkFlagRequired("opener")

	overrideRemoveCmd.Flags().StringVar(&overrideAttemptID, "attempt", "", "attempt ID (required)")
	_ = overrideRemoveCmd.MarkFlagRequired("attempt")

	overrideCmd.AddCommand(overrideEditCmd, overrideRemoveCmd)
	rootCmd.AddCommand(overrideCmd)
}
