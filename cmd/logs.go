package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [service...]",
	Short: "Show application stack logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		defer logger.Sync()

		ctx, stop := signalContext()
		defer stop()

		follow, _ := cmd.Flags().GetBool("follow")
		err = newCompose(cfg, logger).Logs(ctx, follow, args...)
		if follow && errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
}
