package cmd

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop the application stack",
	Long: `
Stop and remove the application containers.

Examples:
  formseed down             # stop containers, keep data volumes
  formseed down --volumes   # also delete volumes (the seeded data is lost)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		defer logger.Sync()

		ctx, stop := signalContext()
		defer stop()

		volumes, _ := cmd.Flags().GetBool("volumes")
		if volumes {
			color.Yellow("⚠️  Removing volumes: all application data will be deleted")
		}

		if err := newCompose(cfg, logger).Down(ctx, volumes); err != nil {
			return err
		}
		color.Green("✅ Stack stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downCmd)
	downCmd.Flags().Bool("volumes", false, "Remove named volumes as well")
}
