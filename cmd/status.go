package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Lumos-Labs-HQ/formseed/internal/artifact"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stack, application and artifact status",
	Long: `Show the current state of the local workflow:
- containers of the compose stack and their health
- whether the application answers its health endpoint
- which artifact collections exist and how many records they hold`,
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

		color.New(color.Bold).Println("Stack")
		services, err := newCompose(cfg, logger).Status(ctx)
		switch {
		case err != nil:
			color.Red("  ❌ %v", err)
		case len(services) == 0:
			fmt.Println("  no containers (run 'formseed up')")
		default:
			for _, s := range services {
				mark := color.GreenString("✓")
				if !s.Healthy() {
					mark = color.RedString("✗")
				}
				fmt.Printf("  %s %-20s %s\n", mark, s.Service, s.Status)
			}
		}

		fmt.Println()
		color.New(color.Bold).Println("Application")
		client, err := newTargetClient(cfg, false)
		if err != nil {
			return err
		}
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Health(probeCtx); err != nil {
			fmt.Printf("  %s %s: %v\n", color.RedString("✗"), cfg.Target.BaseURL, err)
		} else {
			fmt.Printf("  %s %s\n", color.GreenString("✓"), cfg.Target.BaseURL)
		}

		fmt.Println()
		color.New(color.Bold).Printf("Artifacts (%s)\n", cfg.ArtifactsDir)
		for _, info := range artifact.New(cfg.ArtifactsDir).Stat() {
			switch {
			case info.Err != nil:
				fmt.Printf("  %s %-16s %v\n", color.RedString("✗"), info.Name, info.Err)
			case !info.Exists:
				fmt.Printf("  %s %-16s missing\n", color.YellowString("-"), info.Name)
			default:
				fmt.Printf("  %s %-16s %5d records  %s\n", color.GreenString("✓"), info.Name,
					info.Records, info.Modified.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
