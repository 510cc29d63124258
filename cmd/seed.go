package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/formseed/internal/artifact"
	"github.com/Lumos-Labs-HQ/formseed/internal/seeder"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load generated data into the running application",
	Long: `
Create the generated accounts and surveys through the management API and
submit the responses through the client API, in that order. Entities whose
parent could not be created are skipped; transient failures are retried.

Seeding is not idempotent: running it twice creates everything twice.

Examples:
  formseed seed
  formseed seed --concurrency 8
  formseed seed --report seed-report.yaml
  formseed seed --api-key fbk_... --environment-id clx...`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		defer logger.Sync()

		if cmd.Flags().Changed("concurrency") {
			cfg.Seed.Concurrency, _ = cmd.Flags().GetInt("concurrency")
			if cfg.Seed.Concurrency < 1 {
				return fmt.Errorf("--concurrency must be at least 1")
			}
		}

		client, err := newTargetClient(cfg, true)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		s := seeder.NewSeeder(artifact.New(cfg.ArtifactsDir), client, client, seeder.Options{
			Concurrency:    cfg.Seed.Concurrency,
			MaxAttempts:    cfg.Seed.MaxAttempts,
			InitialBackoff: cfg.Seed.InitialBackoff,
			MaxBackoff:     cfg.Seed.MaxBackoff,
		}, logger)

		color.Cyan("🌱 Seeding %s from %s...", cfg.Target.BaseURL, cfg.ArtifactsDir)

		report, err := s.Seed(ctx)
		if errors.Is(err, artifact.ErrMissingArtifacts) {
			color.Red("❌ %v", err)
			color.Yellow("💡 Run 'formseed generate' first")
			return err
		}
		if report == nil {
			return err
		}

		printSeedReport(os.Stdout, report)

		if path, _ := cmd.Flags().GetString("report"); path != "" {
			if werr := writeReport(path, report); werr != nil {
				return werr
			}
			color.Cyan("📄 Report written to %s", path)
		}

		if err != nil {
			color.Yellow("⚠️  %v", err)
			return err
		}
		if !report.OK() {
			return fmt.Errorf("%d of %d entities were not created", report.Total()-sum(report.Created), report.Total())
		}
		color.Green("\n✅ Seeding completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("report", "", "Write the full report to this file (.json, .yaml or .yml)")
	seedCmd.Flags().Int("concurrency", 0, "Concurrent requests per tier")
	seedCmd.Flags().String("api-key", "", "Management API key (overrides the configured env var)")
	seedCmd.Flags().String("environment-id", "", "Target environment ID (overrides the configured env var)")

	viper.BindPFlag("target.api_key", seedCmd.Flags().Lookup("api-key"))
	viper.BindPFlag("target.environment_id", seedCmd.Flags().Lookup("environment-id"))
}
