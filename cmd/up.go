package cmd

import (
	"context"
	"fmt"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/Lumos-Labs-HQ/formseed/internal/llm"
	"github.com/Lumos-Labs-HQ/formseed/internal/stack"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the application stack",
	Long: `
Start the application stack with docker compose and wait until the
application answers its health endpoint. With the ollama provider, the
configured model is pulled into Ollama when it is not there yet.

Examples:
  formseed up               # pull images, start, wait for health, ensure model
  formseed up --no-pull     # use local images only
  formseed up --no-model    # do not check the Ollama model
  formseed up --no-wait     # return as soon as containers are started`,
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

		noPull, _ := cmd.Flags().GetBool("no-pull")
		noWait, _ := cmd.Flags().GetBool("no-wait")
		noModel, _ := cmd.Flags().GetBool("no-model")

		color.Cyan("🐳 Starting stack from %s...", cfg.ComposeFile)
		if err := newCompose(cfg, logger).Up(ctx, !noPull); err != nil {
			return err
		}
		if noWait {
			color.Green("✅ Containers started")
			return nil
		}

		client, err := newTargetClient(cfg, false)
		if err != nil {
			return err
		}

		color.Cyan("⏳ Waiting for %s to become healthy (up to %s)...", cfg.Target.BaseURL, cfg.Target.HealthTimeout)
		err = stack.WaitHealthy(ctx, client.Health, cfg.Target.HealthTimeout, 0, func(attempt int, err error) {
			if attempt%10 == 0 {
				fmt.Printf("   still waiting (%d probes): %v\n", attempt, err)
			}
		})
		if err != nil {
			color.Red("❌ %v", err)
			color.Yellow("💡 Inspect the containers with: formseed logs")
			return err
		}

		color.Green("✅ Application is up at %s", cfg.Target.BaseURL)

		if cfg.LLM.Provider == "ollama" && !noModel {
			if err := ensureOllamaModel(ctx, cfg); err != nil {
				color.Red("❌ %v", err)
				color.Yellow("💡 Pull it manually or rerun with --no-model")
				return err
			}
		}
		return nil
	},
}

// ensureOllamaModel waits for Ollama to answer, then pulls the configured
// model if it is missing.
func ensureOllamaModel(ctx context.Context, cfg *config.Config) error {
	client := llm.NewOllamaClient(llm.Options{
		Host:    cfg.LLM.Host,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	})

	err := stack.WaitHealthy(ctx, func(ctx context.Context) error {
		_, err := client.Models(ctx)
		return err
	}, cfg.Target.HealthTimeout, 0, nil)
	if err != nil {
		return fmt.Errorf("ollama at %s did not become ready: %w", cfg.LLM.Host, err)
	}

	color.Cyan("📦 Checking model %s (a first pull can take several minutes)...", cfg.LLM.Model)
	pulled, err := client.EnsureModel(ctx)
	if err != nil {
		return err
	}
	if pulled {
		color.Green("✅ Pulled %s", cfg.LLM.Model)
	} else {
		color.Green("✅ Model %s already present", cfg.LLM.Model)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(upCmd)
	upCmd.Flags().Bool("no-pull", false, "Do not pull images before starting")
	upCmd.Flags().Bool("no-wait", false, "Do not wait for the application to become healthy")
	upCmd.Flags().Bool("no-model", false, "Do not pull the Ollama model")
}
