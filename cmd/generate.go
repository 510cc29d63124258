package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/formseed/internal/artifact"
	"github.com/Lumos-Labs-HQ/formseed/internal/generator"
	"github.com/Lumos-Labs-HQ/formseed/internal/llm"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate synthetic accounts, surveys and responses",
	Long: `
Ask the configured language model for accounts, surveys and responses,
validate every record and write the accepted ones to the artifacts directory.
Records that fail validation are dropped and listed with the reason.

The previous artifacts are replaced only when generation succeeds.

Examples:
  formseed generate
  formseed generate --accounts 20 --surveys 8 --responses 10
  formseed generate --provider gemini --model gemini-2.0-flash`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		defer logger.Sync()

		flags := cmd.Flags()
		if flags.Changed("accounts") {
			cfg.Generate.Accounts, _ = flags.GetInt("accounts")
		}
		if flags.Changed("surveys") {
			cfg.Generate.Surveys, _ = flags.GetInt("surveys")
		}
		if flags.Changed("responses") {
			cfg.Generate.ResponsesPerSurvey, _ = flags.GetInt("responses")
		}
		if flags.Changed("provider") {
			cfg.LLM.Provider, _ = flags.GetString("provider")
		}
		if flags.Changed("model") {
			cfg.LLM.Model, _ = flags.GetString("model")
		}
		if flags.Changed("seed") {
			cfg.Generate.RandomSeed, _ = flags.GetInt64("seed")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		apiKey, err := cfg.LLMAPIKey()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		client, err := llm.New(ctx, llm.Options{
			Provider:    cfg.LLM.Provider,
			Host:        cfg.LLM.Host,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			APIKey:      apiKey,
			Temperature: cfg.LLM.Temperature,
			TopP:        cfg.LLM.TopP,
			Timeout:     cfg.LLM.Timeout,
		})
		if err != nil {
			return err
		}

		counts := generator.Counts{
			Accounts:           cfg.Generate.Accounts,
			Surveys:            cfg.Generate.Surveys,
			ResponsesPerSurvey: cfg.Generate.ResponsesPerSurvey,
		}
		gen := generator.New(client, artifact.New(cfg.ArtifactsDir), generator.Options{
			Concurrency: cfg.Generate.Concurrency,
			MaxRepairs:  cfg.Generate.MaxRepairs,
			RandomSeed:  cfg.Generate.RandomSeed,
		}, logger)

		color.Cyan("🤖 Generating with %s: %d accounts, %d surveys, %d responses per survey...",
			client.Name(), counts.Accounts, counts.Surveys, counts.ResponsesPerSurvey)

		res, err := gen.Generate(ctx, counts)
		if err != nil {
			if errors.Is(err, generator.ErrGenerationUnavailable) {
				color.Red("❌ %v", err)
				if cfg.LLM.Provider == "ollama" {
					color.Yellow("💡 Is Ollama running at %s? 'formseed up' pulls %s when it is missing", cfg.LLM.Host, cfg.LLM.Model)
				}
			}
			logger.Error("generation failed", zap.Error(err))
			return err
		}

		printGenerationResult(os.Stdout, res)
		color.Green("\n✅ Artifacts written to %s", cfg.ArtifactsDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().Int("accounts", 0, "Number of accounts to generate")
	generateCmd.Flags().Int("surveys", 0, "Number of surveys to generate")
	generateCmd.Flags().Int("responses", 0, "Number of responses per survey")
	generateCmd.Flags().String("provider", "", "Inference provider (ollama, gemini)")
	generateCmd.Flags().String("model", "", "Model name")
	generateCmd.Flags().Int64("seed", 0, "Seed for exemplar rotation (0 = random)")
}
