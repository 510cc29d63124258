package cmd

import (
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a formseed config in the current directory",
	Long:  `Write ` + config.FileName + ` with every default spelled out and create the artifacts directory.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitializeProject(); err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		fmt.Printf("✅ Created %s and %s/\n", config.FileName, cfg.ArtifactsDir)
		fmt.Println()
		fmt.Println("📝 Secrets are read from the environment (or .env), never from the config file:")
		fmt.Printf("   %-28s management API key\n", cfg.Target.APIKeyEnv)
		fmt.Printf("   %-28s environment the surveys belong to\n", cfg.Target.EnvironmentIDEnv)
		fmt.Printf("   %-28s only when llm.provider is gemini\n", cfg.LLM.APIKeyEnv)

		if _, err := os.Stat(".env"); os.IsNotExist(err) {
			color.Yellow("\n💡 No .env file found; export the variables above before running seed")
		}

		fmt.Println()
		fmt.Printf("🚀 Next steps:\n")
		fmt.Printf("   formseed up         # start the application stack\n")
		fmt.Printf("   formseed generate   # synthesize data\n")
		fmt.Printf("   formseed seed       # load it into the application\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
