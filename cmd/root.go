package cmd

import (
	"fmt"
	"os"

	"github.com/Lumos-Labs-HQ/formseed/internal/config"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	Version = "0.3.0"
)

func showBanner() {
	greenColor := color.New(color.FgGreen, color.Bold)

	banner := []string{
		"╔════════════════════════════════════════════════════╗",
		"║   ▗▄▄▄▖ ▗▄▖ ▗▄▄▖ ▗▖  ▗▖ ▗▄▄▖▗▄▄▄▖▗▄▄▄▖▗▄▄▄          ║",
		"║   ▐▌   ▐▌ ▐▌▐▌ ▐▌▐▛▚▞▜▌▐▌   ▐▌   ▐▌   ▐▌  █         ║",
		"║   ▐▛▀▀▘▐▌ ▐▌▐▛▀▚▖▐▌  ▐▌ ▝▀▚▖▐▛▀▀▘▐▛▀▀▘▐▌  █         ║",
		"║   ▐▌   ▝▚▄▞▘▐▌ ▐▌▐▌  ▐▌▗▄▄▞▘▐▙▄▄▖▐▙▄▄▖▐▙▄▄▀         ║",
		"║                                                    ║",
		"║      🌱 Synthetic survey data, seeded for real 🌱   ║",
		"╚════════════════════════════════════════════════════╝",
	}

	for _, line := range banner {
		greenColor.Println(line)
	}

	fmt.Print("                 ")
	color.New(color.FgCyan, color.Bold).Print("Version: ")
	color.New(color.FgYellow, color.Bold).Printf("%s\n", Version)
}

var rootCmd = &cobra.Command{
	Use:   "formseed",
	Short: "Generate synthetic survey data with an LLM and seed it into a running app",
	Long: `
formseed runs a three-stage local workflow:

  1. up        start the application stack with docker compose
  2. generate  synthesize accounts, surveys and responses with a language model
  3. seed      load the generated data through the application's REST APIs

Generated data is kept as JSON under the artifacts directory, so generation
and seeding can run separately and be repeated independently.`,
	SilenceUsage: true,

	Run: func(cmd *cobra.Command, args []string) {
		showVersion, _ := cmd.Flags().GetBool("version")
		if showVersion {
			fmt.Printf("formseed version %s\n", Version)
			os.Exit(0)
		}

		if len(args) == 0 {
			showBanner()
			fmt.Println()
			cmd.Help()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log structured debug output to stderr")
	rootCmd.Flags().BoolP("version", "v", false, "Show CLI version")
}

func initConfig() {
	if err := godotenv.Load(); err != nil {
		godotenv.Load(".env.local")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("json")
		viper.SetConfigName("formseed.config")
	}

	viper.SetEnvPrefix("FORMSEED")
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			color.Yellow("⚠️  Could not read config: %v", err)
		}
	}
}
