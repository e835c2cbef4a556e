// Package main is the AI completion gateway: an HTTP server plus
// administrative commands for the active model, migrations and usage.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/esche888/appcollab-sub000/internal/config"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

var (
	configPath string
	logLevel   string
	cfg        *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "AI completion gateway",
	Long: `gateway routes prompt-template completions to Anthropic, OpenAI or Gemini,
whichever is selected as the active model, and meters every completed request.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Log.Level = logLevel
		}
		utils.Configure(loaded.Log.Level, nil)
		cfg = loaded
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (debug|info|warn|error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(modelCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(completeCmd)
}
