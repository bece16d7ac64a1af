package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docchat/internal/common"
)

var (
	// Command-line flags
	configFiles []string // Multiple --config flags supported
	serverPort  int
	serverHost  string

	// Global state
	config *common.Config
	logger arbor.ILogger
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Ask questions about text, images and PDF documents",
	Long: `docchat answers questions about free text, uploaded images and PDF documents.
PDF questions are answered from the passages of the document most similar to the question.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return loadConfig()
	},
	// Running without a subcommand starts the server
	RunE: runServe,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flags.IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	flags.StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(serveCmd, askCmd, keysCmd, versionCmd)
}

func main() {
	defer common.RecoverWithCrashFile()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig runs the startup sequence (REQUIRED ORDER):
//  1. Load .env into the process environment
//  2. Load config (defaults -> file1 -> file2 -> ... -> env)
//  3. Apply CLI overrides (highest priority)
//  4. Initialize logger
func loadConfig() error {
	if _, err := common.LoadDotEnv(".env"); err != nil {
		arbor.NewLogger().Warn().Err(err).Msg("Failed to load .env")
	}

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("docchat.toml"); err == nil {
			configFiles = append(configFiles, "docchat.toml")
		} else if _, err := os.Stat("deployments/local/docchat.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/docchat.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return err
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)

	logger = common.InitLogger(config)

	logger.Debug().
		Strs("config_files", configFiles).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Bool("storage_enabled", config.Storage.Enabled).
		Str("storage_path", config.Storage.Badger.Path).
		Msg("Resolved configuration (sanitized)")

	return nil
}
