// Package cli wires the cobra commands for the siwzmap binary.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siwzmap/siwzmap/internal/classify"
	"github.com/siwzmap/siwzmap/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "siwzmap",
	Short: "siwzmap - segmentation and variant mapping for procurement documents",
	Long: `siwzmap turns Polish SIWZ/SWZ procurement documents into normalized,
classified text units grouped by medical coverage variant.

It loads a document (PDF, DOCX, Markdown, HTML or plain text), splits it
into layout-aware units with page and offset provenance, labels each unit
with an LLM or keyword heuristics, and aggregates the units into variant
groups (V1, V2, ...).`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("siwzmap v0.3.1")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.siwzmap/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(home + "/.siwzmap")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match SIWZMAP_*
	viper.SetEnvPrefix("SIWZMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig materializes the effective config after flags and env.
func loadConfig() config.Config {
	return config.FromViper(viper.GetViper())
}

// newLogger builds the process logger. Verbose mode lowers the level.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClassifier picks the classifier implementation the config asks for.
func newClassifier(cfg config.Config, log *slog.Logger) (classify.Classifier, error) {
	if cfg.HeuristicOnly {
		return &classify.HeuristicClassifier{}, nil
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("openai api key not set; use SIWZMAP_OPENAI_API_KEY or --heuristic")
	}
	return classify.NewOpenAIClassifier(classify.OpenAIConfig{
		APIKey:            cfg.OpenAIAPIKey,
		BaseURL:           cfg.OpenAIBaseURL,
		Model:             cfg.OpenAIModel,
		RequestsPerSecond: cfg.RequestsPerSecond,
		CacheTTL:          cfg.ClassifyCacheTTL,
	}, log)
}
