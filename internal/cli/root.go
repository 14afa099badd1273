package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/sitclass/internal/llm"
	"github.com/ppiankov/sitclass/internal/model"
)

// Version is the release version, overridden at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noCache bool

	// Set by PersistentPreRunE before any command runs
	cfg    *model.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sitclass",
	Short: "sitclass - SITC trade code classification with LLMs",
	Long: `sitclass assigns Standard International Trade Classification (SITC)
codes to free-text product descriptions.

It walks the SITC hierarchy one level at a time, asking a language model
to pick the best child from a lettered list. Several independent attempts
explore alternative branches, and a final arbitration call resolves any
disagreement between them.

Descriptions in the same file are classified in order, and recent results
are shown to the model as context for the ones that follow.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		logger, err = newLogger(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of sitclass.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sitclass %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.sitclass/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	flags.BoolVar(&noCache, "no-cache", false, "disable the model reply cache")

	flags.String("provider", "", "LLM provider (openai, anthropic, ollama, gemini)")
	flags.String("model", "", "LLM model name")
	flags.String("db", "", "taxonomy database path")
	flags.Int("attempts", 0, "independent traversals per description")
	flags.Int("max-depth", 0, "deepest SITC level to descend to (1-5)")

	// Bind flags to viper
	_ = viper.BindPFlag("llm.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("llm.model", flags.Lookup("model"))
	_ = viper.BindPFlag("taxonomy.db_path", flags.Lookup("db"))
	_ = viper.BindPFlag("classifier.attempts", flags.Lookup("attempts"))
	_ = viper.BindPFlag("classifier.max_depth", flags.Lookup("max-depth"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".sitclass"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match SITCLASS_*
	viper.SetEnvPrefix("SITCLASS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables can override it
func setDefaults(d *model.Config) {
	defaults := map[string]any{
		"llm.provider":                      d.LLM.Provider,
		"llm.model":                         d.LLM.Model,
		"llm.api_key":                       "",
		"llm.base_url":                      d.LLM.BaseURL,
		"llm.timeout":                       d.LLM.Timeout,
		"llm.max_tokens":                    d.LLM.MaxTokens,
		"llm.temperature":                   d.LLM.Temperature,
		"llm.http_proxy":                    d.LLM.HTTPProxy,
		"llm.https_proxy":                   d.LLM.HTTPSProxy,
		"classifier.attempts":               d.Classifier.Attempts,
		"classifier.max_depth":              d.Classifier.MaxDepth,
		"classifier.max_iterations":         d.Classifier.MaxIterations,
		"classifier.max_examples":           d.Classifier.MaxExamples,
		"classifier.context_window":         d.Classifier.ContextWindow,
		"classifier.batch_size":             d.Classifier.BatchSize,
		"taxonomy.db_path":                  d.Taxonomy.DBPath,
		"cache.enabled":                     d.Cache.Enabled,
		"cache.dir":                         d.Cache.Dir,
		"cache.memory_ttl":                  d.Cache.MemoryTTL,
		"cache.disk_ttl":                    d.Cache.DiskTTL,
		"rate_limiting.requests_per_second": d.RateLimiting.RequestsPerSecond,
		"rate_limiting.burst_size":          d.RateLimiting.BurstSize,
		"concurrency.workers":               d.Concurrency.Workers,
		"output.format":                     d.Output.Format,
		"output.dir":                        d.Output.Dir,
		"log.level":                         d.Log.Level,
	}
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// loadConfig merges defaults, the config file, environment and flags
func loadConfig() (*model.Config, error) {
	c := model.DefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if c.LLM.APIKey == "" {
		c.LLM.APIKey = llm.APIKeyFromEnv(c.LLM.Provider)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = llm.BaseURLFromEnv(c.LLM.Provider)
	}
	if noCache {
		c.Cache.Enabled = false
	}
	if verbose {
		c.Log.Level = "debug"
	}
	return c, nil
}

// newLogger builds a production logger at the named level
func newLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	return config.Build()
}
