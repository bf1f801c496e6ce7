// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the research-assistant CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/research-assistant/internal/secrets"
	"github.com/pdiddy/research-assistant/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// logger is the process-wide logger, built in PersistentPreRunE once the
// verbose flag is known.
var logger *zap.Logger

// rootCmd is the base command for the research-assistant CLI.
var rootCmd = &cobra.Command{
	Use:   "research-assistant",
	Short: "Concurrent research pipeline over arXiv and LLM backends",
	Long: `research-assistant runs a research question through a staged pipeline:
topic planning, query generation, arXiv collection, two-stage relevance
filtering, and per-topic analysis, all under a shared token budget.

Completed runs are persisted to a local SQLite database. Use the results
subcommands to list, inspect, search, and export past runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}

		zapCfg := zap.NewProductionConfig()
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./research-assistant.yaml or ~/.config/research-assistant/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("research-assistant")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "research-assistant"))
		}
	}

	viper.SetEnvPrefix("RESEARCH_ASSISTANT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("generation.provider", "anthropic")
	viper.SetDefault("generation.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("generation.max_output_tokens", 4096)
	viper.SetDefault("generation.timeout", "60s")
	viper.SetDefault("rate_limit.tokens_per_minute", 80000)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.base_delay", "2s")
	viper.SetDefault("pipeline.topics", 5)
	viper.SetDefault("pipeline.shortlist_size", 6)
	viper.SetDefault("pipeline.final_size", 3)
	viper.SetDefault("pipeline.workers", 4)
	viper.SetDefault("source.results_per_order", 10)
	viper.SetDefault("source.fetch_max_bytes", 262144)
	viper.SetDefault("source.timeout", "30s")
	viper.SetDefault("store.database_path", "research.db")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the runtime configuration from viper (defaults, config
// file, environment). The generation API key falls back to the .secrets/
// entry for the selected provider when neither config nor environment set it.
func loadConfig() types.Config {
	provider := viper.GetString("generation.provider")
	apiKey := viper.GetString("generation.api_key")
	if apiKey == "" {
		apiKey = secrets.APIKeyFor(loadedSecrets, provider)
	}

	userAgent := "research-assistant/" + version

	return types.Config{
		Generation: types.GenerationConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("generation.timeout"),
				UserAgent: userAgent,
			},
			Provider:        provider,
			Model:           viper.GetString("generation.model"),
			APIKey:          apiKey,
			MaxOutputTokens: viper.GetInt("generation.max_output_tokens"),
		},
		RateLimit: types.RateLimitConfig{
			TokensPerMinute: viper.GetInt("rate_limit.tokens_per_minute"),
		},
		Retry: types.RetryConfig{
			MaxAttempts: viper.GetInt("retry.max_attempts"),
			BaseDelay:   viper.GetDuration("retry.base_delay"),
		},
		Pipeline: types.PipelineConfig{
			Topics:        viper.GetInt("pipeline.topics"),
			ShortlistSize: viper.GetInt("pipeline.shortlist_size"),
			FinalSize:     viper.GetInt("pipeline.final_size"),
			Workers:       viper.GetInt("pipeline.workers"),
		},
		Source: types.SourceConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("source.timeout"),
				UserAgent: userAgent,
			},
			ResultsPerOrder: viper.GetInt("source.results_per_order"),
			FetchMaxBytes:   viper.GetInt64("source.fetch_max_bytes"),
		},
		Store: types.StoreConfig{
			DatabasePath: viper.GetString("store.database_path"),
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
