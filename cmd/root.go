package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MikeCob/noc-job-matcher/internal/embedding"
	"github.com/MikeCob/noc-job-matcher/internal/embedding/gemini"
	"github.com/MikeCob/noc-job-matcher/internal/secrets"
)

const (
	app = "noc-matcher"
)

type Config struct {
	TaxonomyFile string           `mapstructure:"taxonomy-file"`
	CacheFile    string           `mapstructure:"cache-file"`
	OnMalformed  string           `mapstructure:"on-malformed"`
	TopK         int              `mapstructure:"top-k"`
	Embedding    *EmbeddingConfig `mapstructure:"embedding"`
}

type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	Dimension  int    `mapstructure:"dimension"`
	MaxRetries int    `mapstructure:"max-retries"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "noc-matcher matches free-text job descriptions to NOC occupation codes",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("embedding.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is noc-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetDefault("taxonomy-file", "noc_data_full.csv")
	viper.SetDefault("cache-file", "noc_embeddings.json")
	viper.SetDefault("on-malformed", "reject")
	viper.SetDefault("top-k", 10)
	viper.SetDefault("embedding.provider", "gemini")
	viper.SetDefault("embedding.gemini.max-retries", 2)
}

func initConfig() {
	// Config is needed only for the prepare and match commands.
	if prepareCmd.CalledAs() == "" && matchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

// newEmbedder builds the configured embedding collaborator wrapped with the
// bounded retry policy.
func newEmbedder(ctx context.Context, config *Config, logger *zap.Logger) (embedding.Embedder, string, error) {
	if config == nil || config.Embedding == nil {
		return nil, "", fmt.Errorf("embedding configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(config.Embedding.Provider))
	if provider != "" && provider != "gemini" {
		return nil, "", fmt.Errorf("unsupported embedding provider: %s", config.Embedding.Provider)
	}

	if config.Embedding.Gemini == nil {
		return nil, "", fmt.Errorf("gemini configuration is required")
	}

	apiKey, err := secrets.Load("gemini api key", config.Embedding.Gemini.APIKeyFile)
	if err != nil {
		return nil, "", fmt.Errorf("%w (set embedding.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey, config.Embedding.Gemini.Model, config.Embedding.Gemini.Dimension, logger)
	if err != nil {
		return nil, "", err
	}

	retrying := embedding.NewRetrying(client, config.Embedding.Gemini.MaxRetries, 0, logger)

	return retrying, client.Model(), nil
}
