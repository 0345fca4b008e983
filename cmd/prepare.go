package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MikeCob/noc-job-matcher/internal/embedding"
	"github.com/MikeCob/noc-job-matcher/internal/logger"
	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Build the embedding cache for the taxonomy (one-time, offline)",
	Run: func(_ *cobra.Command, _ []string) {
		prepare()
	},
}

func init() {
	rootCmd.AddCommand(prepareCmd)

	prepareCmd.Flags().String("taxonomy-file", "", "CSV file with the NOC classification table")
	prepareCmd.Flags().String("cache-file", "", "destination for the embedding cache")

	viper.BindPFlag("taxonomy-file", prepareCmd.Flags().Lookup("taxonomy-file"))
	viper.BindPFlag("cache-file", prepareCmd.Flags().Lookup("cache-file"))
}

func prepare() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the embedding cache build", zap.String("version", version))

	taxonomy, err := noc.Load(config.TaxonomyFile, config.OnMalformed, logger)
	if err != nil {
		logger.Fatal("loading the taxonomy", zap.Error(err))
	}

	embedder, model, err := newEmbedder(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the embedding client", zap.Error(err))
	}

	cache, err := embedding.BuildCache(ctx, taxonomy, embedder, model, logger)
	if err != nil {
		logger.Fatal("building the embedding cache", zap.Error(err))
	}

	if err := cache.Save(config.CacheFile); err != nil {
		logger.Fatal("saving the embedding cache", zap.Error(err))
	}

	logger.Info("embedding cache ready",
		zap.String("path", config.CacheFile),
		zap.Int("entries", cache.Meta.EntryCount),
		zap.Int("duties", cache.Meta.DutyCount),
		zap.Int("dimension", cache.Meta.Dimension),
		zap.String("fingerprint", cache.Meta.Fingerprint),
	)
}
