package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MikeCob/noc-job-matcher/internal/embedding"
	"github.com/MikeCob/noc-job-matcher/internal/logger"
	"github.com/MikeCob/noc-job-matcher/internal/matcher"
	"github.com/MikeCob/noc-job-matcher/internal/noc"
)

const (
	PromptShowDuties    = "Show duty matches"
	PromptResultsToFile = "Dump results to file"
	PromptExit          = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowDuties, PromptResultsToFile, PromptExit},
}

var matchCmd = &cobra.Command{
	Use:   "match [job-description-file]",
	Short: "Rank NOC codes against a job description",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		match(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringP("text", "t", "", "job description text (alternative to a file argument)")
	matchCmd.Flags().IntP("top-k", "k", 0, "number of results to return")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "print results and exit without the interactive prompt")
	matchCmd.Flags().Duration("timeout", time.Minute, "deadline for the whole ranking call")

	viper.BindPFlag("top-k", matchCmd.Flags().Lookup("top-k"))
}

// match is the main query command.
func match(cmd *cobra.Command, args []string) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	jobText, err := resolveJobText(cmd, args)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	taxonomy, err := noc.Load(config.TaxonomyFile, config.OnMalformed, logger)
	if err != nil {
		logger.Fatal("loading the taxonomy", zap.Error(err))
	}

	cache, err := embedding.Load(config.CacheFile, taxonomy)
	if err != nil {
		logger.Fatal("loading the embedding cache",
			zap.Error(err),
			zap.String("hint", fmt.Sprintf("run '%s prepare' to (re)build the cache", app)),
		)
	}

	logger.Info("loaded taxonomy and embedding cache",
		zap.Int("entries", taxonomy.Len()),
		zap.Int("duties", cache.Meta.DutyCount),
		zap.String("model", cache.Meta.Model),
	)

	embedder, _, err := newEmbedder(context.Background(), config, logger)
	if err != nil {
		logger.Fatal("building the embedding client", zap.Error(err))
	}

	m, err := matcher.New(taxonomy, cache, embedder, logger)
	if err != nil {
		logger.Fatal("building the matcher", zap.Error(err))
	}

	topK := config.TopK
	if topK < 1 {
		topK = matcher.DefaultTopK
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	results, err := m.Rank(ctx, jobText, topK)
	if err != nil {
		logger.Fatal("ranking failed", zap.Error(err))
	}

	printResults(logger, results)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, results); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, results *matcher.Results) error {
	switch action {
	case PromptShowDuties:
		return showDutyMatches(logger, results)
	case PromptResultsToFile:
		filename, err := results.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping results to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showDutyMatches(logger *zap.Logger, results *matcher.Results) error {
	items := make([]string, 0, results.Len())
	for _, r := range results.Items {
		items = append(items, fmt.Sprintf("%s %s (score %.1f%%)", r.Code, r.Title, r.Score*100))
	}

	resultPrompt := promptui.Select{
		Label: "Choose a NOC code and press ENTER",
		Items: items,
	}

	i, _, err := resultPrompt.Run()
	if err != nil {
		return err
	}

	result := results.Items[i]
	for _, match := range result.DutyMatches {
		logger.Info("duty match",
			zap.String("noc_code", result.Code),
			zap.String("duty", match.Duty),
			zap.String("matched_responsibility", match.Responsibility),
			zap.Float64("confidence", match.Confidence),
		)
	}
	if len(result.DutyMatches) == 0 {
		logger.Info("no duties above the confidence threshold", zap.String("noc_code", result.Code))
	}
	return nil
}

func resolveJobText(cmd *cobra.Command, args []string) (string, error) {
	text, _ := cmd.Flags().GetString("text")
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	if len(args) == 0 {
		return "", errors.New("provide a job description file argument or the --text flag")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printResults(logger *zap.Logger, results *matcher.Results) {
	for i, r := range results.Items {
		logger.Info("match",
			zap.Int("rank", i+1),
			zap.String("noc_code", r.Code),
			zap.String("title", r.Title),
			zap.Float64("score", r.Score),
			zap.Float64("profile_score", r.ProfileScore),
			zap.Float64("duty_score", r.DutyScore),
			zap.Int("matched_duties", len(r.DutyMatches)),
		)
	}
}
