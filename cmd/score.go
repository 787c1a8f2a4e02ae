package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/ai"
	"github.com/spigell/hh-scorer/internal/scoring"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var scoreCmd = &cobra.Command{
	Use:   "score <applicant-id>",
	Short: "Return the cached score of an applicant or generate one",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		score(cmd, args[0])
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest <applicant-id>",
	Short: "Print the latest stored score of an applicant",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		latest(args[0])
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <applicant-id>",
	Short: "Print every stored score of an applicant, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		history(args[0])
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd, latestCmd, historyCmd)

	scoreCmd.Flags().BoolP("force", "f", false, "regenerate even when a score exists; the new row gets a rerun version")
	scoreCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation before a forced regeneration")
}

func score(cmd *cobra.Command, arg string) {
	ctx := context.Background()
	logger := newLogger()

	id, err := parseApplicantID(arg)
	if err != nil {
		logger.Fatal("parsing arguments", zap.String("arg", arg), zap.Error(err))
	}

	force, _ := cmd.Flags().GetBool("force")
	yes, _ := cmd.Flags().GetBool("yes")

	if force && !yes {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Regenerate the score of applicant %d? Previous rows are kept", id),
			Items: []string{PromptYes, PromptNo},
		}
		_, answer, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if answer != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	application, err := newApplication(ctx, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer application.Close()

	result, err := application.service.GenerateOrFetch(ctx, id, force)
	switch {
	case err == nil:
	case errors.Is(err, scoring.ErrNotFound):
		logger.Fatal("applicant not found", zap.Int64("applicant_id", id))
	case ai.IsConfiguration(err):
		logger.Fatal("scoring is unavailable", zap.Error(err),
			zap.String("hint", "check the ai section of the configuration and the gemini api key"))
	default:
		logger.Fatal("generating score", zap.Int64("applicant_id", id), zap.Error(err))
	}

	printJSON(logger, result)
}

func latest(arg string) {
	ctx := context.Background()
	logger := newLogger()

	id, err := parseApplicantID(arg)
	if err != nil {
		logger.Fatal("parsing arguments", zap.String("arg", arg), zap.Error(err))
	}

	application, err := newApplication(ctx, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer application.Close()

	found := application.scores.GetLatest(ctx, id)
	if found == nil {
		logger.Info("no score yet", zap.Int64("applicant_id", id))
		return
	}

	printJSON(logger, found)
}

func history(arg string) {
	ctx := context.Background()
	logger := newLogger()

	id, err := parseApplicantID(arg)
	if err != nil {
		logger.Fatal("parsing arguments", zap.String("arg", arg), zap.Error(err))
	}

	application, err := newApplication(ctx, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer application.Close()

	scores := application.scores.History(ctx, id)
	logger.Info("score history", zap.Int64("applicant_id", id), zap.Int("count", len(scores)))
	if len(scores) == 0 {
		return
	}

	printJSON(logger, scores)
}

func printJSON(logger *zap.Logger, v any) {
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatal("encoding output", zap.Error(err))
	}
	fmt.Println(string(pretty))
}
