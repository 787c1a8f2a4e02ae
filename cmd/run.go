package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-scorer/internal/scoring"
)

var runCmd = &cobra.Command{
	Use:   "run [applicant-id...]",
	Short: "Run the background scorer: worker pool plus backfill scanner",
	Long: "Starts the generation workers and the backfill scanner, queues any applicant ids given " +
		"as arguments and runs until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("no-backfill", false, "do not start the backfill scanner")
}

// run is the main command for the cli.
func run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	defer logger.Sync()

	logger.Info("starting the hh-scorer", zap.String("version", version))

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := parseApplicantID(arg)
		if err != nil {
			logger.Fatal("parsing arguments", zap.String("arg", arg), zap.Error(err))
		}
		ids = append(ids, id)
	}

	application, err := newApplication(ctx, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer application.Close()

	scoringCfg := application.config.Scoring
	if scoringCfg == nil {
		scoringCfg = &ScoringConfig{}
	}

	coalescer := scoring.NewCoalescer(application.service, scoring.CoalescerConfig{
		Workers:   scoringCfg.Workers,
		QueueSize: scoringCfg.QueueSize,
	}, logger)
	if err := coalescer.Start(ctx); err != nil {
		logger.Fatal("starting workers", zap.Error(err))
	}

	for _, id := range ids {
		if !coalescer.Enqueue(id) {
			logger.Warn("applicant was not queued", zap.Int64("applicant_id", id))
		}
	}

	noBackfill, _ := cmd.Flags().GetBool("no-backfill")
	backfillCfg := application.config.Backfill
	if !noBackfill && backfillCfg != nil && backfillCfg.Enabled {
		backfill := scoring.NewBackfill(application.store, coalescer, scoring.BackfillConfig{
			InitialDelay: backfillCfg.InitialDelay,
			Interval:     backfillCfg.Interval,
			BatchSize:    backfillCfg.BatchSize,
			Pace:         backfillCfg.Pace,
		}, logger)
		backfill.Start(ctx)
	} else {
		logger.Info("backfill disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down", zap.Int("pending", coalescer.Pending()))

	if err := coalescer.Close(); err != nil {
		logger.Error("stopping workers", zap.Error(err))
	}
}
