// Package serve implements the "serve" subcommand: a long-lived process
// that runs the pipeline on a recurring schedule via the scheduler package,
// plus a background stale-subscription sweep, until a termination signal
// arrives.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"proxypulse/internal/config"
	"proxypulse/internal/interfaces/cli/run"
	"proxypulse/internal/logging"
	"proxypulse/internal/runner"
	"proxypulse/internal/scheduler"
	"proxypulse/internal/shared/goroutine"
	"proxypulse/internal/shared/runclock"
	"proxypulse/internal/store"
)

var (
	configPath string
	subsPath   string
)

// NewCommand builds the "serve" cobra command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a recurring schedule",
		Long:  `Run the pipeline repeatedly at the configured interval until interrupted, alongside a background stale-subscription sweep.`,
		RunE:  runServe,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")
	cmd.Flags().StringVarP(&subsPath, "subscriptions", "s", "subscriptions.txt", "Path to the newline-delimited subscription list file")

	return cmd
}

// pipelineJob adapts a long-lived Runner into the scheduler's PipelineJob
// interface, re-reading the subscription list file on every tick so edits
// to it take effect without a restart.
type pipelineJob struct {
	runner   *runner.Runner
	subsPath string
}

func (j *pipelineJob) Execute(ctx context.Context) error {
	urls, err := config.LoadSubscriptionURLs(j.subsPath)
	if err != nil {
		return fmt.Errorf("subscription list: %w", err)
	}

	_, err = j.runner.Run(ctx, urls, runclock.NowUTC())
	return err
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logging.Init(logging.Config{Level: cfg.Logger.Level, Format: cfg.Logger.Format, OutputPath: cfg.Logger.OutputPath}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := runclock.Init(cfg.Timezone); err != nil {
		return fmt.Errorf("failed to initialize clock: %w", err)
	}
	log := logging.NewLogger()

	mgr, err := scheduler.NewSchedulerManager(log)
	if err != nil {
		return fmt.Errorf("failed to build scheduler: %w", err)
	}

	r, st, err := run.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire pipeline: %w", err)
	}

	job := &pipelineJob{runner: r, subsPath: subsPath}
	if err := mgr.RegisterPipelineJob(cfg.Schedule.Interval(), cfg.Schedule.Timeout(), job); err != nil {
		return fmt.Errorf("failed to register pipeline job: %w", err)
	}

	mgr.Start()
	log.Infow("serve started", "interval", cfg.Schedule.Interval().String())

	stopPrune := make(chan struct{})
	goroutine.SafeGo(log, "stale-pruner", func() {
		runPruneLoop(st, log, cfg.Prune, stopPrune)
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down serve")
	close(stopPrune)

	if err := mgr.Stop(); err != nil {
		log.Errorw("scheduler shutdown error", "error", err)
		return err
	}

	log.Infow("serve exited gracefully")
	return nil
}

// runPruneLoop periodically drops subscriptions that have gone inactive
// longer than cfg.MaxAge, independent of the pipeline's own run cadence.
func runPruneLoop(st *store.Store, log logging.Interface, cfg config.PruneConfig, stop <-chan struct{}) {
	interval := cfg.Interval()
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			retained, pruned, err := st.PruneStale(ctx, cfg.MaxAge(), runclock.NowUTC())
			if err == nil && pruned > 0 {
				err = st.Persist(ctx, retained)
			}
			cancel()
			if err != nil {
				log.Errorw("stale sweep failed", "error", err)
				continue
			}
			if pruned > 0 {
				log.Infow("stale sweep complete", "pruned", pruned)
			}
		}
	}
}
