// Package run implements the "run" subcommand: one pipeline pass over the
// configured subscription list, then exit.
package run

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"proxypulse/internal/config"
	"proxypulse/internal/emit"
	"proxypulse/internal/fetch"
	"proxypulse/internal/logging"
	"proxypulse/internal/runner"
	"proxypulse/internal/shared/runclock"
	"proxypulse/internal/store"
	"proxypulse/internal/validate"
)

var (
	configPath string
	subsPath   string
)

// NewCommand builds the "run" cobra command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long:  `Fetch, validate, score, and emit output for the configured subscription list, then exit.`,
		RunE:  runOnce,
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml)")
	cmd.Flags().StringVarP(&subsPath, "subscriptions", "s", "subscriptions.txt", "Path to the newline-delimited subscription list file")

	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
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

	urls, err := config.LoadSubscriptionURLs(subsPath)
	if err != nil {
		log.Errorw("subscription list unreadable", "error", err, "path", subsPath)
		return err
	}

	r, _, err := Build(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire pipeline: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	summary, err := r.Run(ctx, urls, runclock.NowUTC())
	if err != nil {
		log.Errorw("run failed", "error", err)
		return err
	}

	log.Infow("run complete",
		"run_id", summary.RunID,
		"subscriptions_total", summary.SubscriptionsTotal,
		"subscriptions_picked", summary.SubscriptionsPicked,
		"nodes_parsed", summary.NodesParsed,
		"nodes_valid", summary.NodesValid,
		"duration", summary.Duration.String(),
	)
	return nil
}

// Build wires a Runner and its Store from a loaded Config, shared by the
// run and serve commands so the two don't drift in how collaborators get
// constructed.
func Build(cfg *config.Config, log logging.Interface) (*runner.Runner, *store.Store, error) {
	var geo store.GeoBackend
	if cfg.GeoCache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.GeoCache.RedisAddr,
			DB:   cfg.GeoCache.RedisDB,
		})
		geo = store.NewRedisGeoCache(client, cfg.GeoCache.KeyPrefix)
	}

	st, err := store.New(cfg.Store.Dir, log, geo)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}

	fetchCfg := fetch.Config{
		Concurrency:        cfg.Fetch.Concurrency,
		Timeout:            cfg.Fetch.Timeout(),
		InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
		MaxRedirects:       cfg.Fetch.MaxRedirects,
	}
	f := fetch.New(fetchCfg, log)

	mode := validate.ModeStrict
	if cfg.Validation.Mode == "lenient" {
		mode = validate.ModeLenient
	}
	validateCfg := validate.Config{
		Mode:           mode,
		TCPTimeout:     cfg.Validation.TCPTimeout(),
		MaxLatencyMs:   cfg.Validation.MaxLatencyMs,
		BatchSize:      cfg.Validation.BatchSize,
		BatchDelay:     cfg.Validation.BatchDelay(),
		MaxOutputNodes: cfg.Validation.MaxOutputNodes,
	}
	v := validate.New(validateCfg, log)

	writer, err := emit.NewJSONWriter(cfg.Emit.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("emit writer: %w", err)
	}
	e := emit.New(writer, cfg.Emit.CompactCap)

	r := runner.New(st, f, v, e, log, cfg.Validation.MaxLatencyMs)
	return r, st, nil
}
