// Package main provides the entry point for the betting bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/boat-better/internal/config"
	"github.com/yourusername/boat-better/internal/datasource"
	"github.com/yourusername/boat-better/internal/gate"
	"github.com/yourusername/boat-better/internal/health"
	"github.com/yourusername/boat-better/internal/ledger"
	"github.com/yourusername/boat-better/internal/logger"
	"github.com/yourusername/boat-better/internal/metrics"
	"github.com/yourusername/boat-better/internal/models"
	"github.com/yourusername/boat-better/internal/notify"
	"github.com/yourusername/boat-better/internal/oracle"
	"github.com/yourusername/boat-better/internal/reconcile"
	"github.com/yourusername/boat-better/internal/scan"
	"github.com/yourusername/boat-better/internal/scheduler"
)

// Build information - set via ldflags
var (
	Version = "dev"
)

var (
	configFile string
	cfg        *config.Config
	appLog     *logrus.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.AddCommand(runCmd, scanCmd, reconcileCmd)
}

var rootCmd = &cobra.Command{
	Use:   "boat-better",
	Short: "Value-betting bot for boat races",
	Long:  `Scans the day's race card, admits positive-expected-value wagers into a durable ledger, and reconciles them against published results.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
			region := os.Getenv("AWS_REGION")
			secretName := os.Getenv("AWS_SECRET_NAME")
			if region == "" || secretName == "" {
				return fmt.Errorf("AWS_REGION and AWS_SECRET_NAME must be set when AWS_SECRETS_ENABLED is true")
			}
			if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
				return fmt.Errorf("failed to load secrets: %w", err)
			}
		}

		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		appLog = logger.NewLogger(cfg.App.LogLevel)
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan and reconcile loops until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBot()
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDependencies()
		if err != nil {
			return err
		}
		defer deps.close()

		_, err = deps.orchestrator.RunCycle(cmd.Context())
		return err
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single reconcile cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDependencies()
		if err != nil {
			return err
		}
		defer deps.close()

		_, err = deps.poller.RunCycle(cmd.Context())
		return err
	},
}

// dependencies is the wired object graph shared by every subcommand.
type dependencies struct {
	store        ledger.WagerLedger
	httpClient   *datasource.RateLimitedHTTPClient
	orchestrator *scan.Orchestrator
	poller       *reconcile.Poller
}

func (d *dependencies) close() {
	d.httpClient.Close()
	if err := d.store.Close(); err != nil {
		appLog.WithError(err).Error("Failed to close ledger")
	}
}

func buildDependencies() (*dependencies, error) {
	metrics.InitRegistry()

	store, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger at %s: %w", cfg.Ledger.Path, err)
	}
	appLog.WithField("path", cfg.Ledger.Path).Info("Wager ledger opened")

	httpClient := datasource.NewRateLimitedHTTPClient(datasource.HTTPClientConfig{
		Timeout:           time.Duration(cfg.Datasource.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.Datasource.MaxRetries,
		RetryWaitMin:      200 * time.Millisecond,
		RetryWaitMax:      5 * time.Second,
		RateLimit:         cfg.Datasource.RateLimit,
		CircuitBreakerMax: cfg.Datasource.CircuitBreakerMax,
	}, appLog)
	extractor := datasource.NewExtractorClient(httpClient, cfg.Datasource.BaseURL, cfg.Datasource.APIKey, appLog)

	oracleClient := oracle.NewHTTPClient(oracle.ClientConfig{
		BaseURL:        cfg.Oracle.BaseURL,
		APIKey:         cfg.Oracle.APIKey,
		RequestTimeout: time.Duration(cfg.Oracle.RequestTimeoutSeconds) * time.Second,
	}, appLog)
	predictor := oracle.NewCachedPredictor(oracleClient, time.Duration(cfg.Oracle.CacheTTLSeconds)*time.Second, appLog)

	policies, err := gate.NewPolicyTable(cfg.Policies)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("bad admission policies: %w", err)
	}

	var notifiers []notify.Notifier
	if cfg.Notify.ConsoleEnabled {
		notifiers = append(notifiers, notify.NewConsole())
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		notifiers = append(notifiers, notify.NewDiscord(cfg.Notify.DiscordWebhookURL, appLog))
	}
	notifier := notify.NewMulti(notifiers...)

	markets := make([]models.MarketType, 0, len(cfg.Scan.Markets))
	for _, m := range cfg.Scan.Markets {
		markets = append(markets, models.MarketType(m))
	}

	scanCfg := scan.Config{
		VenueIDs:        cfg.Scan.Venues,
		RacesPerVenue:   cfg.Scan.RacesPerVenue,
		Markets:         markets,
		AdmissionWindow: cfg.AdmissionWindow(),
		Workers:         cfg.Scan.Workers,
		CycleBudget:     cfg.ScanInterval() - 10*time.Second,
		Stake:           decimal.NewFromInt(cfg.Scan.Stake),
		SkipCacheTTL:    12 * time.Hour,
	}
	orchestrator := scan.NewOrchestrator(scanCfg, extractor, extractor, predictor, policies, store, notifier, appLog)

	poller := reconcile.NewPoller(reconcile.Config{
		ReportHours: cfg.Reconcile.ReportHours,
	}, extractor, store, notifier, appLog)

	return &dependencies{
		store:        store,
		httpClient:   httpClient,
		orchestrator: orchestrator,
		poller:       poller,
	}, nil
}

func runBot() error {
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"version":     Version,
	}).Info("Boat Better starting")

	deps, err := buildDependencies()
	if err != nil {
		return err
	}
	defer deps.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthServer := health.NewServer(health.Config{
		ServiceName: cfg.App.Name,
		Version:     Version,
		Port:        cfg.Health.Port,
		Logger:      appLog,
		Ledger:      deps.store,
	})
	if err := healthServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}

	sched := scheduler.NewScheduler(appLog)
	if err := sched.ScheduleEvery("scan", cfg.ScanInterval(), func(ctx context.Context) error {
		_, err := deps.orchestrator.RunCycle(ctx)
		return err
	}); err != nil {
		return err
	}
	if err := sched.ScheduleEvery("reconcile", cfg.ReconcileInterval(), func(ctx context.Context) error {
		_, err := deps.poller.RunCycle(ctx)
		return err
	}); err != nil {
		return err
	}

	if err := sched.Start(); err != nil {
		return err
	}
	healthServer.SetReady(true)
	appLog.Info("Bot is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var maxRunCh <-chan time.Time
	if d := cfg.MaxRunDuration(); d > 0 {
		maxRunCh = time.After(d)
	}
	var dailyStopCh <-chan time.Time
	if h := cfg.App.ShutdownHour; h >= 0 {
		dailyStopCh = time.After(untilHour(time.Now(), h))
	}

	select {
	case sig := <-sigChan:
		appLog.WithField("signal", sig).Info("Shutdown signal received")
	case <-maxRunCh:
		appLog.WithField("max_run_seconds", cfg.App.MaxRunSeconds).Info("Run duration cap reached, shutting down")
	case <-dailyStopCh:
		appLog.WithField("hour", cfg.App.ShutdownHour).Info("Daily shutdown hour reached, shutting down")
	}

	healthServer.SetReady(false)
	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Error stopping scheduler")
	}
	cancel()

	appLog.Info("Boat Better shut down")
	return nil
}

// untilHour returns the wait until the next occurrence of the given
// local hour, rolling over to tomorrow when it already passed.
func untilHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
