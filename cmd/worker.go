package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	authPostgres "github.com/thiagocrux/simcasi/internal/auth/postgres"
	"github.com/thiagocrux/simcasi/internal/worker"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the scheduled session expiry sweep.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var sweepSchedule string

func startSweepWorker() {
	config, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(config)

	db, err := initDB(config.Database)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		logger.Error("failed to initialize gorm", "error", err)
		os.Exit(1)
	}

	schedule := getStringFlag(sweepSchedule, config.Sweeper.Schedule)
	sweeper := worker.NewSessionSweeper(
		authPostgres.NewSessionRepository(gdb),
		authPostgres.NewResetTokenRepository(gdb),
		config.Sweeper.Retention,
		metrics.New(prometheus.NewRegistry()),
		logger,
	)
	if err := sweeper.Start(schedule); err != nil {
		logger.Error("failed to start session sweeper", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("session sweeper is running. Press Ctrl+C to stop.")

	sig := <-sigChan
	logger.Info("received signal, shutting down session sweeper", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sweeper.Stop(ctx)
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	workerCmd.Flags().StringVar(&sweepSchedule, "schedule", "", "Cron schedule for the sweep (overrides config)")

	rootCmd.AddCommand(workerCmd)
}
