package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	authPostgres "github.com/thiagocrux/simcasi/internal/auth/postgres"
	"github.com/thiagocrux/simcasi/internal/worker"
	"github.com/thiagocrux/simcasi/pkg/metrics"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Session maintenance commands",
}

var revokeUserSessionsCmd = &cobra.Command{
	Use:   "revoke-user [user-id]",
	Short: "Sign a user out of every session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		repo := openSessionRepository()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		active, err := repo.CountActiveByUserID(ctx, args[0])
		if err != nil {
			log.Fatalf("failed to count sessions: %v", err)
		}
		revoked, err := repo.RevokeAllByUserID(ctx, args[0])
		if err != nil {
			log.Fatalf("failed to revoke sessions: %v", err)
		}
		fmt.Printf("user %s: %d active sessions, %d revoked\n", args[0], active, revoked)
	},
}

var sweepSessionsCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired sessions and reset tokens once",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		db, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer db.Close()
		gdb, err := initGorm(db)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		sweeper := worker.NewSessionSweeper(
			authPostgres.NewSessionRepository(gdb),
			authPostgres.NewResetTokenRepository(gdb),
			cfg.Sweeper.Retention,
			metrics.New(prometheus.NewRegistry()),
			initLogger(cfg),
		)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		fmt.Printf("deleted %d sessions and %d reset tokens\n", result.Sessions, result.ResetTokens)
	},
}

func openSessionRepository() *authPostgres.SessionRepository {
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := initDB(cfg.Database)
	if err != nil {
		log.Fatalf("failed to init db: %v", err)
	}
	gdb, err := initGorm(db)
	if err != nil {
		log.Fatalf("failed to init gorm: %v", err)
	}
	return authPostgres.NewSessionRepository(gdb)
}

func init() {
	sessionsCmd.AddCommand(revokeUserSessionsCmd)
	sessionsCmd.AddCommand(sweepSessionsCmd)

	rootCmd.AddCommand(sessionsCmd)
}
