package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/kbase/internal/app"
	"github.com/koopa0/kbase/internal/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the vector store from the knowledge directory",
	Long: `Sync reads every document in the knowledge directory fresh, chunks and
embeds the contents, and replaces the vector store wholesale. A failed
sync may leave the store empty or partial; re-run the command to recover.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Syncer.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("Synced %d documents into %d passages\n", stats.Documents, stats.Passages)
	return nil
}
