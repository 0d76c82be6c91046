package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixstore/service/internal/bootstrap"
	"github.com/pixstore/service/internal/config"
	"github.com/pixstore/service/internal/image"
	"github.com/pixstore/service/internal/logger"
)

var (
	grace  time.Duration
	dryRun bool
)

// rootCmd removes blobs left behind by failed or interrupted image operations.
var rootCmd = &cobra.Command{
	Use:   "pixstore-sweep",
	Short: "Deletes stored blobs that no image record references",
	Long: `Scans every image record, lists the bucket and deletes each blob that is not
referenced and is older than the grace period. Run it while the API is up;
the grace period protects uploads still in flight.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		log := logger.Service(logger.New(cfg.LogLevel), "pixstore-sweep")

		repo, closeRepo, err := bootstrap.OpenRepository(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("metadata store init failed: %w", err)
		}
		defer closeRepo()

		blobs, err := bootstrap.OpenStorage(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("object storage init failed: %w", err)
		}

		report, runErr := image.NewSweeper(repo, blobs, log).Run(cmd.Context(), image.SweepOptions{
			Grace:  grace,
			DryRun: dryRun,
		})
		if report != nil {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		}
		return runErr
	},
}

func init() {
	rootCmd.Flags().DurationVar(&grace, "grace", image.DefaultSweepGrace, "skip blobs modified within this window")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
