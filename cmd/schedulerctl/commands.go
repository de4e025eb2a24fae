package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	config "github.com/maheshrc27/social-scheduler/configs"
	"github.com/maheshrc27/social-scheduler/internal/app"
	"github.com/maheshrc27/social-scheduler/internal/repository"
	"github.com/maheshrc27/social-scheduler/internal/service"
	"github.com/maheshrc27/social-scheduler/pkg/utils"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the scheduled_posts table and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()

			db, err := repository.Open(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseDSN())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := repository.Migrate(cmd.Context(), db, cfg.DatabaseDriver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.DatabaseDriver)
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Dispatch every post that is due now, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			ctx := cmd.Context()

			db, postRepo, err := app.OpenStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			dispatcher, closeDispatcher, err := app.NewDispatcher(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeDispatcher()

			sweeper := service.NewSweepService(postRepo, dispatcher, cfg.Sweep.Concurrency, cfg.Dispatch.Timeout)
			res, err := sweeper.Sweep(ctx)
			if errors.Is(err, service.ErrSweepInProgress) {
				return errors.New("another sweep is running, try again shortly")
			}
			if res != nil {
				if jsonOutput {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(res); encErr != nil {
						return encErr
					}
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (failed: %d, skipped: %d)\n", res.Message, res.Failed, res.Skipped)
				}
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the sweep result as JSON")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		secret  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with SECRET_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = config.LoadConfig().SecretKey
			}
			if secret == "" {
				return errors.New("SECRET_KEY is not set")
			}

			token, err := utils.GenerateToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "dashboard", "Who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 720*time.Hour, "Token lifetime")
	cmd.Flags().StringVar(&secret, "secret-key", "", "Signing key (defaults to SECRET_KEY)")
	return cmd
}

func newSecretCmd() *cobra.Command {
	var size int

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Print a random URL-safe secret for CRON_SECRET or WEBHOOK_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := utils.GenerateRandomKey(size)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}

	cmd.Flags().IntVar(&size, "bytes", 32, "Number of random bytes")
	return cmd
}
