package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"klok/internal/app"
	jwttoken "klok/internal/jwt_token"
	"klok/internal/platform/logger"
	"klok/internal/platform/postgres"
	id "klok/pkg/domain"
	"klok/pkg/platform/middleware/admin"
)

func newReconcileCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass and print its summary",
		Long: `Reconcile re-evaluates every stored invoice against the rules currently
configured and annotates the ones that would now be blocked. The run takes
the same lock as the server's scheduled runs; a concurrent run fails fast.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cfg := opts.config()
			a, err := app.New(ctx, cfg, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging))
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.Reconciler.RunOnce(ctx)
			if err != nil {
				return fmt.Errorf("reconciliation: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), sum)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "abort the run after this long")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.config()
			if cfg.Database.URL == "" {
				return errors.New("migrate needs --database-url or KLOK_DATABASE_URL")
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			return postgres.Migrate(ctx, db, logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging))
		},
	}
}

func newProvidersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered jurisdictions with overrides applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.config()
			reg, err := app.NewRegistry(cfg.Compliance.JurisdictionDir, slog.New(slog.DiscardHandler))
			if err != nil {
				return err
			}
			for _, p := range reg.All() {
				c := p.Capabilities()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", c.Code, c.Name, c.Currency, c.RuleVersion)
			}
			return nil
		},
	}
}

func newHashAdminTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-admin-token <token>",
		Short: "Print the bcrypt hash to set as KLOK_ADMIN_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := admin.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		tenant string
		actor  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a tenant-scoped bearer token for testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := id.ParseTenantID(tenant)
			if err != nil {
				return fmt.Errorf("--tenant: %w", err)
			}
			actorID := id.UserID(uuid.New())
			if actor != "" {
				if actorID, err = id.ParseUserID(actor); err != nil {
					return fmt.Errorf("--actor: %w", err)
				}
			}
			cfg := opts.config()
			token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
				GenerateAccessToken(actorID, tenantID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant ID (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "actor ID (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
