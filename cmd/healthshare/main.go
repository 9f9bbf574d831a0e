package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthshare/healthshare/internal/config"
	"github.com/healthshare/healthshare/internal/domain/observation"
	"github.com/healthshare/healthshare/internal/domain/sharing"
	"github.com/healthshare/healthshare/internal/platform/auth"
	"github.com/healthshare/healthshare/internal/platform/db"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "healthshare",
		Short:        "Consent-gated health data sharing",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("output", "o", outputJSON, "Output format: json or yaml")

	root.AddCommand(serveCmd())
	root.AddCommand(typesCmd())
	root.AddCommand(consentCmd())
	root.AddCommand(convertCmd())
	root.AddCommand(shareCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(fixtureCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(hashPasswordCmd())
	return root
}

// withApp loads and validates the config, opens the app and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func emit(cmd *cobra.Command, v interface{}) error {
	format, _ := cmd.Flags().GetString("output")
	return render(cmd.OutOrStdout(), format, v)
}

func parseTypes(args []string) []observation.DataType {
	var out []observation.DataType
	for _, arg := range args {
		for _, t := range strings.Split(arg, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, observation.DataType(t))
			}
		}
	}
	return out
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, runServer)
		},
	}
}

func runServer(_ context.Context, a *app) error {
	if a.cfg.IsDev() {
		a.logger.Warn().Msg("development mode: requests without a token act as dev-user")
	}
	e := a.routes()
	e.Server.ReadTimeout = 15 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.logger.Info().Str("addr", addr).Str("store", a.backend.Driver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	a.logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

type typeRow struct {
	DataType    observation.DataType `json:"dataType"`
	DisplayName string               `json:"displayName"`
	Code        string               `json:"code"`
	Display     string               `json:"display"`
	Unit        string               `json:"unit"`
}

func typesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List supported data types and their LOINC codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([]typeRow, 0, len(observation.KnownDataTypes))
			for _, t := range observation.KnownDataTypes {
				entry := observation.CodeFor(t)
				rows = append(rows, typeRow{
					DataType:    t,
					DisplayName: t.DisplayName(),
					Code:        entry.Code,
					Display:     entry.Display,
					Unit:        entry.Unit,
				})
			}
			return emit(cmd, rows)
		},
	}
}

func consentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Manage the sharing consent",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the current consent record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				r := a.consent.Current(ctx)
				if r == nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "no consent recorded")
					return nil
				}
				return emit(cmd, r)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "grant <type>[,<type>...]",
		Short: "Replace the consent with the given data types",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				res, err := a.consent.Save(ctx, parseTypes(args))
				if err != nil {
					return err
				}
				return emit(cmd, res)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "revoke",
		Short: "Remove the consent record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.consent.Revoke(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "consent revoked")
				return nil
			})
		},
	})

	return cmd
}

func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Print the FHIR bundle of the consented readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, _ := cmd.Flags().GetStringSlice("types")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				bundle, err := a.sharing.Preview(ctx, parseTypes(types))
				if err != nil {
					return err
				}
				return emit(cmd, bundle)
			})
		},
	}
	cmd.Flags().StringSlice("types", nil, "Narrow to these data types")
	return cmd
}

func shareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share <recipient>",
		Short: "Send the consented readings to a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, _ := cmd.Flags().GetStringSlice("types")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				out, err := a.sharing.Share(ctx, sharing.Request{Recipient: args[0], DataTypes: parseTypes(types)})
				if err != nil {
					return err
				}
				if err := emit(cmd, out.Item); err != nil {
					return err
				}
				if out.Item.Status == sharing.StatusFailed {
					return fmt.Errorf("share %s failed", out.Item.ID)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("types", nil, "Share only these consented data types")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the sharing history",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List share attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return emit(cmd, a.sharing.History(ctx))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every history item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				return a.sharing.ClearHistory(ctx)
			})
		},
	})

	return cmd
}

func fixtureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Manage the sample health readings",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Write the default readings to the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.source.Seed(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "fixture seeded")
				return nil
			})
		},
	})
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres store",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolConfig{MaxConns: 2, ConnectTimeout: 10 * time.Second})
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, db.Migrations()))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for AUTH_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
