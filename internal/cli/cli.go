package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/orderdesk/internal/app"
	"github.com/Additional-Code/orderdesk/internal/migration"
	"github.com/Additional-Code/orderdesk/internal/seeder"
)

const stopTimeout = 10 * time.Second

// NewRootCommand builds the root orderdesk CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "orderdesk",
		Short:         "Orders management service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())

	return root
}

// Execute runs the orderdesk CLI until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if migrate {
				if err := upgrade(cmd); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), app.Module)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply the orders migration before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upgradeCmd := &cobra.Command{
		Use:     "upgrade",
		Aliases: []string{"up"},
		Short:   "Create and seed the orders table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return upgrade(cmd)
		},
	}

	downgradeCmd := &cobra.Command{
		Use:     "downgrade",
		Aliases: []string{"down"},
		Short:   "Drop the orders table and forget the migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
				res, err := mig.Downgrade(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migration %s reverted\n", res.Name)
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
				records, err := mig.Applied(ctx)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
					return nil
				}
				for _, r := range records {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Name, r.AppliedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}

	cmd.AddCommand(upgradeCmd, downgradeCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Re-insert the sample orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&seed)), func(ctx context.Context) error {
				n, err := seed.Orders(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d orders\n", n)
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Consume order events and write the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func upgrade(cmd *cobra.Command) error {
	var mig *migration.Migrator
	return runWithApp(cmd.Context(), fx.Options(app.Migrate, fx.Populate(&mig)), func(ctx context.Context) error {
		res, err := mig.Upgrade(ctx)
		if err != nil {
			return err
		}
		if res.AlreadyApplied {
			fmt.Fprintf(cmd.OutOrStdout(), "migration %s already applied\n", res.Name)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "migration %s applied\n", res.Name)
		}
		return nil
	})
}

// serve starts a long-running application and stops it when ctx is cancelled.
func serve(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
