package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"financify/internal/backend"
	"financify/internal/cli"
	"financify/internal/config"
	"financify/internal/log"
	"financify/internal/reports"
	"financify/internal/services"
	"financify/internal/storage"
)

var (
	reportsUser int64
	enqueueRun  bool
)

var rootCmd = &cobra.Command{
	Use:           "financify",
	Short:         "Operator commands for the financify store",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations to the SQLite database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		if cfg.DataBackend != string(backend.SQLite) {
			return fmt.Errorf("migrate needs the sqlite backend, DATA_BACKEND is %q", cfg.DataBackend)
		}
		if err := storage.RunMigrations(cfg.SQLiteDBPath); err != nil {
			return err
		}
		version, dirty, err := storage.MigrationVersion(cfg.SQLiteDBPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t) at %s\n", version, dirty, cfg.SQLiteDBPath)
		return nil
	},
}

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Generate and inspect monthly reports",
}

var reportsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the report pipeline over all unused statements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(func(ctx context.Context, be *backend.Result) error {
			svc := be.ReportService(enqueueRun)
			if enqueueRun {
				id, err := svc.Enqueue(ctx, 0, reports.TriggerCLI)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "queued report run %s\n", id)
				return nil
			}

			res, err := svc.Generate(ctx, reports.TriggerCLI)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		})
	},
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the reports of one user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(func(ctx context.Context, be *backend.Result) error {
			list, err := be.Store.ListReports(ctx, reportsUser)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tMONTH\tNET WORTH\tASSETS\tLIABILITIES")
			for _, r := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n",
					r.ID, r.Date, r.NetWorth.Amount.StringFixed(2), len(r.AssetIDs), len(r.LiabilityIDs))
			}
			return tw.Flush()
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage API users",
}

var usersAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user and print its API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(func(ctx context.Context, be *backend.Result) error {
			u, err := services.NewUserService(be.Store).Create(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d %s\napi key: %s\n", u.ID, u.Username, u.APIKey)
			return nil
		})
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(func(ctx context.Context, be *backend.Result) error {
			users, err := services.NewUserService(be.Store).List(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tUSERNAME\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		})
	},
}

func setup() (*config.Config, *log.Logger, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, cli.SetupLogger(cfg, log.ComponentCLI), nil
}

// withBackend opens the configured backend for the duration of fn.
func withBackend(fn func(ctx context.Context, be *backend.Result) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	return fn(ctx, be)
}

func init() {
	reportsListCmd.Flags().Int64VarP(&reportsUser, "user", "u", 0, "User id whose reports to list")
	_ = reportsListCmd.MarkFlagRequired("user")
	reportsGenerateCmd.Flags().BoolVar(&enqueueRun, "enqueue", false, "Hand the run to the worker through AMQP instead of running it here")

	reportsCmd.AddCommand(reportsGenerateCmd, reportsListCmd)
	usersCmd.AddCommand(usersAddCmd, usersListCmd)
	rootCmd.AddCommand(migrateCmd, reportsCmd, usersCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
