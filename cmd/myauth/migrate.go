package main

import (
	"github.com/spf13/cobra"
	"github.com/tendant/myauth/pkg/repository"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args...]",
		Short: "Run database migrations",
		Long: `Run goose migrations against the configured PostgreSQL database.
The command defaults to "up"; "down", "status", "version", "redo" and
"up-to <version>" are passed through to goose.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := "up"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	cmd.Println("Connecting to database...")
	db, err := repository.OpenDB(ctx, cfg.DSN(), repository.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	cmd.Printf("Running migrations (%s)...\n", command)
	if err := repository.RunMigrations(ctx, db, command, args...); err != nil {
		return err
	}

	cmd.Println("Migrations completed successfully")
	return nil
}
