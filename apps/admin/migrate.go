package main

import (
	"github.com/spf13/cobra"

	"github.com/soptable/portal/storage/database"
)

var gooseRunFunc = database.RunMigrations // mockable

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run a migration command: up, up-to VERSION, down, down-to VERSION, redo, reset, status, version",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return gooseRunFunc(cmd.Context(), cli.db.DB, cli.db.DriverName(), args[0], args[1:]...)
		},
	}
}
