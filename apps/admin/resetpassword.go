package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resetpassword EMAIL",
		Short: "Reset a user's password; the password is prompted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			if err = cli.usrSvc.SetPassword(cmd.Context(), args[0], pwd); err != nil {
				return err
			}
			printf(cmd, "password reset for %s\n", args[0])
			return nil
		},
	}
}
