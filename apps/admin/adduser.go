package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/soptable/portal/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the user owning --email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			usr, created, err := cli.addUser(cmd, name, email, role, pwd)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			printf(cmd, "%s user %d <%s>\n", verb, usr.ID, usr.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&email, "email", "", "email, the login")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "one of "+strings.Join(user.AllRoles, ", "))
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(cmd *cobra.Command, name, email, role, pwd string) (user.User, bool, error) {
	ctx := cmd.Context()

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, false, err
		}
		if name == "" {
			name = email
		}
		nu := user.NewUser{Name: name, Email: email, Password: pwd, Role: role}
		if err = nu.Validate(cli.validate, cli.usrSvc); err != nil {
			return user.User{}, false, err
		}
		usr, err = cli.usrSvc.Create(ctx, nu)
		return usr, err == nil, err
	}

	uu := user.UpdateUser{Password: &pwd, Role: &role}
	if name != "" {
		uu.Name = &name
	}
	if err = uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, false, err
	}
	usr, err = cli.usrSvc.Update(ctx, usr, uu)
	return usr, false, err
}
