package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewSweepCmd borra las sesiones vencidas una sola vez.
func NewSweepCmd(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, open, func(rt *runtime) error {
				deleted, err := rt.sweeper.SweepOnce(cmd.Context())
				if err != nil {
					return oops.Code("SWEEP_FAILED").Wrap(err)
				}
				cmd.Printf("deleted %d expired sessions\n", deleted)
				return nil
			})
		},
	}
}

func NewActivateCmd(open runtimeOpener) *cobra.Command {
	return newSetActiveCmd(open, "activate", "Activate a user account", true)
}

// NewDeactivateCmd desactiva la cuenta y revoca todas sus sesiones.
func NewDeactivateCmd(open runtimeOpener) *cobra.Command {
	return newSetActiveCmd(open, "deactivate", "Deactivate a user account and revoke its sessions", false)
}

func newSetActiveCmd(open runtimeOpener, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <user-id>",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUserID(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(rt *runtime) error {
				user, err := rt.setActive.Execute(cmd.Context(), userID, active)
				if err != nil {
					return oops.Code("USER_UPDATE_FAILED").With("user_id", userID).Wrap(err)
				}
				cmd.Printf("user %s active=%t\n", user.ID(), user.IsActive())
				return nil
			})
		},
	}
}

// NewRevokeCmd cierra todas las sesiones de un usuario.
func NewRevokeCmd(open runtimeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <user-id>",
		Short: "Revoke every session of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUserID(args)
			if err != nil {
				return err
			}
			return withRuntime(cmd, open, func(rt *runtime) error {
				deleted, err := rt.revoke.Execute(cmd.Context(), userID)
				if err != nil {
					return oops.Code("REVOKE_FAILED").With("user_id", userID).Wrap(err)
				}
				cmd.Printf("revoked %d sessions for user %s\n", deleted, userID)
				return nil
			})
		},
	}
}
