package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewRootCmd crea el comando raiz de authctl.
func NewRootCmd(open runtimeOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authctl",
		Short: "authsuite operator CLI",
		Long: `authctl administra sesiones y cuentas de authsuite: limpieza de sesiones
vencidas, activacion de usuarios, revocacion de sesiones y migraciones.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewSweepCmd(open))
	cmd.AddCommand(NewActivateCmd(open))
	cmd.AddCommand(NewDeactivateCmd(open))
	cmd.AddCommand(NewRevokeCmd(open))
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// withRuntime abre el runtime, ejecuta fn y libera recursos.
func withRuntime(cmd *cobra.Command, open runtimeOpener, fn func(rt *runtime) error) error {
	rt, err := open(cmd.Context())
	if err != nil {
		return err
	}
	if rt.close != nil {
		defer rt.close()
	}
	return fn(rt)
}

func requireUserID(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", oops.Code("INVALID_ARGS").Errorf("exactly one user id is required")
	}
	return args[0], nil
}
