package commands

import (
	"context"
	"fmt"

	"github.com/marmos91/sandfs/pkg/config"
	"github.com/marmos91/sandfs/pkg/users"
	"github.com/spf13/cobra"
)

var (
	initForce         bool
	initAdminUser     string
	initAdminPassword string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the user store and session root",
	Long: `Initialize an empty user store and create the session root.

The server never bootstraps its own state: 'sandfs start' fails until this
command has been run against the configured user store backend. Pass
--admin-user and --admin-password to register a first administrator.

Use 'sandfs config init' to create a configuration file first.

Examples:
  # Initialize with an administrator
  sandfs init --admin-user root --admin-password s3cret

  # Initialize using a custom config file
  sandfs init --config /etc/sandfs/config.yaml

  # Reset an existing user store (all registrations are lost)
  sandfs init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reset an already initialized user store")
	initCmd.Flags().StringVar(&initAdminUser, "admin-user", "", "Username of the first administrator")
	initCmd.Flags().StringVar(&initAdminPassword, "admin-password", "", "Password of the first administrator")
}

func runInit(cmd *cobra.Command, args []string) error {
	if (initAdminUser == "") != (initAdminPassword == "") {
		return fmt.Errorf("--admin-user and --admin-password must be given together")
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	store, err := config.CreateUserStore(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to create user store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.Initialize(ctx, initForce); err != nil {
		return fmt.Errorf("failed to initialize user store: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User store initialized (%s backend)\n", cfg.Users.Backend)
	fmt.Fprintf(out, "Session root: %s\n", store.SessionRoot())

	if initAdminUser != "" {
		if err := store.Register(ctx, initAdminUser, initAdminPassword, string(users.PrivilegeAdmin)); err != nil {
			return fmt.Errorf("failed to register administrator: %w", err)
		}
		fmt.Fprintf(out, "Administrator registered: %s\n", initAdminUser)
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  Start the server with: sandfs start")

	return nil
}
