package config

import (
	"fmt"

	"github.com/marmos91/sandfs/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Long: `Create a commented default SandFS configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/sandfs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  sandfs config init

  # Initialize with custom path
  sandfs config init --config /etc/sandfs/config.yaml

  # Force overwrite existing config
  sandfs config init --force`,
	RunE: runConfigInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	fmt.Fprintln(out, "  2. Initialize the user store: sandfs init --admin-user <name> --admin-password <password>")
	fmt.Fprintln(out, "  3. Start the server with: sandfs start")

	return nil
}
