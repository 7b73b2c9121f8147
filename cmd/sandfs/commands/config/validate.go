package config

import (
	"fmt"

	"github.com/marmos91/sandfs/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the SandFS configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  sandfs config validate

  # Validate specific config file
  sandfs config validate --config /etc/sandfs/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	var warnings []string
	if cfg.Users.Backend == "memory" {
		warnings = append(warnings, "memory user backend loses all registrations on restart")
	}
	if cfg.Adapters.Line.MaxConnections == 0 {
		warnings = append(warnings, "no connection limit configured (adapters.line.max_connections)")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	fmt.Fprintln(out, "Validation: OK")

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	fmt.Fprintf(out, "\nConfiguration summary:\n")
	fmt.Fprintf(out, "  Users backend:   %s\n", cfg.Users.Backend)
	fmt.Fprintf(out, "  Session root:    %s\n", cfg.Server.SessionRoot)
	fmt.Fprintf(out, "  Line port:       %d\n", cfg.Adapters.Line.Port)
	fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)

	return nil
}
