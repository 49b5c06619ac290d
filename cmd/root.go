// Package cmd is the forgecode CLI: a cobra root command with
// server/cli/models/version subcommands, grounded on the teacher's
// cmd/root.go (PersistentFlags for --config/--verbose, one
// AddCommand per subcommand, Execute's top-level error->exit(1)).
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags
// "-X github.com/nextlevelbuilder/forgecode/cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "forgecode",
	Short: "forgecode — multi-agent code-generation orchestration engine",
	Long:  "forgecode: a Coordinator/Agent/Loop-Manager orchestration engine for AI-driven code generation, with a WebSocket streaming session layer for client front-ends.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json5 or $FORGECODE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serverCmd())
	rootCmd.AddCommand(cliCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(versionCmd())
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("FORGECODE_CONFIG"); v != "" {
		return v
	}
	return "config.json5"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
