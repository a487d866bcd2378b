// Package cli wires Retz's cobra command tree: retzd serve, retzd demo,
// retzd gc, and retzd version, all sharing one App for the config path
// and version metadata (spec §4, SPEC_FULL.md "cmd/retzd").
package cli

import (
	"github.com/spf13/cobra"
)

// App holds the state shared across every retzd subcommand.
type App struct {
	rootCmd *cobra.Command

	configPath string

	version string
	commit  string
	date    string
}

// New builds the retzd root command with every subcommand attached.
func New(version, commit, date string) *App {
	a := &App{version: version, commit: commit, date: date}
	a.setupRootCmd()
	return a
}

// Execute runs the CLI, returning the first error any subcommand reports.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "retzd",
		Short: "Retz job scheduler daemon",
		Long: `retzd is the Retz job scheduler server: it persists Applications
and Jobs, bin-packs the queue against broker offers, and retires
terminal Jobs on a retention schedule.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "retz.yaml",
		"path to the YAML config file (defaults applied if absent)")

	a.rootCmd.AddCommand(newServeCmd(a))
	a.rootCmd.AddCommand(newDemoCmd(a))
	a.rootCmd.AddCommand(newGCCmd(a))
	a.rootCmd.AddCommand(newVersionCmd(a))
}
