package cli

import (
	"github.com/spf13/cobra"

	"github.com/retz/retz/internal/config"
)

// newDemoCmd builds `retzd demo`: the same wiring as serve, but pinned to
// an in-memory store so it can be run with zero setup against no external
// cluster (SPEC_FULL.md "cmd/retzd demo").
func newDemoCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a self-contained demo scheduler with synthetic offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			return runDaemon(cmd.Context(), cfg, true, a.version)
		},
	}
	return cmd
}
