package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd builds `retzd version`.
func newVersionCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "retzd version %s\n", a.version)
			fmt.Fprintf(cmd.OutOrStdout(), "commit: %s\n", a.commit)
			fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", a.date)
			return nil
		},
	}
}
