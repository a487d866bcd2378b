package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/retz/retz/internal/config"
	"github.com/retz/retz/internal/retention"
	"github.com/retz/retz/internal/store"
)

// newGCCmd builds `retzd gc`: one retention sweep against an existing
// store file, for cron-style external scheduling rather than retzd's own
// ticker (SPEC_FULL.md "cmd/retzd gc").
func newGCCmd(a *App) *cobra.Command {
	var leeway time.Duration

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run one retention sweep and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if leeway <= 0 {
				leeway = time.Duration(cfg.RetentionLeewaySeconds) * time.Second
			}

			st, err := store.Open(cfg.StoreDSN, store.WithLogger(log.Default()))
			if err != nil {
				return fmt.Errorf("retzd gc: open store: %w", err)
			}
			defer st.Stop()

			gc := retention.New(st, cfg.RetentionInterval, leeway, retention.WithLogger(log.Default()))
			return gc.Sweep()
		},
	}

	cmd.Flags().DurationVar(&leeway, "leeway", 0,
		"terminal jobs finished longer than this ago are deleted (default: config's retention_leeway_seconds)")

	return cmd
}
