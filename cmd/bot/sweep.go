package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newSweepCommand() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Cancel new and pending purchases older than the threshold and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.PurchaseStaleAfter
			}
			a, err := newApp(cmd.Context(), cfg, nil, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.purchases.Sweep(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			removed, err := a.sessions.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %d purchases, removed %d sessions\n", n, removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age after which unpaid purchases are cancelled")
	return cmd
}
