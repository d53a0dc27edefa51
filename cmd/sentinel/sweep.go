package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/cnii-sentinel/internal/app"
)

func newSweepCmd() *cobra.Command {
	var (
		extraZone string
		noPersist bool
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one sweep and print the report as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.New(ctx, rt.cfg, rt.logger, app.Options{NoPersist: noPersist})
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}
			defer func() {
				if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
					rt.logger.Warn("service shutdown incomplete", zap.Error(cerr))
				}
			}()

			report, err := a.Runner.Run(ctx, extraZone)
			if err != nil {
				return fmt.Errorf("run sweep: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&extraZone, "extra-zone", "", "additional corridor to scan after the catalogue")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip the report store")
	return cmd
}
