package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/graphio"
	"redistrict/services/planner-svc/internal/service"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the plan cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show plan cache counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(svc *service.PlannerService) error {
				st, err := svc.CacheStats(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear [graph-file]",
		Short: "Drop cached plans for a graph, or all cached plans",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var g *domain.Graph
			if len(args) == 1 {
				var err error
				if g, err = graphio.ReadGraphFile(args[0]); err != nil {
					return err
				}
			}

			return withService(cmd, func(svc *service.PlannerService) error {
				n, err := svc.InvalidateCache(cmd.Context(), g)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d cached plans\n", n)
				return nil
			})
		},
	}
}
