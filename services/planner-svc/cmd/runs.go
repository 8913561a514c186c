package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"redistrict/services/planner-svc/internal/repository"
	"redistrict/services/planner-svc/internal/service"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored plan runs",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsGetCmd(), newRunsDeleteCmd())
	return cmd
}

// withService поднимает сервис для команды и освобождает ресурсы после неё
func withService(cmd *cobra.Command, fn func(svc *service.PlannerService) error) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.newService(ctx)
	if err != nil {
		return err
	}
	return fn(svc)
}

func newRunsListCmd() *cobra.Command {
	opts := &repository.ListOptions{}
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List plan runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.Status = repository.Status(status)
			return withService(cmd, func(svc *service.PlannerService) error {
				runs, total, err := svc.ListRuns(cmd.Context(), opts)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tDISTRICTS\tSWEEPS\tDURATION_MS\tCREATED")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.2f\t%s\n",
						r.ID, r.Name, r.Status, r.DistrictCount, r.Sweeps, r.DurationMs,
						r.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				fmt.Fprintf(w, "\n%d of %d runs\n", len(runs), total)
				return w.Flush()
			})
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Limit, "limit", 20, "page size (max 100)")
	flags.IntVar(&opts.Offset, "offset", 0, "page offset")
	flags.StringVar(&status, "status", "", "filter by status: succeeded, failed")
	flags.StringVar(&opts.GraphHash, "graph-hash", "", "filter by graph hash")

	return cmd
}

func newRunsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <run-id>",
		Short: "Show a run with its audit records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.PlannerService) error {
				run, err := svc.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), run)
			})
		},
	}
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(svc *service.PlannerService) error {
				if err := svc.DeleteRun(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
