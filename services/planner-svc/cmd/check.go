package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"redistrict/pkg/apperror"
	"redistrict/services/planner-svc/internal/graphio"
)

func newCheckCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "check <graph-file>",
		Short: "Validate a graph and report fragmented districts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			g, err := graphio.ReadGraphFile(args[0])
			if err != nil {
				return err
			}

			svc, err := a.newService(ctx)
			if err != nil {
				return err
			}

			rep, err := svc.Check(ctx, g)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}

			if !rep.Valid {
				return apperror.New(apperror.CodeInvalidInput, "graph failed validation").
					WithDetails("errors", len(rep.Errors))
			}
			if strict && !rep.Contiguous() {
				return apperror.Newf(apperror.CodeInvalidInput, "%d districts are fragmented", len(rep.Fragmented))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any district is fragmented")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
