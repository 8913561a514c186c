package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"redistrict/pkg/apperror"
	"redistrict/pkg/config"
	"redistrict/pkg/logger"
	"redistrict/services/planner-svc/internal/engine"
	"redistrict/services/planner-svc/internal/graphio"
	"redistrict/services/planner-svc/internal/report"
	"redistrict/services/planner-svc/internal/service"
)

type planFlags struct {
	name       string
	districts  int
	seed       int64
	maxSweeps  int
	multiplier int
	workers    int
	persist    bool
	out        string
	graphOut   string
	reportFmt  string
}

func newPlanCmd() *cobra.Command {
	f := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan <graph-file>",
		Short: "Repair contiguity and seed districts",
		Long: `Reads a geo-unit graph (JSON or YAML), repairs every fragmented district,
seeds new districts up to the required count and writes the assignments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0], f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.name, "name", "", "run name (default: graph name)")
	flags.IntVarP(&f.districts, "districts", "k", 0, "required district count")
	flags.Int64Var(&f.seed, "seed", 0, "random seed for neighbour adoption")
	flags.IntVar(&f.maxSweeps, "max-sweeps", 0, "maximum repair sweeps")
	flags.IntVar(&f.multiplier, "candidate-multiplier", 0, "seed candidate window multiplier")
	flags.IntVar(&f.workers, "workers", 0, "component search workers")
	flags.BoolVar(&f.persist, "persist", false, "store the run in the database")
	flags.StringVarP(&f.out, "out", "o", "", "assignments output file (default: <output_dir>/<name>.assignments.json)")
	flags.StringVar(&f.graphOut, "graph-out", "", "write the repaired graph to this file")
	flags.StringVar(&f.reportFmt, "report", "", "also write a report: xlsx, csv or pdf (bare flag uses report.format)")
	flags.Lookup("report").NoOptDefVal = "config"

	return cmd
}

// engineOptions строит параметры движка из конфигурации и явно заданных флагов
func engineOptions(cmd *cobra.Command, cfg config.EngineConfig, f *planFlags) engine.Options {
	opts := engine.Options{
		RequiredDistrictCount:   cfg.RequiredDistrictCount,
		MaxRepairSweeps:         cfg.MaxRepairSweeps,
		SeedCandidateMultiplier: cfg.SeedCandidateMultiplier,
		RandomSeed:              cfg.RandomSeed,
		Workers:                 cfg.Workers,
	}

	flags := cmd.Flags()
	if flags.Changed("districts") {
		opts.RequiredDistrictCount = f.districts
	}
	if flags.Changed("seed") {
		opts.RandomSeed = f.seed
	}
	if flags.Changed("max-sweeps") {
		opts.MaxRepairSweeps = f.maxSweeps
	}
	if flags.Changed("candidate-multiplier") {
		opts.SeedCandidateMultiplier = f.multiplier
	}
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	return opts
}

func runPlan(cmd *cobra.Command, path string, f *planFlags) error {
	ctx := cmd.Context()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := graphio.ReadGraphFile(path)
	if err != nil {
		return err
	}

	svc, err := a.newService(ctx)
	if err != nil {
		return err
	}

	name := f.name
	if name == "" {
		name = g.Name
	}

	req := &service.PlanRequest{
		Name:    name,
		Graph:   g,
		Options: engineOptions(cmd, a.cfg.Engine, f),
		Persist: f.persist,
	}

	reportFmt := f.reportFmt
	if reportFmt == "config" {
		reportFmt = a.cfg.Report.Format
	}
	if reportFmt != "" {
		req.Report = &service.ReportRequest{
			Format:  report.Format(strings.ToLower(reportFmt)),
			Options: report.Options{MaxAssignmentRows: a.cfg.Report.MaxAssignmentRows},
		}
	}

	resp, err := svc.Plan(ctx, req)
	if err != nil {
		return err
	}

	outDir := a.cfg.Report.OutputDir
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to create output directory").
				WithDetails("path", outDir)
		}
	}
	out := f.out
	if out == "" {
		out = filepath.Join(outDir, name+".assignments.json")
	}
	doc := graphio.NewAssignmentDoc(resp.RunID, g.Labels(), resp.Result, resp.Bridges)
	doc.GraphHash = resp.GraphHash
	doc.CacheHit = resp.CacheHit
	if err := graphio.WriteAssignmentsFile(out, doc); err != nil {
		return err
	}

	if f.graphOut != "" {
		if err := graphio.WriteGraphFile(f.graphOut, g); err != nil {
			return err
		}
	}

	if resp.Report != nil {
		reportPath := filepath.Join(outDir, fmt.Sprintf("%s.%s", resp.RunID, req.Report.Format))
		if err := os.WriteFile(reportPath, resp.Report, 0o644); err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to write report").
				WithDetails("path", reportPath)
		}
		logger.Log.Info("Report written", "path", reportPath)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d districts, %d repaired, %d seeded, %d bridges, grade %s -> %s\n",
		resp.RunID,
		len(resp.Stats.Districts),
		resp.Result.RepairedCount(),
		len(resp.Result.SeedingLog),
		len(resp.Bridges),
		resp.Stats.Grade,
		out,
	)
	return nil
}
