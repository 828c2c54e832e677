package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixml/linefit/domain/task"
	"github.com/helixml/linefit/internal/config"
)

func sweepCmd(envFile *string) *cobra.Command {
	var (
		sweepFile string
		outputDir string
		workers   int
	)

	cmd := &cobra.Command{
		Use:   "sweep <file.xml>",
		Short: "Scan parameters across grids in parallel",
		Long: `Scan parameters across grids in parallel.

Each step of each scanned parameter runs as an independent optimization with
that parameter locked at the step value. Per-job results are written to the
output directory as <id>_<attr>_<step>.csv and merged into <id>_<attr>.csv,
sorted by chi-square. Failed jobs are reported and do not stop the sweep.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.OutOrStdout(), *envFile, args[0], sweepFile, outputDir, workers)
		},
	}

	cmd.Flags().StringVar(&sweepFile, "config", "", "Sweep configuration (YAML)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Override the sweep output directory")
	cmd.Flags().IntVar(&workers, "workers", 0, "Override the number of workers")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSweep(w io.Writer, envFile, path, sweepFile, outputDir string, workers int) error {
	plan, err := config.LoadSweep(sweepFile)
	if err != nil {
		return err
	}
	if outputDir != "" {
		plan.OutputDir = outputDir
	}
	if workers > 0 {
		plan.Workers = &workers
	}

	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	ctx, cancel := signalContext(logger)
	defer cancel()

	m, err := client.Load(path)
	if err != nil {
		return err
	}

	report, err := client.Sweep(ctx, m, plan)
	if report.RunID != "" {
		fmt.Fprintf(w, "run     %s\n", report.RunID)
		fmt.Fprintf(w, "jobs    %d succeeded, %d failed of %d in %s\n",
			report.Succeeded, report.Failed, report.Total, report.Elapsed.Round(time.Millisecond))
		for _, st := range report.Statuses {
			if st.State() == task.ReportingStateFailed {
				fmt.Fprintf(w, "failed  %s: %s\n", st.ID(), st.Error())
			}
		}
		prefixes := make([]string, 0, len(report.Merged))
		for prefix := range report.Merged {
			prefixes = append(prefixes, prefix)
		}
		sort.Strings(prefixes)
		for _, prefix := range prefixes {
			fmt.Fprintf(w, "merged  %s\n", report.Merged[prefix])
		}
	}
	return err
}
