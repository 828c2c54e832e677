package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	domainservice "github.com/helixml/linefit/domain/service"
	"github.com/helixml/linefit/internal/config"
)

func fitCmd(envFile *string) *cobra.Command {
	var (
		optimizer string
		out       string
		save      string
	)

	cmd := &cobra.Command{
		Use:   "fit <file.xml>",
		Short: "Optimize the free parameters of a fit file",
		Long: `Optimize the free parameters of a fit file and write the result.

The optimized model is written to --out, or to <file>.fit.xml next to the
input when --out is not given. The input file is never modified.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(cmd.OutOrStdout(), *envFile, args[0], optimizer, out, save)
		},
	}

	cmd.Flags().StringVar(&optimizer, "optimizer", config.OptimizerAnneal, "Optimizer: anneal or external")
	cmd.Flags().StringVar(&out, "out", "", "Output fit file (default: <file>.fit.xml)")
	cmd.Flags().StringVar(&save, "save", "", "Also store the result in the fit database under this name")

	return cmd
}

func runFit(w io.Writer, envFile, path, optimizer, out, save string) error {
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
	fmt.Fprintf(w, "start   chi2=%g dof=%d\n", m.ChiSquare(), m.DOF())

	result, err := client.Fit(ctx, m, optimizer)
	if err != nil {
		return err
	}
	printResult(w, result)

	if out == "" {
		out = defaultFitOutput(path)
	}
	if err := client.Save(out, result.Model); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(w, "wrote   %s\n", out)

	if save != "" {
		id, err := client.Fits.Save(ctx, save, result.Model)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "stored  %s as fit %d\n", save, id)
	}
	return nil
}

func printResult(w io.Writer, r domainservice.Result) {
	fmt.Fprintf(w, "result  chi2=%g dof=%d iterations=%d accepted=%d rejected=%d\n",
		r.ChiSquare, r.Model.DOF(), r.Iterations, r.Accepted, r.Rejected)
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "warning %s\n", d)
	}
}

func defaultFitOutput(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".fit" + ext
}
