package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func synthCmd(envFile *string) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "synth <file.xml>",
		Short: "Write the synthesized model spectrum",
		Long: `Write wavelength, flux, error, continuum and model columns for a fit file.
Output goes to --out, or to stdout when --out is "-" or not given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(cmd.OutOrStdout(), *envFile, args[0], out)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output file (default: stdout)")

	return cmd
}

func runSynth(stdout io.Writer, envFile, path, out string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	client, logger, err := openClient(cfg)
	if err != nil {
		return err
	}
	defer closeClient(client, logger)

	m, err := client.Load(path)
	if err != nil {
		return err
	}

	if out == "" || out == "-" {
		return client.WriteSynthesis(stdout, m)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := client.WriteSynthesis(f, m); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (chi2=%g dof=%d)\n", out, m.ChiSquare(), m.DOF())
	return nil
}
