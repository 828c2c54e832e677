package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixml/linefit/domain/repository"
)

func importCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.xml>...",
		Short: "Store fit files in the fit database",
		Long: `Store fit files in the fit database. Each file is loaded with its
spectrum, evaluated, and stored under its base name. Requires DB_URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.OutOrStdout(), *envFile, args)
		},
	}
}

func runImport(w io.Writer, envFile string, paths []string) error {
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

	ids, err := client.Import(ctx, paths...)
	for i, id := range ids {
		fmt.Fprintf(w, "stored  %s as fit %d\n", paths[i], id)
	}
	return err
}

func listCmd(envFile *string) *cobra.Command {
	var (
		name    string
		limit   int
		offset  int
		maxChi2 float64
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fits stored in the fit database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := []repository.Option{repository.WithLimit(limit), repository.WithOffset(offset)}
			if name != "" {
				opts = append(opts, repository.WithName(name))
			}
			if cmd.Flags().Changed("max-chi2") {
				opts = append(opts, repository.WithMaxChiSquare(maxChi2))
			}
			return runList(cmd.OutOrStdout(), *envFile, opts...)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Only list fits with this name")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of fits to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many fits")
	cmd.Flags().Float64Var(&maxChi2, "max-chi2", 0, "Only list fits with chi-square at most this value")

	return cmd
}

func runList(w io.Writer, envFile string, opts ...repository.Option) error {
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

	summaries, err := client.Fits.List(ctx, opts...)
	if err != nil {
		return err
	}
	total, err := client.Fits.Count(ctx, opts...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCHI2\tDOF\tABSORBERS\tCREATED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%d\t%s\t%g\t%d\t%d\t%s\n",
			s.ID(), s.Name(), s.ChiSquare(), s.DOF(), s.Absorbers(), s.CreatedAt().Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if int64(len(summaries)) < total {
		fmt.Fprintf(w, "showing %d of %d fits\n", len(summaries), total)
	}
	return nil
}
