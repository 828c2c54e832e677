package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/helixml/linefit/infrastructure/sink"
)

func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <dir>",
		Short: "Merge per-job sweep results",
		Long: `Merge every <id>_<attr>_<step>.csv file in a directory into
<id>_<attr>.csv, dropping duplicate rows and sorting by chi-square.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd.OutOrStdout(), args[0])
		},
	}
}

func runMerge(w io.Writer, dir string) error {
	merged, err := sink.MergeAll(dir)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		fmt.Fprintf(w, "no job files in %s\n", dir)
		return nil
	}
	prefixes := make([]string, 0, len(merged))
	for prefix := range merged {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	for _, prefix := range prefixes {
		fmt.Fprintf(w, "merged  %s\n", merged[prefix])
	}
	return nil
}
