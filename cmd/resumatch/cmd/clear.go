package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/resumatch/internal/catalog"
	"github.com/Aman-CERP/resumatch/internal/engine"
	"github.com/Aman-CERP/resumatch/internal/output"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear <jobs|candidates|all>",
		Short: "Delete every record of a kind and its index",
		Long: `Delete all catalog records of a kind together with its index files.
Record ids start again from 1 afterwards.

You are asked to confirm unless --yes is given.`,
		Example: `  resumatch clear candidates
  resumatch clear all --yes`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"jobs", "candidates", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds, err := parseKinds(args[0])
			if err != nil {
				return err
			}
			return runClear(cmd, kinds, yes)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runClear(cmd *cobra.Command, kinds []catalog.Kind, yes bool) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	answers := bufio.NewReader(cmd.InOrStdin())
	for _, kind := range kinds {
		name := engine.IndexName(kind)
		n, err := a.store.Count(ctx, kind)
		if err != nil {
			return err
		}
		if !yes && !confirm(answers, cmd.OutOrStdout(),
			fmt.Sprintf("Delete %d %s and the %s index?", n, name, name)) {
			out.Statusf("", "Skipped %s", name)
			continue
		}
		removed, err := a.engine.Clear(ctx, kind)
		if err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
		out.Successf("Cleared %d %s", removed, name)
	}
	return nil
}

// confirm asks a yes/no question and treats anything but y or yes as no.
func confirm(in *bufio.Reader, w io.Writer, question string) bool {
	_, _ = fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
