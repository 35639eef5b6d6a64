package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
)

// NewHistoryCmd creates the history command group
func NewHistoryCmd(factory opts.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past runs",
	}
	cmd.AddCommand(
		newHistoryListCmd(factory),
		newHistoryShowCmd(factory),
		newHistoryPruneCmd(factory),
	)
	return cmd
}

func newHistoryListCmd(factory opts.Factory) *cobra.Command {
	var (
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			store, err := o.OpenHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			for _, rec := range runs {
				mode := "apply"
				if rec.DryRun {
					mode = "dry-run"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %-9s %-9s scanned=%d changed=%d errored=%d  %s\n",
					rec.RunID,
					rec.Timestamp.Format(time.RFC3339),
					rec.State, mode,
					rec.Summary.Scanned, rec.Summary.Changed, rec.Summary.Errored,
					rec.Folder)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")
	return cmd
}

func newHistoryShowCmd(factory opts.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "show <runId>",
		Short: "Show a run's full per-file log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			store, err := o.OpenHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s  %s  %s\n", rec.RunID, rec.Timestamp.Format(time.RFC3339), rec.State)
			fmt.Fprintf(out, "folder %s  recursive=%v dry_run=%v backup=%v rules_active=%d\n",
				rec.Folder, rec.Recursive, rec.DryRun, rec.BackupEnabled, rec.RulesActive)
			for _, res := range rec.FileResults {
				fmt.Fprintln(out, res.Log())
				for _, d := range res.Diff {
					fmt.Fprintf(out, "    unit %d: %q -> %q\n", d.Unit, d.Before, d.After)
				}
			}
			fmt.Fprintf(out, "total: %d file(s), changed %d, errored %d\n",
				rec.Summary.Scanned, rec.Summary.Changed, rec.Summary.Errored)
			return nil
		},
	}
}

func newHistoryPruneCmd(factory opts.Factory) *cobra.Command {
	var (
		keep   int
		maxAge time.Duration
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Drop old run records by count or age",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			store, err := o.OpenHistory(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), keep, maxAge)
			if err != nil {
				return err
			}
			o.Console.Infof("pruned %d run record(s)", removed)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 200, "most recent runs to retain (0 disables count pruning)")
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "drop runs older than this (0 disables age pruning)")
	return cmd
}
