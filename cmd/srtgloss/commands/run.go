package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
	"github.com/walteh/srtgloss/pkg/backup"
	"github.com/walteh/srtgloss/pkg/encoding"
	"github.com/walteh/srtgloss/pkg/history"
	"github.com/walteh/srtgloss/pkg/runner"
	"gitlab.com/tozd/go/errors"
)

// NewRunCmd creates the run command
func NewRunCmd(factory opts.Factory) *cobra.Command {
	var (
		recursive bool
		dryRun    bool
		noBackup  bool
		workers   int
		glossPath string
		exts      []string
	)

	cmd := &cobra.Command{
		Use:   "run [folder]",
		Short: "Apply the glossary to every subtitle file under a folder",
		Long: `Run enumerates subtitle files under the folder, applies the enabled
glossary rules to each caption's text in priority order, and writes the
result back. Originals are copied to .bak sidecars first unless backups
are disabled. With --dry-run nothing on disk changes; the would-be diff
is recorded in the run history instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ctx = zerolog.Ctx(ctx).With().Str("command", "run").Logger().WithContext(ctx)

			o, err := factory(cmd)
			if err != nil {
				return err
			}

			cfg := *o.Config
			if len(args) == 1 {
				cfg.Folder = args[0]
			}
			if cmd.Flags().Changed("recursive") {
				cfg.Recursive = recursive
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun = dryRun
			}
			if cmd.Flags().Changed("no-backup") {
				cfg.Backup = !noBackup
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if cmd.Flags().Changed("glossary") {
				cfg.Glossary = glossPath
			}
			if cmd.Flags().Changed("ext") {
				cfg.Extensions = exts
			}
			if err := cfg.Validate(); err != nil {
				return errors.Errorf("validating run config: %w", err)
			}
			if cfg.Folder == "" {
				return errors.Errorf("folder is required (argument or config)")
			}
			o.Config = &cfg

			rules, err := o.LoadRules(ctx)
			if err != nil {
				return err
			}
			store, err := o.OpenHistory(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			detector, err := encoding.NewDetector(cfg.LegacyEncoding)
			if err != nil {
				return err
			}

			progress := make(chan runner.Progress, 16)
			drained := make(chan struct{})
			go func() {
				defer close(drained)
				for p := range progress {
					zerolog.Ctx(ctx).Debug().
						Str("file", p.CurrentPath).
						Int("done", p.FilesDone).
						Int("total", p.FilesTotal).
						Msg("progress")
				}
			}()

			r, err := runner.New(runner.Options{
				Config:   &cfg,
				Rules:    rules.Active(),
				Detector: detector,
				Backups:  backup.NewManager(),
				History:  store,
				Progress: progress,
				RunID:    history.NewRunID(),
			})
			if err != nil {
				return err
			}

			rec, runErr := r.Run(ctx)
			close(progress)
			<-drained

			o.Console.RunHeader(rec)
			for _, res := range rec.FileResults {
				o.Console.LogFileResult(res)
			}
			o.Console.RunSummary(rec)

			if runErr != nil {
				return errors.Errorf("run %s: %w", rec.RunID, runErr)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subfolders")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report changes without writing files")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip .bak sidecar creation")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "parallel file workers")
	cmd.Flags().StringVarP(&glossPath, "glossary", "g", "", "glossary file path")
	cmd.Flags().StringSliceVar(&exts, "ext", nil, "file extensions to process (e.g. .srt)")
	return cmd
}
