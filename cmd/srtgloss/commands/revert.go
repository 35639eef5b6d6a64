package commands

import (
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
	"github.com/walteh/srtgloss/pkg/backup"
	"gitlab.com/tozd/go/errors"
)

// NewRevertCmd creates the revert command
func NewRevertCmd(factory opts.Factory) *cobra.Command {
	var (
		recursive   bool
		keepBackups bool
	)

	cmd := &cobra.Command{
		Use:   "revert [folder]",
		Short: "Restore files from their .bak sidecars",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx).With().Str("command", "revert").Logger()

			o, err := factory(cmd)
			if err != nil {
				return err
			}
			folder := o.Config.Folder
			if len(args) == 1 {
				folder = args[0]
			}
			if folder == "" {
				return errors.Errorf("folder is required (argument or config)")
			}
			if cmd.Flags().Changed("recursive") {
				o.Config.Recursive = recursive
			}

			originals, err := backup.Find(folder, o.Config.Recursive)
			if err != nil {
				return err
			}
			if len(originals) == 0 {
				pterm.Info.Println("no .bak sidecars found")
				return nil
			}

			mgr := backup.NewManager()
			restored := 0
			failed := 0
			for _, path := range originals {
				if err := mgr.Revert(path, !keepBackups); err != nil {
					failed++
					pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Printfln("revert %s: %v", path, err)
					logger.Error().Err(err).Str("file", path).Msg("revert failed")
					continue
				}
				restored++
				pterm.Success.WithPrefix(pterm.Prefix{Text: "↩️"}).Printfln("restored %s", path)
				logger.Info().Str("file", path).Msg("restored from backup")
			}

			pterm.Info.Printfln("restored %d file(s), %d failure(s)", restored, failed)
			if failed > 0 {
				return errors.Errorf("%d file(s) failed to revert", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subfolders")
	cmd.Flags().BoolVar(&keepBackups, "keep-backups", false, "leave .bak sidecars in place after restoring")
	return cmd
}
