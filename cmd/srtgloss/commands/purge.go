package commands

import (
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
	"github.com/walteh/srtgloss/pkg/backup"
	"gitlab.com/tozd/go/errors"
)

// NewPurgeCmd creates the purge command
func NewPurgeCmd(factory opts.Factory) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:   "purge [folder]",
		Short: "Delete .bak sidecars under a folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := zerolog.Ctx(ctx).With().Str("command", "purge").Logger()

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

			deleted, err := backup.NewManager().Purge(originals)
			logger.Info().Int("deleted", deleted).Msg("purged backups")
			if err != nil {
				pterm.Warning.Printfln("deleted %d sidecar(s) before failing", deleted)
				return err
			}
			pterm.Success.WithPrefix(pterm.Prefix{Text: "🗑️"}).Printfln("deleted %d sidecar(s)", deleted)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include subfolders")
	return cmd
}
