package opts

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/pkg/config"
	"github.com/walteh/srtgloss/pkg/glossary"
	"github.com/walteh/srtgloss/pkg/history"
	"github.com/walteh/srtgloss/pkg/log"
	"gitlab.com/tozd/go/errors"
)

// RootOpts contains shared options used by all commands
type RootOpts struct {
	Config  *config.Config
	Console *log.Logger
}

// Factory builds RootOpts once flags are parsed; each command calls it at
// the top of its RunE.
type Factory func(cmd *cobra.Command) (*RootOpts, error)

// LoadRules opens the configured glossary file.
func (o *RootOpts) LoadRules(ctx context.Context) (*glossary.RuleSet, error) {
	rs, err := glossary.Load(ctx, o.Config.Glossary)
	if err != nil {
		return nil, errors.Errorf("loading glossary: %w", err)
	}
	return rs, nil
}

// OpenHistory opens the configured history database.
func (o *RootOpts) OpenHistory(ctx context.Context) (*history.Store, error) {
	db, err := history.Open(o.Config.HistoryDB)
	if err != nil {
		return nil, errors.Errorf("opening history: %w", err)
	}
	return history.NewStore(db), nil
}
