package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/walteh/srtgloss/cmd/srtgloss/opts"
	"github.com/walteh/srtgloss/pkg/glossary"
	"gitlab.com/tozd/go/errors"
)

// NewRulesCmd creates the rules command group
func NewRulesCmd(factory opts.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage the glossary rule set",
	}
	cmd.AddCommand(
		newRulesListCmd(factory),
		newRulesAddCmd(factory),
		newRulesRemoveCmd(factory),
		newRulesEnableCmd(factory, true),
		newRulesEnableCmd(factory, false),
		newRulesMoveCmd(factory),
		newRulesImportCmd(factory),
		newRulesExportCmd(factory),
	)
	return cmd
}

func newRulesListCmd(factory opts.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rules in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			for _, r := range rs.Rules() {
				state := color.GreenString("on ")
				if !r.Enabled {
					state = color.YellowString("off")
				}
				sensitivity := ""
				if r.CaseSensitive {
					sensitivity = " [case]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d %s %-20s %s -> %q%s\n",
					r.Priority, state, r.ID, r.Pattern, r.Replacement, sensitivity)
			}
			return nil
		},
	}
}

func newRulesAddCmd(factory opts.Factory) *cobra.Command {
	var (
		rule     glossary.Rule
		disabled bool
	)
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a rule; rejected unless its pattern compiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			rule.ID = args[0]
			rule.Enabled = !disabled
			if err := rs.Add(rule); err != nil {
				return err
			}
			o.Console.Success(fmt.Sprintf("added rule %s", rule.ID))
			return nil
		},
	}
	cmd.Flags().StringVarP(&rule.Pattern, "pattern", "p", "", "regular expression to match")
	cmd.Flags().StringVarP(&rule.Replacement, "replacement", "t", "", "replacement template ($1-style back-references allowed)")
	cmd.Flags().IntVar(&rule.Priority, "priority", 0, "position in the chain (default: last)")
	cmd.Flags().BoolVar(&rule.CaseSensitive, "case-sensitive", false, "match case exactly")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "add the rule switched off")
	cmd.Flags().StringVar(&rule.Notes, "notes", "", "free-text annotation")
	_ = cmd.MarkFlagRequired("pattern")
	return cmd
}

func newRulesRemoveCmd(factory opts.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if err := rs.Remove(args[0]); err != nil {
				return err
			}
			o.Console.Success(fmt.Sprintf("removed rule %s", args[0]))
			return nil
		},
	}
}

func newRulesEnableCmd(factory opts.Factory, enable bool) *cobra.Command {
	use, action, short := "enable", "enabled", "Enable a rule without removing it"
	if !enable {
		use, action, short = "disable", "disabled", "Disable a rule without removing it"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if err := rs.SetEnabled(args[0], enable); err != nil {
				return err
			}
			o.Console.Success(fmt.Sprintf("%s rule %s", action, args[0]))
			return nil
		},
	}
}

func newRulesMoveCmd(factory opts.Factory) *cobra.Command {
	var priority int
	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a rule to a new priority position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if err := rs.Move(args[0], priority); err != nil {
				return err
			}
			o.Console.Success(fmt.Sprintf("moved rule %s to priority %d", args[0], priority))
			return nil
		},
	}
	cmd.Flags().IntVar(&priority, "to", 1, "target priority (1 applies first)")
	return cmd
}

func newRulesImportCmd(factory opts.Factory) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from a glossary JSON file",
		Long: `Import validates every pattern before accepting the file. A single
invalid rule fails the whole import with a report naming the offending
rule ids; rules are never silently dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if err := rs.Import(cmd.Context(), args[0], merge); err != nil {
				var cerr *glossary.CompileError
				if errors.As(err, &cerr) {
					o.Console.Error(fmt.Sprintf("import rejected: %d invalid rule(s)", len(cerr.RuleIDs)))
				}
				return err
			}
			o.Console.Success(fmt.Sprintf("imported rules from %s", args[0]))
			return nil
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "append to the existing set instead of replacing it")
	return cmd
}

func newRulesExportCmd(factory opts.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export all rules, enabled and disabled alike, preserving order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := factory(cmd)
			if err != nil {
				return err
			}
			rs, err := o.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			if err := rs.Export(cmd.Context(), args[0]); err != nil {
				return err
			}
			o.Console.Success(fmt.Sprintf("exported rules to %s", args[0]))
			return nil
		},
	}
}
