// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/walteh/srtgloss/pkg/runner"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 45 // Base width for file path
	statusWidth = 12 // Width for status text
)

// 🎯 Logger renders per-file run output on the console while mirroring it to
// zerolog for debugging.
type Logger struct {
	zlog    zerolog.Logger
	console io.Writer
	mu      sync.Mutex
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 📝 formatFileResult formats one per-file outcome for display
func (l *Logger) formatFileResult(res runner.FileResult) string {
	var symbol rune
	var symbolColor color.Attribute
	switch res.Status {
	case runner.StatusChanged:
		symbol = '⟳'
		symbolColor = color.FgGreen
	case runner.StatusError:
		symbol = '✗'
		symbolColor = color.FgRed
	default:
		symbol = '•'
		symbolColor = color.Faint
	}

	detail := ""
	switch {
	case res.Error != "":
		detail = res.Error
	case res.Replacements > 0:
		detail = fmt.Sprintf("%d replacement(s)", res.Replacements)
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, res.Path),
		fmt.Sprintf("%-*s", statusWidth, string(res.Status)),
		detail)
}

// 📝 LogFileResult logs one per-file outcome
func (l *Logger) LogFileResult(res runner.FileResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintln(l.console, l.formatFileResult(res))

	l.zlog.Info().
		Str("file", res.Path).
		Str("status", string(res.Status)).
		Str("charset", res.Charset).
		Int("replacements", res.Replacements).
		Strs("rules", res.ChangedRuleIDs).
		Msg("file processed")
}

// 📝 RunHeader prints the run banner
func (l *Logger) RunHeader(rec *runner.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	mode := "apply"
	if rec.DryRun {
		mode = "dry-run"
	}
	fmt.Fprintf(l.console, "[%s %s]\n",
		color.New(color.FgCyan).Sprint(rec.Folder),
		color.New(color.Faint).Sprint("• "+mode))

	l.zlog.Info().
		Str("run_id", rec.RunID).
		Str("folder", rec.Folder).
		Bool("recursive", rec.Recursive).
		Bool("dry_run", rec.DryRun).
		Bool("backup", rec.BackupEnabled).
		Int("rules_active", rec.RulesActive).
		Msg("starting run")
}

// 📝 RunSummary prints the final counters
func (l *Logger) RunSummary(rec *runner.Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(l.console, "\n%s %s scanned %d • changed %d • errored %d\n",
		color.New(color.Bold, color.FgCyan).Sprint("srtgloss"),
		color.New(color.Faint).Sprint(rec.State.String()+" •"),
		rec.Summary.Scanned, rec.Summary.Changed, rec.Summary.Errored)

	l.zlog.Info().
		Str("run_id", rec.RunID).
		Str("state", rec.State.String()).
		Int("scanned", rec.Summary.Scanned).
		Int("changed", rec.Summary.Changed).
		Int("errored", rec.Summary.Errored).
		Msg("run complete")
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("srtgloss")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}
