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

// Package runner orchestrates a batch run: enumerate files, decode, parse,
// apply the glossary snapshot, back up and write, and aggregate results
// into an immutable run record.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/walteh/srtgloss/pkg/backup"
	"github.com/walteh/srtgloss/pkg/config"
	"github.com/walteh/srtgloss/pkg/encoding"
	"github.com/walteh/srtgloss/pkg/engine"
	"github.com/walteh/srtgloss/pkg/glossary"
	"gitlab.com/tozd/go/errors"
)

// 🚦 State is the batch run state machine.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateProcessing
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns a string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateProcessing:
		return "processing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// 📊 FileStatus is the per-file outcome.
type FileStatus string

const (
	StatusChanged   FileStatus = "changed"
	StatusUnchanged FileStatus = "unchanged"
	StatusError     FileStatus = "error"
)

// 📄 FileResult is one fileResults entry in the run record.
type FileResult struct {
	Path           string           `json:"path"`
	Status         FileStatus       `json:"status"`
	Charset        string           `json:"charset,omitempty"`
	ChangedRuleIDs []string         `json:"changed_rule_ids,omitempty"`
	Replacements   int              `json:"replacements,omitempty"`
	RuleFailures   []engine.Failure `json:"rule_failures,omitempty"`
	Diff           []UnitDiff       `json:"diff,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Log renders the result as one audit-log line.
func (r FileResult) Log() string {
	switch r.Status {
	case StatusChanged:
		return fmt.Sprintf("[CHANGED] %s", r.Path)
	case StatusError:
		return fmt.Sprintf("[ERROR]   %s -> %s", r.Path, r.Error)
	default:
		return fmt.Sprintf("[OK]      %s", r.Path)
	}
}

// 🔀 UnitDiff records one caption unit's before/after text. Populated on
// dry runs, where this is the only output.
type UnitDiff struct {
	Unit   int    `json:"unit"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Summary counts the per-file outcomes of a run.
type Summary struct {
	Scanned int `json:"scanned"`
	Changed int `json:"changed"`
	Errored int `json:"errored"`
}

// 🧾 Record is the durable audit record of one run. It is finalized on
// completion or cancellation and immutable thereafter.
type Record struct {
	RunID         string       `json:"run_id"`
	Timestamp     time.Time    `json:"timestamp"`
	Folder        string       `json:"folder"`
	Recursive     bool         `json:"recursive"`
	DryRun        bool         `json:"dry_run"`
	BackupEnabled bool         `json:"backup_enabled"`
	RulesActive   int          `json:"rules_active"`
	State         State        `json:"state"`
	FileResults   []FileResult `json:"file_results"`
	Summary       Summary      `json:"summary"`
}

// 📢 Progress is a UI-only event; the presentation layer must not infer
// correctness from it.
type Progress struct {
	CurrentPath string
	FilesDone   int
	FilesTotal  int
}

// 💾 Recorder persists finalized run records.
type Recorder interface {
	Save(ctx context.Context, rec *Record) error
}

// 🔧 Options contains the runner's collaborators.
type Options struct {
	// Config is the immutable run configuration, snapshotted at run start.
	Config *config.Config
	// Rules is the active rule snapshot; concurrent glossary edits do not
	// affect an in-flight run.
	Rules []glossary.Rule
	// Detector picks a charset per file.
	Detector *encoding.Detector
	// Backups manages sidecar copies.
	Backups *backup.Manager
	// History persists the finalized record. Optional.
	History Recorder
	// Progress receives UI events. Optional; sends never block.
	Progress chan<- Progress
	// RunID names the run. Empty means a timestamp-derived id.
	RunID string
}

// 🏃 Runner executes one batch run.
type Runner struct {
	opts Options

	mu    sync.Mutex
	state State
}

// 🏭 New creates a runner with the given options.
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.Errorf("config is required")
	}
	if opts.Config.Folder == "" {
		return nil, errors.Errorf("folder is required")
	}
	if opts.Detector == nil {
		return nil, errors.Errorf("encoding detector is required")
	}
	if opts.Config.Workers < 1 {
		// A zero worker limit would stall the pool forever.
		cfg := *opts.Config
		cfg.Workers = 1
		opts.Config = &cfg
	}
	if opts.Backups == nil {
		opts.Backups = backup.NewManager()
	}
	if opts.RunID == "" {
		opts.RunID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return &Runner{opts: opts, state: StateIdle}, nil
}

// State returns the current run state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// emit sends a progress event without ever blocking the pipeline.
func (r *Runner) emit(p Progress) {
	if r.opts.Progress == nil {
		return
	}
	select {
	case r.opts.Progress <- p:
	default:
	}
}
