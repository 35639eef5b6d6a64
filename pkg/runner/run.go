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

package runner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/srtgloss/pkg/engine"
	"github.com/walteh/srtgloss/pkg/subtitle"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// 🏃 Run executes the batch: Scanning → Processing → {Completed, Cancelled,
// Failed}. Per-file failures are recorded and never abort the run; only a
// scan-phase failure does. The returned record is complete and accurate
// regardless of per-file errors.
func (r *Runner) Run(ctx context.Context) (*Record, error) {
	logger := zerolog.Ctx(ctx)
	cfg := r.opts.Config

	record := &Record{
		RunID:         r.opts.RunID,
		Timestamp:     time.Now().UTC(),
		Folder:        cfg.Folder,
		Recursive:     cfg.Recursive,
		DryRun:        cfg.DryRun,
		BackupEnabled: cfg.Backup,
		RulesActive:   len(r.opts.Rules),
	}

	r.setState(StateScanning)
	files, err := r.scan()
	if err != nil {
		record.State = StateFailed
		r.setState(StateFailed)
		r.persist(ctx, record)
		return record, errors.Errorf("scanning %s: %w", cfg.Folder, err)
	}
	logger.Debug().Int("files", len(files)).Str("folder", cfg.Folder).Msg("scan complete")

	rules, err := engine.Compile(r.opts.Rules)
	if err != nil {
		record.State = StateFailed
		r.setState(StateFailed)
		r.persist(ctx, record)
		return record, err
	}

	r.setState(StateProcessing)
	results := make([]FileResult, len(files))
	var done atomic.Int64

	g := &errgroup.Group{}
	g.SetLimit(cfg.Workers)

	// Cancellation is cooperative and observed at file boundaries only: no
	// further files start, but a file mid-write is never interrupted.
	started := 0
	cancelled := false
	for i, path := range files {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		i, path := i, path
		started++
		g.Go(func() error {
			results[i] = r.processFile(ctx, rules, path)
			r.emit(Progress{
				CurrentPath: path,
				FilesDone:   int(done.Add(1)),
				FilesTotal:  len(files),
			})
			return nil
		})
	}
	_ = g.Wait()

	// Results stay in scan order, not completion order.
	record.FileResults = results[:started]
	for _, res := range record.FileResults {
		record.Summary.Scanned++
		switch res.Status {
		case StatusChanged:
			record.Summary.Changed++
		case StatusError:
			record.Summary.Errored++
		}
	}

	if cancelled {
		record.State = StateCancelled
	} else {
		record.State = StateCompleted
	}
	r.setState(record.State)

	if err := r.persist(ctx, record); err != nil {
		return record, err
	}

	logger.Info().
		Str("run_id", record.RunID).
		Str("state", record.State.String()).
		Int("scanned", record.Summary.Scanned).
		Int("changed", record.Summary.Changed).
		Int("errored", record.Summary.Errored).
		Msg("run finalized")
	return record, nil
}

// persist hands the finalized record to the history store, if any. A fresh
// context keeps cancellation from losing the audit record.
func (r *Runner) persist(ctx context.Context, record *Record) error {
	if r.opts.History == nil {
		return nil
	}
	saveCtx := context.WithoutCancel(ctx)
	if err := r.opts.History.Save(saveCtx, record); err != nil {
		return errors.Errorf("saving run record: %w", err)
	}
	return nil
}

// 🔍 scan enumerates candidate files under the folder in deterministic
// lexicographic order. Backup sidecars are never candidates.
func (r *Runner) scan() ([]string, error) {
	cfg := r.opts.Config

	var files []string
	if cfg.Recursive {
		err := filepath.WalkDir(cfg.Folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && r.wanted(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		entries, err := os.ReadDir(cfg.Folder)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			path := filepath.Join(cfg.Folder, e.Name())
			if !e.IsDir() && r.wanted(path) {
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// wanted applies the extension filter and skip globs.
func (r *Runner) wanted(path string) bool {
	cfg := r.opts.Config
	ext := filepath.Ext(path)

	matched := false
	for _, want := range cfg.Extensions {
		if strings.EqualFold(ext, want) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	rel, err := filepath.Rel(cfg.Folder, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range cfg.Skip {
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			continue
		}
		if ok {
			return false
		}
	}
	return true
}

// 📄 processFile runs the sequential per-file pipeline: detect → parse →
// apply → backup → write. Every failure is captured into the result; the
// batch always continues to the next file.
func (r *Runner) processFile(ctx context.Context, rules []engine.CompiledRule, path string) FileResult {
	logger := zerolog.Ctx(ctx)
	result := FileResult{Path: path, Status: StatusUnchanged}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Status = StatusError
		result.Error = errors.Errorf("IOError: reading file: %w", err).Error()
		return result
	}

	text, detection, err := r.opts.Detector.Decode(path, data)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		return result
	}
	result.Charset = detection.Charset

	doc := subtitle.Parse(text)

	changedRules := map[string]bool{}
	var changedOrder []string
	for i := range doc.Units {
		unit := &doc.Units[i]
		if unit.Passthrough {
			continue
		}
		res := engine.Apply(unit.Text(), rules)
		result.RuleFailures = append(result.RuleFailures, res.Failures...)
		if !res.Changed() {
			continue
		}
		result.Diff = append(result.Diff, UnitDiff{Unit: i, Before: unit.Text(), After: res.Text})
		unit.SetText(res.Text)
		for _, m := range res.Matches {
			result.Replacements += m.Count
			if !changedRules[m.RuleID] {
				changedRules[m.RuleID] = true
				changedOrder = append(changedOrder, m.RuleID)
			}
		}
		engine.LogResult(logger, path, i, res)
	}

	if len(result.Diff) == 0 {
		return result
	}
	result.Status = StatusChanged
	result.ChangedRuleIDs = changedOrder

	if r.opts.Config.DryRun {
		return result
	}
	result.Diff = nil

	// Fail-closed: no backup, no write.
	if r.opts.Config.Backup {
		if err := r.opts.Backups.Create(path); err != nil {
			result.Status = StatusError
			result.Error = errors.Errorf("BackupError: %w", err).Error()
			return result
		}
	}

	if err := writeFileAtomic(path, []byte(doc.Serialize())); err != nil {
		result.Status = StatusError
		result.Error = errors.Errorf("IOError: writing file: %w", err).Error()
		return result
	}
	return result
}

// writeFileAtomic writes via a temp file in the same directory plus rename,
// so a crash never leaves a half-written subtitle behind.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return errors.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return errors.Errorf("setting temp file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Errorf("renaming temp file: %w", err)
	}
	return nil
}
