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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/srtgloss/pkg/backup"
	"github.com/walteh/srtgloss/pkg/config"
	"github.com/walteh/srtgloss/pkg/encoding"
	"github.com/walteh/srtgloss/pkg/glossary"
)

// fakeRecorder captures the record handed to persist.
type fakeRecorder struct {
	saved *Record
}

func (f *fakeRecorder) Save(ctx context.Context, rec *Record) error {
	f.saved = rec
	return nil
}

func newTestConfig(t *testing.T, folder string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Folder = folder
	return cfg
}

func newTestDetector(t *testing.T) *encoding.Detector {
	t.Helper()
	d, err := encoding.NewDetector("")
	require.NoError(t, err)
	return d
}

func writeSRT(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

const sampleSRT = "1\n00:00:01,000 --> 00:00:02,000\nNhấn nút nguồn\n\n2\n00:00:03,000 --> 00:00:04,000\nKhông đổi gì cả\n"

func TestRunAppliesRulesAndBacksUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeSRT(t, path, sampleSRT)

	history := &fakeRecorder{}
	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
		History:  history,
		RunID:    "test-run-1",
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateCompleted, record.State)
	assert.Equal(t, StateCompleted, r.State())
	assert.Equal(t, "test-run-1", record.RunID)
	assert.Equal(t, 3, record.RulesActive)
	assert.Equal(t, Summary{Scanned: 1, Changed: 1, Errored: 0}, record.Summary)

	require.Len(t, record.FileResults, 1)
	res := record.FileResults[0]
	assert.Equal(t, StatusChanged, res.Status)
	assert.Equal(t, encoding.UTF8, res.Charset)
	assert.Equal(t, []string{"nut"}, res.ChangedRuleIDs)
	assert.Equal(t, 1, res.Replacements)
	assert.Nil(t, res.Diff, "diffs are only kept on dry runs")

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"1\n00:00:01,000 --> 00:00:02,000\nNhấn node nguồn\n\n2\n00:00:03,000 --> 00:00:04,000\nKhông đổi gì cả\n",
		string(got))

	bak, err := os.ReadFile(backup.SidecarPath(path))
	require.NoError(t, err)
	assert.Equal(t, sampleSRT, string(bak), "sidecar holds the pre-run bytes")

	require.NotNil(t, history.saved, "finalized record must reach the recorder")
	assert.Equal(t, "test-run-1", history.saved.RunID)
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeSRT(t, path, sampleSRT)

	cfg := newTestConfig(t, dir)
	cfg.DryRun = true

	r, err := New(Options{
		Config:   cfg,
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Scanned: 1, Changed: 1, Errored: 0}, record.Summary,
		"dry run reports what would change")

	res := record.FileResults[0]
	require.Len(t, res.Diff, 1)
	assert.Equal(t, 0, res.Diff[0].Unit)
	assert.Equal(t, "Nhấn nút nguồn", res.Diff[0].Before)
	assert.Equal(t, "Nhấn node nguồn", res.Diff[0].After)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleSRT, string(got), "dry run must not write")
	assert.NoFileExists(t, backup.SidecarPath(path), "dry run must not create sidecars")
}

func TestRunNoBackupWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeSRT(t, path, sampleSRT)

	cfg := newTestConfig(t, dir)
	cfg.Backup = false

	r, err := New(Options{
		Config:   cfg,
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, record.Summary.Changed)
	assert.NoFileExists(t, backup.SidecarPath(path))
}

func TestRunContinuesPastBadFile(t *testing.T) {
	dir := t.TempDir()
	// 0x81 decodes under no candidate encoding.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.srt"), []byte{0x81, 0x82}, 0644))
	writeSRT(t, filepath.Join(dir, "good.srt"), sampleSRT)

	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.NoError(t, err, "per-file failures never abort the batch")

	assert.Equal(t, StateCompleted, record.State)
	assert.Equal(t, Summary{Scanned: 2, Changed: 1, Errored: 1}, record.Summary)

	// Results stay in scan order.
	require.Len(t, record.FileResults, 2)
	assert.Equal(t, StatusError, record.FileResults[0].Status)
	assert.Contains(t, record.FileResults[0].Error, "EncodingError:")
	assert.Equal(t, StatusChanged, record.FileResults[1].Status)
}

func TestRunUnchangedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	content := "1\n00:00:01,000 --> 00:00:02,000\nNothing to replace\n"
	writeSRT(t, path, content)

	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Summary{Scanned: 1, Changed: 0, Errored: 0}, record.Summary)
	assert.Equal(t, StatusUnchanged, record.FileResults[0].Status)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(got), "unchanged files are never rewritten")
	assert.NoFileExists(t, backup.SidecarPath(path), "unchanged files get no sidecar")
}

func TestRunPreservesMalformedBlocks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	content := "garbage block\nnot a subtitle\n\n1\n00:00:01,000 --> 00:00:02,000\nnút\n"
	writeSRT(t, path, content)

	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.NoError(t, err)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage block\nnot a subtitle\n\n1\n00:00:01,000 --> 00:00:02,000\nnode\n", string(got),
		"malformed blocks pass through byte-exact, well-formed ones are still processed")
}

func TestScanFilters(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "raw")
	require.NoError(t, os.Mkdir(sub, 0755))

	writeSRT(t, filepath.Join(dir, "b.srt"), sampleSRT)
	writeSRT(t, filepath.Join(dir, "a.SRT"), sampleSRT)
	writeSRT(t, filepath.Join(dir, "notes.txt"), "not a subtitle")
	writeSRT(t, filepath.Join(dir, "b.srt.bak"), sampleSRT)
	writeSRT(t, filepath.Join(sub, "c.srt"), sampleSRT)
	writeSRT(t, filepath.Join(sub, "skipped.srt"), sampleSRT)

	cfg := newTestConfig(t, dir)
	cfg.Recursive = true
	cfg.Skip = []string{"raw/skipped.srt"}

	r, err := New(Options{
		Config:   cfg,
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	files, err := r.scan()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.SRT"),
		filepath.Join(dir, "b.srt"),
		filepath.Join(sub, "c.srt"),
	}, files, "extensions match case-insensitively, sidecars and skip globs are excluded, order is lexicographic")
}

func TestScanNonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	writeSRT(t, filepath.Join(dir, "top.srt"), sampleSRT)
	writeSRT(t, filepath.Join(sub, "deep.srt"), sampleSRT)

	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)

	files, err := r.scan()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "top.srt")}, files)
}

func TestRunScanFailure(t *testing.T) {
	history := &fakeRecorder{}
	r, err := New(Options{
		Config:   newTestConfig(t, filepath.Join(t.TempDir(), "does-not-exist")),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
		History:  history,
	})
	require.NoError(t, err)

	record, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, record.State)
	require.NotNil(t, history.saved, "failed runs are recorded too")
	assert.Equal(t, StateFailed, history.saved.State)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	dir := t.TempDir()
	writeSRT(t, filepath.Join(dir, "a.srt"), sampleSRT)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history := &fakeRecorder{}
	r, err := New(Options{
		Config:   newTestConfig(t, dir),
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
		History:  history,
	})
	require.NoError(t, err)

	record, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, record.State)
	assert.Empty(t, record.FileResults, "no file starts after cancellation")
	require.NotNil(t, history.saved, "cancellation must not lose the audit record")
}

func TestNewValidatesOptions(t *testing.T) {
	detector := newTestDetector(t)

	_, err := New(Options{Detector: detector})
	assert.Error(t, err, "config is required")

	_, err = New(Options{Config: config.Default(), Detector: detector})
	assert.Error(t, err, "folder is required")

	_, err = New(Options{Config: newTestConfig(t, t.TempDir())})
	assert.Error(t, err, "detector is required")

	r, err := New(Options{Config: newTestConfig(t, t.TempDir()), Detector: detector})
	require.NoError(t, err)
	assert.NotEmpty(t, r.opts.RunID, "a run id is always assigned")
	assert.Equal(t, StateIdle, r.State())
}

func TestRunWithUnvalidatedConfig(t *testing.T) {
	dir := t.TempDir()
	writeSRT(t, filepath.Join(dir, "a.srt"), sampleSRT)

	// A hand-built config that never went through Validate has zero
	// workers; the run must still make progress instead of stalling.
	cfg := &config.Config{Folder: dir, Extensions: []string{".srt"}}

	r, err := New(Options{
		Config:   cfg,
		Rules:    glossary.DefaultRules(),
		Detector: newTestDetector(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Workers, "the caller's config is left untouched")

	record, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, record.State)
	assert.Equal(t, Summary{Scanned: 1, Changed: 1, Errored: 0}, record.Summary)
}

func TestFileResultLog(t *testing.T) {
	changed := FileResult{Path: "a.srt", Status: StatusChanged}
	assert.Equal(t, "[CHANGED] a.srt", changed.Log())

	ok := FileResult{Path: "a.srt", Status: StatusUnchanged}
	assert.True(t, strings.HasPrefix(ok.Log(), "[OK]"))
	assert.Contains(t, ok.Log(), "a.srt")

	bad := FileResult{Path: "a.srt", Status: StatusError, Error: "EncodingError: nope"}
	assert.True(t, strings.HasPrefix(bad.Log(), "[ERROR]"))
	assert.Contains(t, bad.Log(), "EncodingError: nope")
}
