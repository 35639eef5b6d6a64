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

// Package backup creates, restores and deletes sidecar copies of original
// files. The sidecar path is a deterministic, reversible mapping from the
// original path so revert can always locate it.
package backup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// Suffix is appended to the original path to name its sidecar.
const Suffix = ".bak"

// SidecarPath maps an original path to its backup path.
func SidecarPath(path string) string {
	return path + Suffix
}

// OriginalPath inverts SidecarPath.
func OriginalPath(sidecar string) string {
	return strings.TrimSuffix(sidecar, Suffix)
}

// 🚫 NoBackupError is returned when revert is requested for a file with no
// sidecar present.
type NoBackupError struct {
	Path string
}

func (e *NoBackupError) Error() string {
	return fmt.Sprintf("NoBackupError: no backup found for %s", e.Path)
}

// 💾 Manager serializes backup/restore/delete operations per path. Two
// operations never touch the same path concurrently; distinct paths need no
// coordination.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a backup manager.
func NewManager() *Manager {
	return &Manager{locks: map[string]*sync.Mutex{}}
}

// pathLock returns the mutex owning all sidecar operations for one path.
func (m *Manager) pathLock(path string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[path] = lock
	}
	return lock
}

// 📥 Create copies the original bytes to the sidecar path. If a sidecar
// already exists — from this run or an earlier one — it is left alone: the
// first backup wins, protecting the oldest known-good original. Writes must
// not proceed when this fails.
func (m *Manager) Create(path string) error {
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	sidecar := SidecarPath(path)
	if _, err := os.Stat(sidecar); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Errorf("checking backup for %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return errors.Errorf("stat original %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Errorf("reading original %s: %w", path, err)
	}
	if err := os.WriteFile(sidecar, data, info.Mode().Perm()); err != nil {
		return errors.Errorf("writing backup %s: %w", sidecar, err)
	}
	return nil
}

// 📤 Revert copies the sidecar bytes back over the live file. With
// removeBackup the sidecar is deleted after a successful restore.
func (m *Manager) Revert(path string, removeBackup bool) error {
	lock := m.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	sidecar := SidecarPath(path)
	data, err := os.ReadFile(sidecar)
	if os.IsNotExist(err) {
		return &NoBackupError{Path: path}
	}
	if err != nil {
		return errors.Errorf("reading backup %s: %w", sidecar, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Errorf("restoring %s: %w", path, err)
	}
	if removeBackup {
		if err := os.Remove(sidecar); err != nil {
			return errors.Errorf("removing backup %s: %w", sidecar, err)
		}
	}
	return nil
}

// 🗑️ Purge deletes the sidecars for the given original paths. Files without
// a sidecar are skipped silently; the count of deleted sidecars is returned.
func (m *Manager) Purge(paths []string) (int, error) {
	deleted := 0
	for _, path := range paths {
		lock := m.pathLock(path)
		lock.Lock()
		err := os.Remove(SidecarPath(path))
		lock.Unlock()
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return deleted, errors.Errorf("removing backup for %s: %w", path, err)
		}
		deleted++
	}
	return deleted, nil
}

// 🔍 Find returns the original paths of every sidecar under root, sorted
// lexicographically.
func Find(root string, recursive bool) ([]string, error) {
	var originals []string
	if recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, Suffix) {
				originals = append(originals, OriginalPath(path))
			}
			return nil
		})
		if err != nil {
			return nil, errors.Errorf("scanning %s for backups: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, errors.Errorf("scanning %s for backups: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), Suffix) {
				originals = append(originals, OriginalPath(filepath.Join(root, e.Name())))
			}
		}
	}
	sort.Strings(originals)
	return originals, nil
}
