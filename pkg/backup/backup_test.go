package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSidecarPathRoundTrip(t *testing.T) {
	assert.Equal(t, "/x/a.srt.bak", SidecarPath("/x/a.srt"))
	assert.Equal(t, "/x/a.srt", OriginalPath("/x/a.srt.bak"))
}

func TestCreateFirstBackupWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeFile(t, path, "original")

	m := NewManager()
	require.NoError(t, m.Create(path))
	assert.Equal(t, "original", readFile(t, SidecarPath(path)))

	// Simulate a later run mutating the file, then asking for a backup
	// again: the oldest original must survive.
	writeFile(t, path, "already modified")
	require.NoError(t, m.Create(path))
	assert.Equal(t, "original", readFile(t, SidecarPath(path)))
}

func TestCreateMissingOriginal(t *testing.T) {
	m := NewManager()
	err := m.Create(filepath.Join(t.TempDir(), "missing.srt"))
	assert.Error(t, err)
}

func TestRevert(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeFile(t, path, "original")

	m := NewManager()
	require.NoError(t, m.Create(path))
	writeFile(t, path, "mutated")

	require.NoError(t, m.Revert(path, false))
	assert.Equal(t, "original", readFile(t, path))
	assert.FileExists(t, SidecarPath(path), "keep-backups revert leaves the sidecar")

	writeFile(t, path, "mutated again")
	require.NoError(t, m.Revert(path, true))
	assert.Equal(t, "original", readFile(t, path))
	assert.NoFileExists(t, SidecarPath(path))
}

func TestRevertWithoutBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.srt")
	writeFile(t, path, "content")

	m := NewManager()
	err := m.Revert(path, false)
	require.Error(t, err)

	var nbe *NoBackupError
	require.ErrorAs(t, err, &nbe)
	assert.Equal(t, path, nbe.Path)
}

func TestPurge(t *testing.T) {
	dir := t.TempDir()
	withBak := filepath.Join(dir, "a.srt")
	withoutBak := filepath.Join(dir, "b.srt")
	writeFile(t, withBak, "a")
	writeFile(t, withoutBak, "b")

	m := NewManager()
	require.NoError(t, m.Create(withBak))

	deleted, err := m.Purge([]string{withBak, withoutBak})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "files without a sidecar are skipped silently")
	assert.NoFileExists(t, SidecarPath(withBak))
	assert.FileExists(t, withBak, "purge never touches originals")
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	top := filepath.Join(dir, "b.srt")
	nested := filepath.Join(sub, "a.srt")
	writeFile(t, top, "b")
	writeFile(t, nested, "a")
	writeFile(t, SidecarPath(top), "b")
	writeFile(t, SidecarPath(nested), "a")
	writeFile(t, filepath.Join(dir, "plain.srt"), "no sidecar")

	flat, err := Find(dir, false)
	require.NoError(t, err)
	assert.Equal(t, []string{top}, flat)

	deep, err := Find(dir, true)
	require.NoError(t, err)
	assert.Equal(t, []string{top, nested}, deep, "results sorted lexicographically")
}
