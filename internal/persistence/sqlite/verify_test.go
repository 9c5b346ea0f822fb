package sqlite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	_, err = db.Exec("CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT); INSERT INTO t(v) VALUES ('a'), ('b')")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

func TestVerifyIntegrityHealthy(t *testing.T) {
	path := newTestDB(t)

	problems, err := VerifyIntegrity(path, "quick")
	require.NoError(t, err)
	assert.Nil(t, problems)

	problems, err = VerifyIntegrity(path, "full")
	require.NoError(t, err)
	assert.Nil(t, problems)
}

func TestVerifyIntegrityCorrupted(t *testing.T) {
	path := newTestDB(t)

	// Flip bytes in the middle of the file to damage a page.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 2048)
	for i := 1600; i < 1700; i++ {
		data[i] ^= 0xFF
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))

	problems, verr := VerifyIntegrity(path, "full")
	if verr != nil {
		// Severe corruption can fail the pragma outright; either signal is fine.
		return
	}
	assert.NotEmpty(t, problems)
}

func TestOpenAppliesPragmas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pragma.db")
	db, err := Open(path, DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
