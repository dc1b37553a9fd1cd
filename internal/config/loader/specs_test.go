package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodSpecs = `
symbols:
  - symbol: XAUUSD
    digits: 2
    point: 0.01
    pip_size: 0.1
    volume_step: 0.01
    volume_min: 0.01
    volume_max: 10
  - symbol: EURUSD
    digits: 5
    point: 0.00001
    pip_size: 0.0001
    volume_step: 0.01
    volume_min: 0.01
    volume_max: 100
`

func writeSpecs(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenAndLookup(t *testing.T) {
	book, err := Open(writeSpecs(t, goodSpecs))
	require.NoError(t, err)
	assert.Equal(t, 2, book.Len())

	gold, ok := book.Lookup("XAUUSD")
	require.True(t, ok)
	assert.Equal(t, 2, gold.Digits)
	assert.Equal(t, 0.1, gold.PipSize)
	assert.Equal(t, 10.0, gold.VolumeMax)

	_, ok = book.Lookup("GBPUSD")
	assert.False(t, ok)
}

func TestOpenEmptyPath(t *testing.T) {
	book, err := Open("")
	require.NoError(t, err)
	assert.Equal(t, 0, book.Len())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOpenRejectsIncompleteEntry(t *testing.T) {
	_, err := Open(writeSpecs(t, `
symbols:
  - symbol: XAUUSD
    digits: 2
    point: 0.01
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pip_size")
}

func TestOpenRejectsBadYAML(t *testing.T) {
	_, err := Open(writeSpecs(t, "symbols: [not closed"))
	assert.Error(t, err)
}

func TestReloadKeepsPreviousBookOnBadEdit(t *testing.T) {
	path := writeSpecs(t, goodSpecs)
	book, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("symbols: ["), 0o644))
	require.Error(t, book.reload())

	// The last good book stays live.
	assert.Equal(t, 2, book.Len())
	_, ok := book.Lookup("EURUSD")
	assert.True(t, ok)
}
