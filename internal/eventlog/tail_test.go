package eventlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendFile(t *testing.T, path, data string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func asStrings(lines [][]byte) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

func TestTailerReadsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream_log.json")
	tail := NewTailer(path, 0)

	lines, err := tail.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, lines, "missing file yields nothing")

	appendFile(t, path, "a\n\nb\nc")
	lines, err = tail.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, asStrings(lines))

	appendFile(t, path, "d\ne\n")
	lines, err = tail.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"cd", "e"}, asStrings(lines))
	assert.Equal(t, int64(len("a\n\nb\ncd\ne\n")), tail.Offset())

	lines, err = tail.ReadLines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTailerRestartsAfterTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream_log.json")
	appendFile(t, path, "first line\nsecond line\n")

	tail := NewTailer(path, 0)
	_, err := tail.ReadLines()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	lines, err := tail.ReadLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, asStrings(lines))
	assert.Equal(t, 1, tail.Resets())
}
