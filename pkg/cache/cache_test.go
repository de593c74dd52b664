package cache

import (
	"bytes"
	"testing"

	"github.com/phuslu/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextCache_PutGet(t *testing.T) {
	c, err := OpenInMemory()
	require.NoError(t, err)
	defer c.Close()

	key := Key([]byte("%PDF-1.4 ..."), "rows", "1-5")

	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, &Entry{Text: "Figure 1.", PageCount: 5, Source: "guide.pdf"}))

	entry, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Figure 1.", entry.Text)
	assert.Equal(t, 5, entry.PageCount)
	assert.False(t, entry.StoredAt.IsZero())

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, c.Clear())
	_, ok, err = c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTextCache_Persistent(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	logger := &log.Logger{Level: log.TraceLevel, Writer: log.IOWriter{Writer: &buf}}

	c, err := Open(dir, logger)
	require.NoError(t, err)
	require.NoError(t, c.Put("k", &Entry{Text: "kept"}))
	require.NoError(t, c.Close())

	c, err = Open(dir, nil)
	require.NoError(t, err)
	defer c.Close()

	entry, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", entry.Text)

	_, err = Open("", nil)
	assert.Error(t, err)
}

func TestKey(t *testing.T) {
	a := Key([]byte("doc"), "rows")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key([]byte("doc"), "rows"))
	assert.NotEqual(t, a, Key([]byte("doc"), "content"))
	assert.NotEqual(t, a, Key([]byte("doc2"), "rows"))
	assert.NotEqual(t, Key([]byte("ab"), "c"), Key([]byte("a"), "bc"))
}
