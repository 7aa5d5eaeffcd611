package assets

import (
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"main.lua":          {Data: []byte("return 1")},
		"foo.lua":           {Data: []byte("return 'foo'")},
		"vega_lua/bar.lc":   {Data: []byte("return 'bar'")},
		"vega_lua/util.lua": {Data: []byte("return {}")},
	}
}

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"":              ".",
		"/":             ".",
		".":             ".",
		"vega_lua":      "vega_lua",
		"/vega_lua/":    "vega_lua",
		"vega_lua/a.lc": "vega_lua/a.lc",
		"a/../b":        "b",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanPath(in), "CleanPath(%q)", in)
	}
}

func TestOpenDirRoot(t *testing.T) {
	store := NewFSStore(testFS())

	names, err := List(store, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"foo.lua", "main.lua", "vega_lua"}, names)
}

func TestOpenDirSubdir(t *testing.T) {
	store := NewFSStore(testFS())

	names, err := List(store, "vega_lua")
	require.NoError(t, err)
	assert.Equal(t, []string{"bar.lc", "util.lua"}, names)
}

func TestOpenDirMissing(t *testing.T) {
	store := NewFSStore(testFS())

	_, err := store.OpenDir("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOpenDirOnFile(t *testing.T) {
	store := NewFSStore(testFS())

	_, err := store.OpenDir("main.lua")
	require.ErrorIs(t, err, ErrNotDir)
}

func TestDirCloseTwice(t *testing.T) {
	store := NewFSStore(testFS())

	d, err := store.OpenDir("")
	require.NoError(t, err)
	require.NoError(t, d.Close())
	assert.ErrorIs(t, d.Close(), ErrClosed)

	_, ok := d.Next()
	assert.False(t, ok, "closed listing must be exhausted")
}

func TestOpenBuffered(t *testing.T) {
	store := NewFSStore(testFS())

	a, err := store.OpenBuffered("vega_lua/bar.lc")
	require.NoError(t, err)
	assert.Equal(t, "return 'bar'", string(a.Buffer()))
	assert.Equal(t, len("return 'bar'"), a.Len())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Close(), ErrClosed)
}

func TestOpenBufferedMissing(t *testing.T) {
	store := NewFSStore(testFS())

	_, err := store.OpenBuffered("missing.lua")
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestOpenBufferedDirectory(t *testing.T) {
	store := NewFSStore(testFS())

	_, err := store.OpenBuffered("vega_lua")
	assert.Error(t, err)
}

func TestReadAllCopies(t *testing.T) {
	store := NewFSStore(testFS())

	data, err := ReadAll(store, "/main.lua")
	require.NoError(t, err)
	assert.Equal(t, "return 1", string(data))
}
