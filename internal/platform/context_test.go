package platform

import (
	"sync"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zot/vega/internal/assets"
)

func TestAssetsSetOnce(t *testing.T) {
	c := NewContext()

	_, err := c.Assets()
	require.ErrorIs(t, err, ErrNotSet)

	store := assets.NewFSStore(fstest.MapFS{})
	require.NoError(t, c.SetAssets(store))
	require.ErrorIs(t, c.SetAssets(store), ErrAlreadySet)

	got, err := c.Assets()
	require.NoError(t, err)
	assert.Same(t, store, got)
}

func TestSetAssetsNil(t *testing.T) {
	assert.Error(t, NewContext().SetAssets(nil))
}

func TestScriptThreadSetOnce(t *testing.T) {
	c := NewContext()

	_, err := c.ScriptThread()
	require.ErrorIs(t, err, ErrNotSet)
	require.Error(t, c.SetScriptThread(""))

	require.NoError(t, c.SetScriptThread("lua"))
	require.ErrorIs(t, c.SetScriptThread("other"), ErrAlreadySet)

	name, err := c.ScriptThread()
	require.NoError(t, err)
	assert.Equal(t, "lua", name)
}

func TestConcurrentReadersAfterWrite(t *testing.T) {
	c := NewContext()
	store := assets.NewFSStore(fstest.MapFS{"main.lua": {Data: []byte("return 1")}})
	require.NoError(t, c.SetAssets(store))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Assets()
			assert.NoError(t, err)
			assert.Same(t, store, got)
		}()
	}
	wg.Wait()
}
