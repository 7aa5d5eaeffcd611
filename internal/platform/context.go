// Package platform holds the handles the host platform hands to the scripting
// layer: the asset manager and the script thread.
//
// A Context has a single writer. Each handle is set once, when the host
// creates it, and only read afterwards. Readers may run on any goroutine.
package platform

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zot/vega/internal/assets"
)

var (
	// ErrNotSet is returned when a handle is read before the host set it.
	ErrNotSet = errors.New("platform: handle not set")
	// ErrAlreadySet is returned when a handle is set a second time.
	ErrAlreadySet = errors.New("platform: handle already set")
)

// Context is the explicitly owned replacement for process-wide platform statics.
type Context struct {
	mu           sync.RWMutex
	assets       assets.Store
	scriptThread string
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{}
}

// SetAssets records the asset manager. It must be called exactly once.
func (c *Context) SetAssets(store assets.Store) error {
	if store == nil {
		return fmt.Errorf("platform: nil asset store")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assets != nil {
		return fmt.Errorf("assets: %w", ErrAlreadySet)
	}
	c.assets = store
	return nil
}

// Assets returns the asset manager.
func (c *Context) Assets() (assets.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.assets == nil {
		return nil, fmt.Errorf("assets: %w", ErrNotSet)
	}
	return c.assets, nil
}

// SetScriptThread names the thread that runs scripts.
func (c *Context) SetScriptThread(name string) error {
	if name == "" {
		return fmt.Errorf("platform: empty script thread name")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scriptThread != "" {
		return fmt.Errorf("script thread: %w", ErrAlreadySet)
	}
	c.scriptThread = name
	return nil
}

// ScriptThread returns the script thread name.
func (c *Context) ScriptThread() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.scriptThread == "" {
		return "", fmt.Errorf("script thread: %w", ErrNotSet)
	}
	return c.scriptThread, nil
}
