// Package lua runs application scripts in a gopher-lua VM whose require()
// also finds modules in the packaged asset store.
//
// The VM is not safe for concurrent use, so a Runtime confines it to one
// executor goroutine. Every operation is queued there and waits for its result.
package lua

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/vega/internal/config"
	"github.com/zot/vega/internal/platform"
)

// ErrShutdown is returned by operations on a runtime that has been shut down.
var ErrShutdown = errors.New("lua runtime shut down")

// workItem represents a unit of work for the executor.
type workItem struct {
	fn     func() (interface{}, error)
	result chan workResult
}

// workResult holds the result of a work item.
type workResult struct {
	value interface{}
	err   error
}

// Runtime owns one Lua state with the asset searcher installed.
type Runtime struct {
	// State is only touched on the executor goroutine.
	State    *lua.LState
	config   *config.Config
	platform *platform.Context
	searcher *Searcher

	executorChan chan workItem
	done         chan struct{}
	closed       bool // executor goroutine only
	shutdownOnce sync.Once
}

// stdlibs are the libraries opened in every state. io, os and debug stay closed:
// scripts only reach packaged assets.
var stdlibs = []struct {
	name string
	open lua.LGFunction
}{
	{lua.LoadLibName, lua.OpenPackage},
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// NewRuntime creates a Lua state, installs the asset searcher over the
// platform's asset store and starts the executor goroutine.
func NewRuntime(cfg *config.Config, pctx *platform.Context) (*Runtime, error) {
	return NewRuntimeWithDiagnostics(cfg, pctx, LogDiagnostics{Logger: cfg})
}

// NewRuntimeWithDiagnostics is NewRuntime with a custom diagnostic sink.
func NewRuntimeWithDiagnostics(cfg *config.Config, pctx *platform.Context, diag Diagnostics) (*Runtime, error) {
	store, err := pctx.Assets()
	if err != nil {
		return nil, fmt.Errorf("lua runtime: %w", err)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range stdlibs {
		if err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.open), NRet: 0, Protect: true}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open %s library: %w", lib.name, err)
		}
	}
	if cfg.Lua.PackagePath != "" {
		if pkg, ok := L.GetGlobal("package").(*lua.LTable); ok {
			L.SetField(pkg, "path", lua.LString(cfg.Lua.PackagePath))
		}
	}

	loader := NewLoader(store, diag, cfg.Lua.ErrorMode)
	s := NewSearcher(store, loader, cfg)
	if err := Install(L, s); err != nil {
		L.Close()
		return nil, err
	}

	r := &Runtime{
		State:        L,
		config:       cfg,
		platform:     pctx,
		searcher:     s,
		executorChan: make(chan workItem, 100),
		done:         make(chan struct{}),
	}
	r.startExecutor()
	return r, nil
}

// Log logs a message via the config.
func (r *Runtime) Log(level int, format string, args ...interface{}) {
	r.config.Log(level, format, args...)
}

// startExecutor creates the goroutine that processes work items.
func (r *Runtime) startExecutor() {
	go func() {
		for {
			select {
			case <-r.done:
				return
			case work := <-r.executorChan:
				if r.closed {
					work.result <- workResult{err: ErrShutdown}
					continue
				}
				value, err := work.fn()
				work.result <- workResult{value: value, err: err}
			}
		}
	}()
}

// execute queues a function on the executor and blocks until complete.
func (r *Runtime) execute(fn func() (interface{}, error)) (interface{}, error) {
	result := make(chan workResult, 1)
	select {
	case r.executorChan <- workItem{fn: fn, result: result}:
	case <-r.done:
		return nil, ErrShutdown
	}
	select {
	case res := <-result:
		return res.value, res.err
	case <-r.done:
		return nil, ErrShutdown
	}
}

// Search returns the asset path require(moduleName) would load, if the
// built-in loaders do not claim the name first.
func (r *Runtime) Search(moduleName string) (string, bool, error) {
	var path string
	var found bool
	_, err := r.execute(func() (interface{}, error) {
		path, found = r.searcher.Search(moduleName)
		return nil, nil
	})
	return path, found, err
}

// Require runs require(moduleName) and returns the module value as Go data.
func (r *Runtime) Require(moduleName string) (interface{}, error) {
	return r.execute(func() (interface{}, error) {
		ret, err := r.require(moduleName)
		if err != nil {
			return nil, err
		}
		return LuaToGo(ret), nil
	})
}

// require must run on the executor.
func (r *Runtime) require(moduleName string) (lua.LValue, error) {
	L := r.State
	if err := L.CallByParam(lua.P{Fn: L.GetGlobal("require"), NRet: 1, Protect: true}, lua.LString(moduleName)); err != nil {
		return lua.LNil, fmt.Errorf("require %q: %w", moduleName, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

// Execute runs the application's entry point script.
func (r *Runtime) Execute(entry string) error {
	r.Log(1, "executing entry point script...")
	if thread, err := r.platform.ScriptThread(); err == nil {
		r.Log(2, "script thread: %s", thread)
	}
	r.Log(1, "preparing to execute script: %s", entry)
	_, err := r.execute(func() (interface{}, error) {
		return r.require(entry)
	})
	return err
}

// DoString compiles and runs code under the chunk name name and returns its
// first result as Go data.
func (r *Runtime) DoString(name, code string) (interface{}, error) {
	return r.execute(func() (interface{}, error) {
		L := r.State
		fn, err := L.Load(strings.NewReader(code), name)
		if err != nil {
			return nil, fmt.Errorf("failed to load code %s: %w", name, err)
		}
		L.Push(fn)
		if err := L.PCall(0, 1, nil); err != nil {
			return nil, fmt.Errorf("failed to execute code %s: %w", name, err)
		}
		ret := L.Get(-1)
		L.Pop(1)
		return LuaToGo(ret), nil
	})
}

// Shutdown closes the Lua state and stops the executor. It is idempotent.
func (r *Runtime) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.execute(func() (interface{}, error) {
			r.State.Close()
			r.closed = true
			return nil, nil
		})
		close(r.done)
	})
}
