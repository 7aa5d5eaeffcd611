package lua

import (
	"bytes"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/zot/vega/internal/assets"
	"github.com/zot/vega/internal/config"
)

// ErrorKind classifies a failed asset load.
type ErrorKind int

const (
	// OpenError: the resolved asset could not be opened.
	OpenError ErrorKind = iota
	// ParseError: the asset is not loadable code.
	ParseError
	// RuntimeError: the module's top level raised an error.
	RuntimeError
)

func (k ErrorKind) String() string {
	switch k {
	case OpenError:
		return "open"
	case ParseError:
		return "parse"
	case RuntimeError:
		return "runtime"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// LoadError is a failed load of a resolved asset.
type LoadError struct {
	Kind    ErrorKind
	Module  string
	Path    string
	Message string     // the VM's message, verbatim
	Value   lua.LValue // the VM's error value, re-raised in raise mode
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s error loading module '%s' from asset %s: %s", e.Kind, e.Module, e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(kind ErrorKind, module, path string, err error) *LoadError {
	le := &LoadError{Kind: kind, Module: module, Path: path, Err: err, Message: err.Error()}
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		le.Message = apiErr.Object.String()
		le.Value = apiErr.Object
	}
	if le.Value == nil {
		le.Value = lua.LString(le.Message)
	}
	return le
}

// Diagnostics receives load failures.
type Diagnostics interface {
	Report(err *LoadError)
}

// LogDiagnostics reports failures as level 0 log lines carrying the VM message.
type LogDiagnostics struct {
	Logger Logger
}

// Report implements Diagnostics.
func (d LogDiagnostics) Report(err *LoadError) {
	if d.Logger != nil {
		d.Logger.Log(0, "%s", err.Message)
	}
}

// Loader runs resolved assets through the VM's buffer loader.
type Loader struct {
	Store       assets.Store
	Diagnostics Diagnostics
	Mode        config.ErrorMode
}

// NewLoader creates a loader. An empty mode means config.ErrorRaise.
func NewLoader(store assets.Store, diag Diagnostics, mode config.ErrorMode) *Loader {
	if mode == "" {
		mode = config.ErrorRaise
	}
	return &Loader{Store: store, Diagnostics: diag, Mode: mode}
}

// Load compiles the asset at path under chunkName and calls it with no
// arguments, returning its single result. The asset is closed before Load
// returns, whichever stage failed.
func (l *Loader) Load(L *lua.LState, path, chunkName string) (lua.LValue, error) {
	asset, err := l.Store.OpenBuffered(path)
	if err != nil {
		return lua.LNil, newLoadError(OpenError, chunkName, path, err)
	}
	defer asset.Close()

	fn, err := L.Load(bytes.NewReader(asset.Buffer()[:asset.Len()]), chunkName)
	if err != nil {
		return lua.LNil, newLoadError(ParseError, chunkName, path, err)
	}

	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return lua.LNil, newLoadError(RuntimeError, chunkName, path, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return ret, nil
}

func (l *Loader) report(err *LoadError) {
	if l.Diagnostics != nil {
		l.Diagnostics.Report(err)
	}
}

// Function returns the module loader handed to require() for path.
// require() calls it with the module name, which becomes the chunk name.
// It always returns one value. On failure it reports through Diagnostics and
// then either raises the VM's error or returns nil, depending on Mode. A raised
// failure leaves nothing in package.loaded.
func (l *Loader) Function(L *lua.LState, path string) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		moduleName := L.OptString(1, path)
		ret, err := l.Load(L, path, moduleName)
		if err != nil {
			le := err.(*LoadError)
			l.report(le)
			if l.Mode == config.ErrorReport {
				L.Push(lua.LNil)
				return 1
			}
			// require() marked the name as loading before calling us; drop
			// the mark so a later require searches again.
			forgetLoaded(L, moduleName)
			L.Error(le.Value, 0)
			return 0
		}
		L.Push(ret)
		return 1
	})
}

// forgetLoaded clears package.loaded[moduleName].
func forgetLoaded(L *lua.LState, moduleName string) {
	if loaded, ok := L.GetField(L.Get(lua.RegistryIndex), "_LOADED").(*lua.LTable); ok {
		loaded.RawSetString(moduleName, lua.LNil)
	}
}
