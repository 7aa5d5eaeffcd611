package lua

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/zot/vega/internal/assets"
)

// AssetLuaDir is the asset directory searched after the asset root.
const AssetLuaDir = "vega_lua"

// SearchDirs are the asset directories searched by require(), in priority order.
// "" is the asset root.
var SearchDirs = []string{"", AssetLuaDir}

// Logger is the verbosity-gated logging sink used by this package.
// *config.Config implements it.
type Logger interface {
	Log(level int, format string, args ...interface{})
}

// Candidates returns the asset names tried for a module, in priority order.
// The module name is used as is: dots are not turned into slashes.
func Candidates(moduleName string) []string {
	return []string{moduleName, moduleName + ".lua", moduleName + ".lc"}
}

// Searcher resolves module names to assets. It keeps no state between calls,
// so the same name against the same store always resolves the same way.
type Searcher struct {
	Store  assets.Store
	Loader *Loader
	Logger Logger
}

// NewSearcher creates a searcher whose matches are loaded by loader.
func NewSearcher(store assets.Store, loader *Loader, logger Logger) *Searcher {
	return &Searcher{Store: store, Loader: loader, Logger: logger}
}

func (s *Searcher) log(level int, format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Log(level, format, args...)
	}
}

// Search walks SearchDirs and, inside each, the Candidates of moduleName.
// The first asset found wins.
func (s *Searcher) Search(moduleName string) (path string, ok bool) {
	for _, dir := range SearchDirs {
		for _, candidate := range Candidates(moduleName) {
			if path := s.SearchOnDir(dir, candidate); path != "" {
				s.log(2, "module %q resolved to asset %s", moduleName, path)
				return path, true
			}
		}
	}
	s.log(2, "module %q not found in assets", moduleName)
	return "", false
}

// SearchOnDir lists dir and returns "dir/name" (or just name at the root) if
// an entry is exactly name. It returns "" otherwise, including when dir cannot
// be opened.
func (s *Searcher) SearchOnDir(dir, name string) string {
	d, err := s.Store.OpenDir(dir)
	if err != nil {
		s.log(2, "asset directory %q unavailable: %v", dir, err)
		return ""
	}
	defer d.Close()

	for {
		entry, ok := d.Next()
		if !ok {
			return ""
		}
		s.log(3, "  %q: %s", dir, entry)
		if entry != name {
			continue
		}
		if dir != "" {
			return dir + "/" + name
		}
		return name
	}
}

// LGFunction returns the function appended to package.loaders.
// It returns nothing when the module is not in the assets, otherwise the
// loader bound to the resolved path, followed by the path.
func (s *Searcher) LGFunction() lua.LGFunction {
	return func(L *lua.LState) int {
		moduleName := L.CheckString(1)
		path, ok := s.Search(moduleName)
		if !ok {
			return 0
		}
		L.Push(s.Loader.Function(L, path))
		L.Push(lua.LString(path))
		return 2
	}
}
