package lua

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// installedKey marks a state whose loader chain already holds the asset searcher.
const installedKey = "_VEGA_ASSET_SEARCHER"

// Install appends the asset searcher to the end of the VM's loader chain, after
// the preload and package.path loaders, so built-in resolution always wins.
// The package library must be open. Installing twice is a no-op.
func Install(L *lua.LState, s *Searcher) error {
	registry, ok := L.Get(lua.RegistryIndex).(*lua.LTable)
	if !ok {
		return fmt.Errorf("lua registry unavailable")
	}
	// require() walks the registry's copy of package.loaders
	loaders, ok := L.GetField(registry, "_LOADERS").(*lua.LTable)
	if !ok {
		return fmt.Errorf("package library not open: no package.loaders")
	}
	if L.GetField(registry, installedKey) != lua.LNil {
		return nil
	}

	s.log(1, "adding the assets search function to package.loaders")
	fn := L.NewFunction(s.LGFunction())
	loaders.Append(fn)
	L.SetField(registry, installedKey, fn)
	return nil
}
