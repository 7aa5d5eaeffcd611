package lua

import (
	lua "github.com/yuin/gopher-lua"
)

// LuaToGo converts a module value to plain Go data for callers outside the VM.
// Tables with only keys 1..n become slices, other tables become maps keyed by
// their string keys. Functions, userdata and threads become their type name.
// A table reached again through itself converts to nil.
func LuaToGo(val lua.LValue) interface{} {
	return luaToGo(val, map[*lua.LTable]bool{})
}

func luaToGo(val lua.LValue, seen map[*lua.LTable]bool) interface{} {
	switch v := val.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if seen[v] {
			return nil
		}
		seen[v] = true
		defer delete(seen, v)

		if n := v.MaxN(); n > 0 && isSequence(v, n) {
			arr := make([]interface{}, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = luaToGo(v.RawGetInt(i), seen)
			}
			return arr
		}
		m := make(map[string]interface{})
		v.ForEach(func(key, value lua.LValue) {
			if ks, ok := key.(lua.LString); ok {
				m[string(ks)] = luaToGo(value, seen)
			}
		})
		return m
	default:
		return val.Type().String()
	}
}

// isSequence reports whether t has exactly the keys 1..n.
func isSequence(t *lua.LTable, n int) bool {
	count := 0
	t.ForEach(func(_, _ lua.LValue) {
		count++
	})
	return count == n
}
