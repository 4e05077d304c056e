// internal/job/lua.go

package job

import (
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"ktfsched/internal/sched"
)

// LuaErrorResult is the task result when a script raises an error.
const LuaErrorResult int64 = -1

// LuaWork compiles script once and returns a task body that runs it.
//
// Each run gets a fresh Lua state with only the base, table, string and math
// libraries, since an LState is not safe to share between processors. The
// task argument is exposed as the global "arg"; the script's first return
// value becomes the result (numbers truncate, true is 1, anything else 0).
func LuaWork(name, script string) (sched.TaskFunc, error) {
	chunk, err := parse.Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, fmt.Errorf("parsing lua task %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compiling lua task %s: %w", name, err)
	}

	return func(arg any) int64 {
		L := lua.NewState(lua.Options{SkipOpenLibs: true})
		defer L.Close()
		openLibs(L)

		L.SetGlobal("arg", toLua(arg))
		L.Push(L.NewFunctionFromProto(proto))
		if err := L.PCall(0, 1, nil); err != nil {
			return LuaErrorResult
		}
		ret := L.Get(-1)
		L.Pop(1)
		return fromLua(ret)
	}, nil
}

func openLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

func toLua(v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	default:
		return lua.LString(fmt.Sprint(x))
	}
}

func fromLua(v lua.LValue) int64 {
	switch x := v.(type) {
	case lua.LNumber:
		return int64(x)
	case lua.LBool:
		if x {
			return 1
		}
	}
	return 0
}
