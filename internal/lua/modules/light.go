package modules

import (
	"context"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

// SourceScript tags commands issued from Lua.
const SourceScript = "script"

// LightController is the radio side seen by scripts. Calls block until the
// radio loop has run them.
type LightController interface {
	SetState(ctx context.Context, state ansulta.LightState, source string) error
	Pair(ctx context.Context, source string) error
	Status() ansulta.Status
}

// LightModule exposes the fixture to Lua as the "light" module.
type LightModule struct {
	ctrl     LightController
	handlers []*lua.LFunction
}

// NewLightModule creates a light module.
func NewLightModule(ctrl LightController) *LightModule {
	return &LightModule{ctrl: ctrl}
}

// Loader is the module loader for Lua
func (m *LightModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "on50", L.NewFunction(m.command(ansulta.StateDim50)))
	L.SetField(mod, "on100", L.NewFunction(m.command(ansulta.StateDim100)))
	L.SetField(mod, "off", L.NewFunction(m.command(ansulta.StateOff)))
	L.SetField(mod, "pair", L.NewFunction(m.pair))
	L.SetField(mod, "state", L.NewFunction(m.state))
	L.SetField(mod, "address", L.NewFunction(m.address))
	L.SetField(mod, "learned", L.NewFunction(m.learned))
	L.SetField(mod, "on_change", L.NewFunction(m.onChange))

	L.Push(mod)
	return 1
}

func (m *LightModule) command(state ansulta.LightState) lua.LGFunction {
	return func(L *lua.LState) int {
		return pushResult(L, m.ctrl.SetState(luaContext(L), state, SourceScript))
	}
}

func (m *LightModule) pair(L *lua.LState) int {
	return pushResult(L, m.ctrl.Pair(luaContext(L), SourceScript))
}

// state() -> "off" | "dim_50" | "dim_100"
func (m *LightModule) state(L *lua.LState) int {
	L.Push(lua.LString(m.ctrl.Status().State.String()))
	return 1
}

// address() -> "2A7F" or nil when unknown
func (m *LightModule) address(L *lua.LState) int {
	st := m.ctrl.Status()
	if !st.Learned {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(st.Address.String()))
	return 1
}

func (m *LightModule) learned(L *lua.LState) int {
	L.Push(lua.LBool(m.ctrl.Status().Learned))
	return 1
}

// on_change(fn(state, self_initiated))
func (m *LightModule) onChange(L *lua.LState) int {
	m.handlers = append(m.handlers, L.CheckFunction(1))
	return 0
}

// Notify calls every on_change handler. Must run on the Lua goroutine.
func (m *LightModule) Notify(L *lua.LState, state string, selfInitiated bool) {
	for _, fn := range m.handlers {
		err := L.CallByParam(lua.P{
			Fn:      fn,
			NRet:    0,
			Protect: true,
		}, lua.LString(state), lua.LBool(selfInitiated))
		if err != nil {
			log.Error().Err(err).Str("state", state).Msg("Lua on_change handler failed")
		}
	}
}
