package lua

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/ansultad/internal/ansulta"
)

type fakeLight struct {
	mu      sync.Mutex
	sent    []ansulta.LightState
	sources []string
	pairs   int
	status  ansulta.Status
	err     error
}

func (f *fakeLight) SetState(_ context.Context, state ansulta.LightState, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, state)
	f.sources = append(f.sources, source)
	f.status.State = state
	return nil
}

func (f *fakeLight) Pair(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs++
	return f.err
}

func (f *fakeLight) Status() ansulta.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func TestLightCommandsFromScript(t *testing.T) {
	light := &fakeLight{}
	rt := NewRuntime(RuntimeDeps{Light: light})
	defer rt.Close()

	require.NoError(t, rt.LoadString(`
		local light = require("light")
		assert(light.on100())
		assert(light.state() == "dim_100")
		assert(light.off())
		assert(light.pair())
	`))

	assert.Equal(t, []ansulta.LightState{ansulta.StateDim100, ansulta.StateOff}, light.sent)
	assert.Equal(t, []string{"script", "script"}, light.sources)
	assert.Equal(t, 1, light.pairs)
}

func TestLightCommandErrorIsReturnedToScript(t *testing.T) {
	light := &fakeLight{err: errors.New("transceiver not responding")}
	rt := NewRuntime(RuntimeDeps{Light: light})
	defer rt.Close()

	require.NoError(t, rt.LoadString(`
		local light = require("light")
		ok, err = light.on50()
	`))

	assert.Equal(t, glua.LNil, rt.L.GetGlobal("ok"))
	assert.Equal(t, "transceiver not responding", rt.L.GetGlobal("err").String())
}

func TestLightAddress(t *testing.T) {
	light := &fakeLight{}
	rt := NewRuntime(RuntimeDeps{Light: light})
	defer rt.Close()

	require.NoError(t, rt.LoadString(`
		local light = require("light")
		before = light.address()
		learned_before = light.learned()
	`))
	assert.Equal(t, glua.LNil, rt.L.GetGlobal("before"))
	assert.Equal(t, glua.LFalse, rt.L.GetGlobal("learned_before"))

	light.status = ansulta.Status{Learned: true, Address: ansulta.Address{A: 0x2A, B: 0x7F}}
	require.NoError(t, rt.LoadString(`after = require("light").address()`))
	assert.Equal(t, "2A7F", rt.L.GetGlobal("after").String())
}

func TestOnChangeHandlers(t *testing.T) {
	light := &fakeLight{}
	rt := NewRuntime(RuntimeDeps{Light: light})

	require.NoError(t, rt.LoadString(`
		local light = require("light")
		local log = require("log")
		seen = {}
		light.on_change(function(state, self_initiated)
			log.info("light changed", { state = state })
			table.insert(seen, state .. ":" .. tostring(self_initiated))
		end)
		light.on_change(function() error("broken handler") end)
	`))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rt.Run(ctx)
	defer rt.Close()

	require.True(t, rt.NotifyLightState(ctx, "dim_50", false))
	require.True(t, rt.NotifyLightState(ctx, "off", true))

	var got []string
	err := rt.DoSyncWithResult(ctx, func(context.Context) error {
		tbl := rt.L.GetGlobal("seen").(*glua.LTable)
		tbl.ForEach(func(_, v glua.LValue) {
			got = append(got, v.String())
		})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dim_50:false", "off:true"}, got)
}

func TestDoAfterClose(t *testing.T) {
	rt := NewRuntime(RuntimeDeps{Light: &fakeLight{}})
	rt.Close()
	rt.Close()

	assert.False(t, rt.Do(context.Background(), func(context.Context) {}))
	assert.ErrorIs(t, rt.DoSyncWithResult(context.Background(), func(context.Context) error { return nil }), ErrRuntimeClosed)
}
