package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/config"
	luart "github.com/dokzlo13/ansultad/internal/lua"
	"github.com/dokzlo13/ansultad/internal/lua/modules"
)

// LuaService wraps the Lua runtime and provides thread-safe execution.
type LuaService struct {
	cfg     *config.Config
	Runtime *luart.Runtime
}

// NewLuaService creates a new LuaService. Returns nil when no script is
// configured.
func NewLuaService(cfg *config.Config, light modules.LightController) *LuaService {
	if cfg.Script == "" {
		return nil
	}

	runtime := luart.NewRuntime(luart.RuntimeDeps{
		Light:     light,
		QueueSize: cfg.EventBus.GetQueueSize(),
	})

	return &LuaService{
		cfg:     cfg,
		Runtime: runtime,
	}
}

// LoadScript loads and executes the Lua script.
// Must be called before Start().
func (s *LuaService) LoadScript() error {
	return s.Runtime.LoadScript(s.cfg.Script)
}

// Start begins the Lua worker goroutine.
func (s *LuaService) Start(ctx context.Context) {
	// Start Lua worker goroutine - this is the ONLY goroutine that touches Lua
	go s.Runtime.Run(ctx)
}

// NotifyLightState runs the script's on_change handlers on the Lua worker.
func (s *LuaService) NotifyLightState(ctx context.Context, state string, selfInitiated bool) {
	if !s.Runtime.NotifyLightState(ctx, state, selfInitiated) {
		log.Warn().Str("state", state).Msg("Light state change not delivered to script")
	}
}

// Close closes the Lua runtime.
func (s *LuaService) Close() {
	if s.Runtime != nil {
		s.Runtime.Close()
	}
}
