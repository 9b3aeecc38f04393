package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ansultad/internal/bridge"
	"github.com/dokzlo13/ansultad/internal/config"
)

// BridgeService wraps the Hue bridge emulation server.
type BridgeService struct {
	cfg    *config.Config
	Table  *bridge.Table
	server *bridge.Server
}

// NewBridgeService creates the bridge with the fixture as its only light.
func NewBridgeService(cfg *config.Config, light bridge.Light) (*BridgeService, error) {
	table := bridge.NewTable()
	// uniqueid must look like a Zigbee EUI-64 for some clients
	if _, err := table.Add(cfg.Fixture.Name, "00:17:88:01:00:00:00:01-0b", light); err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}

	server := bridge.NewServer(cfg.Bridge.Host, bridge.Options{
		Name:         cfg.Bridge.Name,
		AdvertiseIP:  cfg.Bridge.AdvertiseIP,
		Port:         cfg.Bridge.Port,
		RateLimitRPS: cfg.Bridge.RateLimitRPS,
		RateBurst:    cfg.Bridge.RateBurst,
	}, table)

	return &BridgeService{
		cfg:    cfg,
		Table:  table,
		server: server,
	}, nil
}

// Start begins the bridge server if enabled.
func (s *BridgeService) Start(ctx context.Context) {
	if !s.cfg.Bridge.Enabled {
		log.Debug().Msg("Hue bridge emulation disabled")
		return
	}

	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("Bridge server error")
		}
	}()
}
