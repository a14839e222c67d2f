// Package core contains the runtime and orchestration layer for AstroGate.
// It defines the Gateway, Link, Hub and System types that manage their lifecycle.
package core

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"AstroGate/internal/device"
	"AstroGate/internal/metrics"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
	"AstroGate/internal/store"
)

// System manages lifecycle of the main components (Link, Gateway, Hub, Store).
type System struct {
	cfg     *model.Config
	log     *zap.Logger
	Metrics *metrics.Registry
	Link    *Link
	Gateway *Gateway
	Hub     *Hub
	Store   *store.Store

	started   bool
	startLock sync.Mutex
	hubErr    chan error
}

// NewSystem opens the serial link to the Pi and builds the components.
func NewSystem(cfg *model.Config, log *zap.Logger) (*System, error) {
	dev, err := device.NewSerialDevice(cfg.Link.Device, cfg.Link.Baud)
	if err != nil {
		return nil, err
	}
	s, err := NewSystemWithDevice(cfg, dev, log)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	return s, nil
}

// NewSystemWithDevice builds the components over an already opened device.
func NewSystemWithDevice(cfg *model.Config, dev device.Device, log *zap.Logger) (*System, error) {
	codec, err := parser.New(cfg.Global.WireFormat)
	if err != nil {
		return nil, err
	}

	var uplink *parser.UplinkDecoder
	if cfg.LoRaWAN.NwkSKey != "" {
		uplink, err = parser.NewUplinkDecoder(cfg.LoRaWAN.NwkSKey, cfg.LoRaWAN.AppSKey)
		if err != nil {
			return nil, fmt.Errorf("lorawan: %w", err)
		}
	}

	s := &System{cfg: cfg, log: log, Metrics: metrics.New(), hubErr: make(chan error, 1)}

	if cfg.Store.Path != "" {
		s.Store, err = store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
	}

	s.Link = NewLink(dev, codec, time.Duration(cfg.Link.ReadTimeoutMs)*time.Millisecond, log)
	s.Gateway = NewGateway(cfg, s.Link, log, s.Metrics)
	if s.Store != nil {
		s.Gateway.AddObserver(NewRecorder(s.Store, log))
	}
	s.Hub = NewHub(cfg.Global.HubAddr, s.Gateway, s.Metrics, log, HubOptions{
		Store:          s.Store,
		Uplink:         uplink,
		StatusInterval: time.Duration(cfg.Global.StatusIntervalMs) * time.Millisecond,
		AuthToken:      cfg.Global.AuthToken,
	})
	return s, nil
}

// StartAll starts the link read loop and the hub.
func (s *System) StartAll() error {
	s.startLock.Lock()
	defer s.startLock.Unlock()
	if s.started {
		return nil
	}

	s.Link.Start(s.Gateway.HandleCsvTelemetry)
	go func() {
		if err := s.Hub.Start(); err != nil {
			s.log.Error("hub stopped", zap.Error(err))
			s.hubErr <- err
		}
	}()

	s.log.Info("system started",
		zap.String("link", s.cfg.Link.Device),
		zap.String("wire_format", s.cfg.Global.WireFormat),
		zap.String("hub", s.cfg.Global.HubAddr),
		zap.String("script_dir", s.cfg.Global.ScriptDir),
		zap.Bool("store", s.Store != nil))
	s.started = true
	return nil
}

// Done reports a fatal hub error.
func (s *System) Done() <-chan error { return s.hubErr }

// StopAll stops all running components gracefully.
func (s *System) StopAll() {
	s.startLock.Lock()
	defer s.startLock.Unlock()

	s.Hub.Stop()
	s.Link.Stop()
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.log.Warn("close store", zap.Error(err))
		}
	}
	s.started = false
}
