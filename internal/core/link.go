package core

import (
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"AstroGate/internal/device"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
)

// TelemetryHandler receives CSV parameter text read from the link.
type TelemetryHandler func(source, text string) (model.SenseHatSample, error)

// Link is the line based transport to the Pi. Script commands and decoded
// samples are encoded with the wire codec and written as one line each;
// inbound lines carry CSV telemetry.
type Link struct {
	Device      device.Device
	Codec       parser.Parser
	ReadTimeout time.Duration

	log  *zap.Logger
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewLink constructs a Link over dev.
func NewLink(dev device.Device, codec parser.Parser, readTimeout time.Duration, log *zap.Logger) *Link {
	return &Link{
		Device:      dev,
		Codec:       codec,
		ReadTimeout: readTimeout,
		log:         log.Named("link"),
		stop:        make(chan struct{}),
	}
}

// PublishScript encodes cmd and writes it to the device.
func (l *Link) PublishScript(cmd model.ScriptCommand) error {
	line, err := l.Codec.EncodeScript(cmd)
	if err != nil {
		return err
	}
	if err := l.Device.WriteLine(line); err != nil {
		return err
	}
	l.log.Debug("script command written", zap.Int("bytes", len(line)))
	return nil
}

// PublishSample writes a decoded sample as a sense-hat record.
func (l *Link) PublishSample(s model.SenseHatSample) error {
	line, err := l.Codec.EncodeSample(s)
	if err != nil {
		return err
	}
	return l.Device.WriteLine(line)
}

// Start begins the read loop in a background goroutine.
func (l *Link) Start(h TelemetryHandler) {
	l.wg.Add(1)
	go l.loop(h)
}

// loop reads telemetry lines until Stop or until the device closes.
func (l *Link) loop(h TelemetryHandler) {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			return
		default:
		}

		line, err := l.Device.ReadLine(l.ReadTimeout)
		switch {
		case errors.Is(err, device.ErrReadTimeout):
			continue
		case errors.Is(err, device.ErrClosed):
			l.log.Info("link closed")
			return
		case err != nil:
			l.log.Warn("read failed", zap.Error(err))
			// transient error: wait and continue
			select {
			case <-l.stop:
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tlm, err := l.Codec.DecodeCsvTelemetry(line)
		if err != nil {
			l.log.Warn("undecodable line", zap.Error(err), zap.String("line", line))
			continue
		}
		// Decode failures are logged and counted by the handler.
		_, _ = h("link", tlm.Parameters)
	}
}

// Stop stops the read loop and closes the device.
func (l *Link) Stop() {
	l.once.Do(func() { close(l.stop) })
	_ = l.Device.Close()
	l.wg.Wait()
}
