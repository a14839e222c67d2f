package core

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"AstroGate/internal/metrics"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
	"AstroGate/internal/script"
)

// Version is reported by the no-op command.
const Version = "1.0.0"

var (
	// ErrPublish wraps a transport failure while sending a script command.
	ErrPublish = errors.New("publish failed")
	// ErrTelemetryTooLong is returned for parameter text beyond the configured capacity.
	ErrTelemetryTooLong = errors.New("telemetry parameter text too long")
)

// Publisher is the transport: script commands go to the Pi and decoded
// samples go out as sense-hat records.
type Publisher interface {
	PublishScript(cmd model.ScriptCommand) error
	PublishSample(s model.SenseHatSample) error
}

// Observer is told about gateway events after they succeed.
// Calls are made with the gateway lock held and must not call back into the gateway.
type Observer interface {
	ScriptSent(name string, cmd model.ScriptCommand)
	SampleDecoded(source string, s model.SenseHatSample)
	StatusChanged(st model.Status)
}

// Gateway owns the script session counters and turns requests into
// script commands or telemetry samples. Every request is serialized.
type Gateway struct {
	mu        sync.Mutex
	builder   script.Builder
	charBlock int
	textMax   int
	scriptDir string
	delim     string
	pub       Publisher
	observers []Observer
	metrics   *metrics.Registry
	log       *zap.Logger
	status    model.Status
}

// NewGateway creates a Gateway publishing through pub.
func NewGateway(cfg *model.Config, pub Publisher, log *zap.Logger, m *metrics.Registry) *Gateway {
	g := &Gateway{
		builder:   script.NewBuilder(cfg.Limits.PathMax, cfg.Limits.ScriptMax),
		charBlock: cfg.Limits.CharBlock,
		textMax:   cfg.Limits.TextMax,
		scriptDir: cfg.Global.ScriptDir,
		delim:     cfg.CSV.Delimiter,
		pub:       pub,
		metrics:   m,
		log:       log.Named("gateway"),
	}
	g.status.LastSent = model.Placeholder
	return g
}

// AddObserver registers o for future events.
func (g *Gateway) AddObserver(o Observer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.observers = append(g.observers, o)
}

// SendLocalScript transcodes a file on the gateway and sends its text inline.
// The file must live under the configured script directory.
func (g *Gateway) SendLocalScript(filename string) (model.ScriptCommand, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	path, err := script.ResolveInDir(g.scriptDir, filename)
	if err != nil {
		return model.ScriptCommand{}, g.fail("send_local_script", filename, err)
	}
	res, err := script.TranscodeFile(path, g.charBlock, g.builder.ScriptMax)
	if err != nil {
		return model.ScriptCommand{}, g.fail("send_local_script", filename, err)
	}
	cmd, err := g.builder.Build(script.InlineSource(res.Text, res.EscapedLen))
	if err != nil {
		return model.ScriptCommand{}, g.fail("send_local_script", filename, err)
	}
	if err := g.publish(cmd); err != nil {
		return model.ScriptCommand{}, g.fail("send_local_script", filename, err)
	}
	g.metrics.ScriptBytes.Observe(float64(len(cmd.ScriptText)))
	g.sent("send_local_script", filename, cmd, zap.Int("raw_len", res.RawLen), zap.Int("escaped_len", res.EscapedLen))
	return cmd, nil
}

// StartRemoteScript asks the Pi to run a script file it already holds.
func (g *Gateway) StartRemoteScript(filename string) (model.ScriptCommand, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cmd, err := g.builder.Build(script.RemoteSource(filename))
	if err != nil {
		return model.ScriptCommand{}, g.fail("start_remote_script", filename, err)
	}
	if err := g.publish(cmd); err != nil {
		return model.ScriptCommand{}, g.fail("start_remote_script", filename, err)
	}
	g.sent("start_remote_script", filename, cmd)
	return cmd, nil
}

// SendTestScript sends one of the built-in test scripts.
func (g *Gateway) SendTestScript(sel script.TestScript) (model.ScriptCommand, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	text, name := script.Canned(sel)
	cmd, err := g.builder.Build(script.InlineSource(text, len(text)))
	if err != nil {
		return model.ScriptCommand{}, g.fail("send_test_script", name, err)
	}
	if err := g.publish(cmd); err != nil {
		return model.ScriptCommand{}, g.fail("send_test_script", name, err)
	}
	g.metrics.ScriptBytes.Observe(float64(len(cmd.ScriptText)))
	g.sent("send_test_script", name, cmd)
	return cmd, nil
}

// HandleCsvTelemetry decodes a Sense HAT parameter blob, publishes the
// sample and hands it to the observers. The session status is not touched.
func (g *Gateway) HandleCsvTelemetry(source, text string) (model.SenseHatSample, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.textMax > 0 && len(text) > g.textMax {
		g.metrics.TelemetryRejects.WithLabelValues("too_long").Inc()
		err := fmt.Errorf("%w: %d bytes, limit %d", ErrTelemetryTooLong, len(text), g.textMax)
		g.log.Warn("telemetry rejected", zap.String("event", "csv_telemetry"), zap.String("source", source), zap.Error(err))
		return model.SenseHatSample{}, err
	}

	s, err := parser.DecodeSenseHat(text, g.delim)
	if err != nil {
		g.metrics.TelemetryRejects.WithLabelValues(telemetryReason(err)).Inc()
		g.log.Warn("telemetry rejected", zap.String("event", "csv_telemetry"), zap.String("source", source), zap.Error(err))
		return model.SenseHatSample{}, err
	}

	if err := g.pub.PublishSample(s); err != nil {
		g.metrics.TelemetryRejects.WithLabelValues("publish").Inc()
		err = fmt.Errorf("%w: %w", ErrPublish, err)
		g.log.Error("sample publish failed", zap.String("event", "csv_telemetry"), zap.String("source", source), zap.Error(err))
		return model.SenseHatSample{}, err
	}

	g.metrics.Samples.Inc()
	g.log.Debug("telemetry decoded", zap.String("event", "csv_telemetry"), zap.String("source", source))
	for _, o := range g.observers {
		o.SampleDecoded(source, s)
	}
	return s, nil
}

// Reset clears the sent count, the last sent identifier and the command counters.
func (g *Gateway) Reset() model.Status {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.status = model.Status{LastSent: model.Placeholder}
	g.metrics.Resets.Inc()
	g.metrics.SentCount.Set(0)
	g.log.Info("status reset", zap.String("event", "reset"))
	g.notifyStatus()
	return g.status
}

// Noop logs the gateway version and counts as a valid command.
func (g *Gateway) Noop() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.status.ValidCmdCount++
	g.log.Info("no operation command received", zap.String("event", "noop"), zap.String("version", Version))
	g.notifyStatus()
	return Version
}

// Status returns a snapshot of the session status.
func (g *Gateway) Status() model.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

func (g *Gateway) publish(cmd model.ScriptCommand) error {
	if err := g.pub.PublishScript(cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

func (g *Gateway) sent(event, name string, cmd model.ScriptCommand, fields ...zap.Field) {
	g.status.SentCount++
	g.status.LastSent = name[:min(len(name), g.builder.PathMax)]
	g.status.ValidCmdCount++

	g.metrics.ScriptsSent.WithLabelValues(cmd.Command.String()).Inc()
	g.metrics.SentCount.Set(float64(g.status.SentCount))

	fields = append([]zap.Field{
		zap.String("event", event),
		zap.String("script", name),
		zap.Stringer("command", cmd.Command),
		zap.Uint32("sent_count", g.status.SentCount),
	}, fields...)
	g.log.Info("script sent", fields...)

	for _, o := range g.observers {
		o.ScriptSent(name, cmd)
	}
	g.notifyStatus()
}

func (g *Gateway) fail(event, name string, err error) error {
	g.status.InvalidCmdCount++
	g.metrics.ScriptFailures.WithLabelValues(scriptReason(err)).Inc()
	g.log.Error("script request failed", zap.String("event", event), zap.String("script", name), zap.Error(err))
	g.notifyStatus()
	return err
}

func (g *Gateway) notifyStatus() {
	for _, o := range g.observers {
		o.StatusChanged(g.status)
	}
}

func scriptReason(err error) string {
	switch {
	case errors.Is(err, script.ErrFileNotFound):
		return "not_found"
	case errors.Is(err, script.ErrFileOpen):
		return "open"
	case errors.Is(err, script.ErrFileRead):
		return "read"
	case errors.Is(err, script.ErrTranscodeOverflow):
		return "overflow"
	case errors.Is(err, script.ErrInvalidFilename):
		return "invalid_filename"
	case errors.Is(err, script.ErrOutsideScriptDir):
		return "outside_script_dir"
	case errors.Is(err, ErrPublish):
		return "publish"
	default:
		return "other"
	}
}

func telemetryReason(err error) string {
	switch {
	case errors.Is(err, parser.ErrFieldCountMismatch):
		return "field_count"
	case errors.Is(err, parser.ErrFieldParse):
		return "field_parse"
	default:
		return "other"
	}
}
