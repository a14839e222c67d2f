// Pi simulator: answers the gateway's link like the Astro Pi would. It logs
// every script command it receives and emits Sense HAT CSV telemetry on an
// interval. Use this for local testing when you don't have the Pi hardware.
package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"AstroGate/internal/config"
	"AstroGate/internal/core"
	"AstroGate/internal/device"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
	"AstroGate/internal/util"
)

func main() {
	app := &cli.App{
		Name:  "simulation",
		Usage: "Simulated Astro Pi for the AstroGate link",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dev", Value: "/tmp/ttyPI", Usage: "serial device of the simulated Pi"},
			&cli.IntFlag{Name: "baud", Value: config.DefaultBaud, Usage: "baud rate"},
			&cli.StringFlag{Name: "format", Value: config.DefaultWireFormat, Usage: "wire format: json, msgpack, cbor"},
			&cli.IntFlag{Name: "interval", Value: 1000, Usage: "ms between telemetry messages"},
			&cli.StringFlag{Name: "socat", Usage: "create a virtual serial pair; the value is the gateway side link path"},
			&cli.StringFlag{Name: "loopback", Usage: "run the gateway in-process over a memory pipe, using this config file"},
			&cli.StringFlag{Name: "log-level", Value: "info"},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	log, err := util.SetupLogger(c.String("log-level"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	codec, err := parser.New(c.String("format"))
	if err != nil {
		return err
	}

	var dev device.Device
	switch {
	case c.String("loopback") != "":
		cfg, err := config.Load(c.String("loopback"), "")
		if err != nil {
			return err
		}
		cfg.Global.WireFormat = c.String("format")
		gwEnd, piEnd := device.NewPipe()
		sys, err := core.NewSystemWithDevice(cfg, gwEnd, log)
		if err != nil {
			return err
		}
		if err := sys.StartAll(); err != nil {
			return err
		}
		defer sys.StopAll()
		dev = piEnd

	default:
		if gwLink := c.String("socat"); gwLink != "" {
			socat := util.NewSocatManager(log)
			defer socat.Cleanup()
			if err := socat.CreatePair(gwLink, c.String("dev")); err != nil {
				return err
			}
		}
		sd, err := device.NewSerialDevice(c.String("dev"), c.Int("baud"))
		if err != nil {
			return err
		}
		dev = sd
	}
	defer func() { _ = dev.Close() }()

	pi := &simulatedPi{dev: dev, codec: codec, log: log.Named("pi")}
	go pi.listen()

	log.Info("simulator running", zap.String("format", c.String("format")), zap.Int("interval_ms", c.Int("interval")))
	tick := time.NewTicker(time.Duration(c.Int("interval")) * time.Millisecond)
	defer tick.Stop()
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case <-stop:
			log.Info("simulator stopping")
			return nil
		case <-tick.C:
			if err := pi.sendTelemetry(); err != nil {
				if errors.Is(err, device.ErrClosed) {
					return nil
				}
				log.Warn("write telemetry", zap.Error(err))
			}
		}
	}
}

type simulatedPi struct {
	dev   device.Device
	codec parser.Parser
	log   *zap.Logger
	seq   uint32
}

// listen logs script commands as the Pi's script runner would receive them.
func (p *simulatedPi) listen() {
	for {
		line, err := p.dev.ReadLine(0)
		if errors.Is(err, device.ErrClosed) {
			return
		}
		if err != nil {
			p.log.Warn("read", zap.Error(err))
			time.Sleep(100 * time.Millisecond)
			continue
		}
		cmd, err := p.codec.DecodeScript(line)
		if errors.Is(err, parser.ErrUnexpectedTopic) {
			// sense-hat records published by the gateway
			p.log.Debug("ignoring non script line", zap.Error(err))
			continue
		}
		if err != nil {
			p.log.Warn("not a script command", zap.Error(err))
			continue
		}
		switch cmd.Command {
		case model.RunScriptText:
			p.log.Info("run script text", zap.String("text", cmd.ScriptText))
		case model.RunScriptFile:
			p.log.Info("run script file", zap.String("file", cmd.ScriptFile))
		default:
			p.log.Warn("unknown script command", zap.Uint8("command", uint8(cmd.Command)))
		}
	}
}

func (p *simulatedPi) sendTelemetry() error {
	p.seq++
	s := model.SenseHatSample{
		RateX:       float32(rand.NormFloat64() * 0.01),
		RateY:       float32(rand.NormFloat64() * 0.01),
		RateZ:       float32(rand.NormFloat64() * 0.01),
		AccelX:      float32(rand.NormFloat64() * 0.02),
		AccelY:      float32(rand.NormFloat64() * 0.02),
		AccelZ:      float32(1 + rand.NormFloat64()*0.02),
		Pressure:    float32(1013 + rand.Float64()*4),
		Temperature: float32(22 + rand.Float64()*3),
		Humidity:    float32(40 + rand.Float64()*10),
		Red:         rand.Int31n(256),
		Green:       rand.Int31n(256),
		Blue:        rand.Int31n(256),
		Clear:       rand.Int31n(1024),
	}
	line, err := p.codec.EncodeCsvTelemetry(model.CsvTelemetry{
		Name:       "sense-hat",
		SeqCount:   p.seq,
		DateTime:   time.Now().Format("01/02/2006 15:04:05"),
		Parameters: parser.SenseHatToCSV(s, config.DefaultDelimiter),
	})
	if err != nil {
		return err
	}
	return p.dev.WriteLine(line)
}
