// Package main is the entry point of the AstroGate gateway.
// The run command loads the configuration, opens the serial link to the Pi,
// starts the hub and waits for a signal. transcode and decode run the script
// transcoder and telemetry decoder offline.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"AstroGate/internal/config"
	"AstroGate/internal/core"
	"AstroGate/internal/parser"
	"AstroGate/internal/script"
	"AstroGate/internal/util"
)

func main() {
	app := &cli.App{
		Name:    "astro_gate",
		Usage:   "Script command and Sense HAT telemetry gateway for an Astro Pi",
		Version: core.Version,
		Commands: []*cli.Command{
			runCommand(),
			transcodeCommand(),
			decodeCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the gateway",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "configs/config.yml", Usage: "path to configuration file"},
			&cli.StringFlag{Name: "env", Value: ".env", Usage: "optional env file loaded before config expansion"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"), c.String("env"))
			if err != nil {
				return err
			}
			if lvl := c.String("log-level"); lvl != "" {
				cfg.Log.Level = lvl
			}
			log, err := util.SetupLogger(cfg.Log.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			log.Info("using config", zap.String("path", c.String("config")))

			sys, err := core.NewSystem(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to create system: %w", err)
			}
			if err := sys.StartAll(); err != nil {
				return fmt.Errorf("failed to start system: %w", err)
			}

			// wait for Ctrl+C or SIGTERM
			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			var runErr error
			select {
			case <-stop:
			case runErr = <-sys.Done():
			}

			log.Info("shutting down system")
			sys.StopAll()
			log.Info("system stopped cleanly")
			return runErr
		},
	}
}

func transcodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "transcode",
		Usage:     "Escape a script file and print the script command line",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "block", Value: config.DefaultCharBlock, Usage: "read block size"},
			&cli.IntFlag{Name: "max", Value: config.DefaultScriptMax, Usage: "script text capacity"},
			&cli.StringFlag{Name: "format", Value: config.DefaultWireFormat, Usage: "wire format: json, msgpack, cbor"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("transcode needs exactly one file", 2)
			}
			codec, err := parser.New(c.String("format"))
			if err != nil {
				return err
			}
			res, err := script.TranscodeFile(c.Args().First(), c.Int("block"), c.Int("max"))
			if err != nil {
				if errors.Is(err, script.ErrFileNotFound) {
					return cli.Exit(err.Error(), 3)
				}
				return err
			}
			cmd := script.NewBuilder(config.DefaultPathMax, c.Int("max")).BuildInline(res.Text, res.EscapedLen)
			line, err := codec.EncodeScript(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "read %d bytes, escaped %d bytes\n", res.RawLen, res.EscapedLen)
			fmt.Fprintln(c.App.Writer, line)
			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a Sense HAT CSV parameter blob",
		ArgsUsage: "<csv>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "delim", Value: config.DefaultDelimiter, Usage: "field delimiter"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("decode needs exactly one CSV argument", 2)
			}
			s, err := parser.DecodeSenseHat(c.Args().First(), c.String("delim"))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(s)
		},
	}
}
