package parser

import (
	"encoding/base64"
	"fmt"
	"strings"

	"AstroGate/internal/model"
)

// BinaryParser implements Parser for binary serializations. Each line is a
// base64 armored model.Envelope so the serial link stays line framed.
type BinaryParser struct {
	format    string
	marshal   func(any) ([]byte, error)
	unmarshal func([]byte, any) error
}

// Format returns the wire format name.
func (p *BinaryParser) Format() string { return p.format }

// EncodeScript encodes a script command.
func (p *BinaryParser) EncodeScript(cmd model.ScriptCommand) (string, error) {
	return p.armor(TopicScriptCmd, cmd)
}

// DecodeScript decodes a script command and restores script newlines.
func (p *BinaryParser) DecodeScript(line string) (model.ScriptCommand, error) {
	var cmd model.ScriptCommand
	if err := p.unarmor(line, TopicScriptCmd, &cmd); err != nil {
		return model.ScriptCommand{}, err
	}
	if cmd.Command == model.RunScriptText {
		cmd.ScriptText = UnescapeScriptText(cmd.ScriptText)
	}
	return cmd, nil
}

// EncodeSample encodes a Sense HAT sample.
func (p *BinaryParser) EncodeSample(s model.SenseHatSample) (string, error) {
	return p.armor(TopicSenseHat, s)
}

// DecodeCsvTelemetry decodes a CSV telemetry message.
func (p *BinaryParser) DecodeCsvTelemetry(line string) (model.CsvTelemetry, error) {
	var t model.CsvTelemetry
	if err := p.unarmor(line, TopicCsvTlm, &t); err != nil {
		return model.CsvTelemetry{}, err
	}
	return t, nil
}

// EncodeCsvTelemetry encodes a CSV telemetry message.
func (p *BinaryParser) EncodeCsvTelemetry(t model.CsvTelemetry) (string, error) {
	return p.armor(TopicCsvTlm, t)
}

func (p *BinaryParser) armor(topic string, v any) (string, error) {
	payload, err := p.marshal(v)
	if err != nil {
		return "", fmt.Errorf("%s encode %s: %w", p.format, topic, err)
	}
	env, err := p.marshal(model.Envelope{Topic: topic, Payload: payload})
	if err != nil {
		return "", fmt.Errorf("%s encode envelope: %w", p.format, err)
	}
	return base64.StdEncoding.EncodeToString(env), nil
}

func (p *BinaryParser) unarmor(line, want string, v any) error {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return fmt.Errorf("%s line is not base64: %w", p.format, err)
	}
	var env model.Envelope
	if err := p.unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%s decode envelope: %w", p.format, err)
	}
	if env.Topic != want {
		return fmt.Errorf("%w: got %s, want %s", ErrUnexpectedTopic, env.Topic, want)
	}
	if err := p.unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("%s decode %s: %w", p.format, want, err)
	}
	return nil
}
