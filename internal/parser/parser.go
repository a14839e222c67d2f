// Package parser converts link wire formats to structured types and vice-versa.
//
// Link messages are single lines. The JSON wire format prefixes each message
// with its topic:
//
//	basecamp/script:{"command":1,"script-file":"Undefined","script-text":"print('hi')\n"}
//	basecamp/csv-tlm:{"name":"sense-hat","seq-count":3,"date-time":"...","parameters":"1.0,2.0,..."}
//
// Binary formats (msgpack, cbor) carry a model.Envelope, base64 armored.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"AstroGate/internal/model"
)

// Link topics.
const (
	TopicScriptCmd = "basecamp/script"
	TopicCsvTlm    = "basecamp/csv-tlm"
	TopicSenseHat  = "basecamp/sense-hat"
)

// ErrUnexpectedTopic is returned when a line carries a different topic than requested.
var ErrUnexpectedTopic = errors.New("unexpected topic")

// Parser encodes gateway messages to link lines and decodes lines from the Pi.
type Parser interface {
	// EncodeScript formats a script command for the Pi.
	EncodeScript(cmd model.ScriptCommand) (string, error)
	// DecodeScript parses a script command line. ScriptText is returned
	// with newlines restored, ready to run.
	DecodeScript(line string) (model.ScriptCommand, error)
	// EncodeSample formats a decoded Sense HAT sample.
	EncodeSample(s model.SenseHatSample) (string, error)
	// DecodeCsvTelemetry parses an inbound CSV telemetry line.
	DecodeCsvTelemetry(line string) (model.CsvTelemetry, error)
	// EncodeCsvTelemetry formats a CSV telemetry message, as the Pi sends it.
	EncodeCsvTelemetry(t model.CsvTelemetry) (string, error)
}

// New returns the parser for a wire format name.
func New(format string) (Parser, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewJSONParser(), nil
	case "msgpack":
		return NewMsgpackParser(), nil
	case "cbor":
		return NewCBORParser(), nil
	default:
		return nil, fmt.Errorf("unknown wire format %q", format)
	}
}

// SplitTopic splits "topic:payload". ok is false when the line has no topic.
func SplitTopic(line string) (topic, payload string, ok bool) {
	return strings.Cut(strings.TrimSpace(line), ":")
}

// UnescapeScriptText turns the two character sequence `\n` back into a line-feed.
func UnescapeScriptText(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}
