package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"AstroGate/internal/model"
)

// JSONParser implements Parser using topic-prefixed JSON lines.
type JSONParser struct{}

// NewJSONParser creates a new JSON parser.
func NewJSONParser() *JSONParser { return &JSONParser{} }

// EncodeScript writes the script text verbatim apart from JSON quoting, so
// its `\n` sequences reach the Pi as JSON newline escapes.
func (p *JSONParser) EncodeScript(cmd model.ScriptCommand) (string, error) {
	file, err := json.Marshal(cmd.ScriptFile)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(TopicScriptCmd)
	b.WriteString(`:{"command":`)
	b.WriteString(strconv.Itoa(int(cmd.Command)))
	b.WriteString(`,"script-file":`)
	b.Write(file)
	b.WriteString(`,"script-text":`)
	b.WriteString(quoteEscaped(cmd.ScriptText))
	b.WriteByte('}')
	return b.String(), nil
}

// DecodeScript parses a script command line.
func (p *JSONParser) DecodeScript(line string) (model.ScriptCommand, error) {
	var cmd model.ScriptCommand
	if err := decodeTopic(line, TopicScriptCmd, &cmd); err != nil {
		return model.ScriptCommand{}, err
	}
	return cmd, nil
}

// EncodeSample encodes a Sense HAT sample.
func (p *JSONParser) EncodeSample(s model.SenseHatSample) (string, error) {
	return encodeTopic(TopicSenseHat, s)
}

// DecodeCsvTelemetry parses a CSV telemetry line. A line without a topic is
// taken as the bare parameter text.
func (p *JSONParser) DecodeCsvTelemetry(line string) (model.CsvTelemetry, error) {
	if _, _, ok := SplitTopic(line); !ok {
		return model.CsvTelemetry{Parameters: strings.TrimSpace(line)}, nil
	}
	var t model.CsvTelemetry
	if err := decodeTopic(line, TopicCsvTlm, &t); err != nil {
		return model.CsvTelemetry{}, err
	}
	return t, nil
}

// EncodeCsvTelemetry encodes a CSV telemetry message.
func (p *JSONParser) EncodeCsvTelemetry(t model.CsvTelemetry) (string, error) {
	return encodeTopic(TopicCsvTlm, t)
}

func encodeTopic(topic string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return topic + ":" + string(b), nil
}

func decodeTopic(line, want string, v any) error {
	topic, payload, ok := SplitTopic(line)
	if !ok || topic != want {
		return fmt.Errorf("%w: want %s", ErrUnexpectedTopic, want)
	}
	return json.Unmarshal([]byte(payload), v)
}

// quoteEscaped quotes script text whose newlines are already written as `\n`.
// Those sequences stay JSON escapes; every other special byte is escaped.
func quoteEscaped(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && s[i+1] == 'n':
			b.WriteString(`\n`)
			i++
		case c == '\\':
			b.WriteString(`\\`)
		case c == '"':
			b.WriteString(`\"`)
		case c < 0x20:
			fmt.Fprintf(&b, `\u%04x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
