// Package model defines shared message structures for AstroGate.
package model

// Placeholder fills whichever script command field is not in use, and
// is the last-sent identifier after a reset.
const Placeholder = "Undefined"

// CommandKind selects how the Pi runs a script. Values match the link protocol.
type CommandKind uint8

const (
	RunScriptText CommandKind = 1
	RunScriptFile CommandKind = 2
)

func (k CommandKind) String() string {
	switch k {
	case RunScriptText:
		return "run_text"
	case RunScriptFile:
		return "run_file"
	default:
		return "unknown"
	}
}

// ScriptCommand is the outbound script command payload.
// For RunScriptText ScriptFile holds Placeholder; for RunScriptFile ScriptText does.
type ScriptCommand struct {
	Command    CommandKind `json:"command" msgpack:"command" cbor:"command"`
	ScriptFile string      `json:"script-file" msgpack:"script-file" cbor:"script-file"`
	ScriptText string      `json:"script-text" msgpack:"script-text" cbor:"script-text"`
}

// SenseHatSample is one decoded Sense HAT telemetry record.
// Field order matches the CSV parameter order.
type SenseHatSample struct {
	RateX       float32 `json:"rate-x" msgpack:"rate-x" cbor:"rate-x"`
	RateY       float32 `json:"rate-y" msgpack:"rate-y" cbor:"rate-y"`
	RateZ       float32 `json:"rate-z" msgpack:"rate-z" cbor:"rate-z"`
	AccelX      float32 `json:"accel-x" msgpack:"accel-x" cbor:"accel-x"`
	AccelY      float32 `json:"accel-y" msgpack:"accel-y" cbor:"accel-y"`
	AccelZ      float32 `json:"accel-z" msgpack:"accel-z" cbor:"accel-z"`
	Pressure    float32 `json:"pressure" msgpack:"pressure" cbor:"pressure"`
	Temperature float32 `json:"temperature" msgpack:"temperature" cbor:"temperature"`
	Humidity    float32 `json:"humidity" msgpack:"humidity" cbor:"humidity"`
	Red         int32   `json:"red" msgpack:"red" cbor:"red"`
	Green       int32   `json:"green" msgpack:"green" cbor:"green"`
	Blue        int32   `json:"blue" msgpack:"blue" cbor:"blue"`
	Clear       int32   `json:"clear" msgpack:"clear" cbor:"clear"`
}

// CsvTelemetry is the inbound JMSG CSV telemetry message.
// Parameters carries the delimited values decoded against a schema.
type CsvTelemetry struct {
	Name       string `json:"name" msgpack:"name" cbor:"name"`
	SeqCount   uint32 `json:"seq-count" msgpack:"seq-count" cbor:"seq-count"`
	DateTime   string `json:"date-time" msgpack:"date-time" cbor:"date-time"`
	Parameters string `json:"parameters" msgpack:"parameters" cbor:"parameters"`
}

// Status is the gateway status reported in the status packet.
type Status struct {
	ValidCmdCount   uint32 `json:"valid_cmd_count"`
	InvalidCmdCount uint32 `json:"invalid_cmd_count"`
	SentCount       uint32 `json:"sent_script_count"`
	LastSent        string `json:"last_sent_script"`
}

// Envelope frames a payload for binary wire formats.
type Envelope struct {
	Topic   string `json:"topic" msgpack:"topic" cbor:"topic"`
	Payload []byte `json:"payload" msgpack:"payload" cbor:"payload"`
}

// FileRequest names a script file, either local to the gateway or on the Pi.
type FileRequest struct {
	Filename string `json:"filename"`
}

// TestScriptRequest selects one of the canned test scripts.
type TestScriptRequest struct {
	Script uint8 `json:"script"`
}
