package parser

import "github.com/vmihailenco/msgpack/v5"

// NewMsgpackParser returns a Parser using MessagePack envelopes.
func NewMsgpackParser() *BinaryParser {
	return &BinaryParser{format: "msgpack", marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}
