package parser

import "github.com/fxamacker/cbor/v2"

// cborEnc uses Core Deterministic Encoding so a given message always
// produces the same bytes on the link.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("parser: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("parser: CBOR decoder initialization failed: " + err.Error())
	}
}

// NewCBORParser returns a Parser using CBOR envelopes.
func NewCBORParser() *BinaryParser {
	return &BinaryParser{format: "cbor", marshal: cborEnc.Marshal, unmarshal: cborDec.Unmarshal}
}
