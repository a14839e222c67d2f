package parser

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/brocaar/lorawan"
)

var (
	ErrNotUplink  = errors.New("not a data uplink")
	ErrInvalidMIC = errors.New("invalid uplink MIC")
)

// Uplink is a verified, decrypted LoRaWAN data uplink.
type Uplink struct {
	DevAddr string
	FCnt    uint32
	FPort   uint8
	Payload []byte
}

// UplinkDecoder unwraps ABP LoRaWAN 1.0 data uplinks whose application
// payload is a CSV telemetry blob.
type UplinkDecoder struct {
	nwkSKey lorawan.AES128Key
	appSKey lorawan.AES128Key
}

// NewUplinkDecoder parses hex encoded network and application session keys.
func NewUplinkDecoder(nwkSKeyHex, appSKeyHex string) (*UplinkDecoder, error) {
	nwk, err := parseKey(nwkSKeyHex)
	if err != nil {
		return nil, fmt.Errorf("nwk_skey: %w", err)
	}
	app, err := parseKey(appSKeyHex)
	if err != nil {
		return nil, fmt.Errorf("app_skey: %w", err)
	}
	return &UplinkDecoder{nwkSKey: nwk, appSKey: app}, nil
}

func parseKey(s string) (lorawan.AES128Key, error) {
	var key lorawan.AES128Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, err
	}
	if len(b) != len(key) {
		return key, fmt.Errorf("expected %d bytes, got %d", len(key), len(b))
	}
	copy(key[:], b)
	return key, nil
}

// Decode checks the MIC of a PHYPayload and returns its decrypted FRMPayload.
func (d *UplinkDecoder) Decode(frame []byte) (Uplink, error) {
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(frame); err != nil {
		return Uplink{}, fmt.Errorf("invalid phy payload: %w", err)
	}
	if phy.MHDR.MType != lorawan.UnconfirmedDataUp && phy.MHDR.MType != lorawan.ConfirmedDataUp {
		return Uplink{}, fmt.Errorf("%w: mtype %v", ErrNotUplink, phy.MHDR.MType)
	}

	ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, d.nwkSKey, d.nwkSKey)
	if err != nil {
		return Uplink{}, fmt.Errorf("validate mic: %w", err)
	}
	if !ok {
		return Uplink{}, ErrInvalidMIC
	}

	macPL, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return Uplink{}, fmt.Errorf("%w: unexpected mac payload %T", ErrNotUplink, phy.MACPayload)
	}

	key := d.appSKey
	var fPort uint8
	if macPL.FPort != nil {
		fPort = *macPL.FPort
		if fPort == 0 {
			key = d.nwkSKey
		}
	}
	if err := phy.DecryptFRMPayload(key); err != nil {
		return Uplink{}, fmt.Errorf("decrypt frm payload: %w", err)
	}

	up := Uplink{
		DevAddr: macPL.FHDR.DevAddr.String(),
		FCnt:    macPL.FHDR.FCnt,
		FPort:   fPort,
	}
	if len(macPL.FRMPayload) > 0 {
		dp, ok := macPL.FRMPayload[0].(*lorawan.DataPayload)
		if !ok {
			return Uplink{}, fmt.Errorf("unexpected frm payload %T", macPL.FRMPayload[0])
		}
		up.Payload = dp.Bytes
	}
	return up, nil
}
