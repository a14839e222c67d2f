package parser

import (
	"strconv"
	"strings"

	"AstroGate/internal/model"
)

// Token widths for Sense HAT parameters.
const (
	floatWidth = 24
	intWidth   = 12
)

type senseField = FieldSpec[model.SenseHatSample]

func floatField(name string, set func(*model.SenseHatSample, float32)) senseField {
	return senseField{Name: name, Type: FieldFloat, Width: floatWidth, Bits: 32,
		Set: func(s *model.SenseHatSample, v Value) { set(s, float32(v.Float)) }}
}

func intField(name string, set func(*model.SenseHatSample, int32)) senseField {
	return senseField{Name: name, Type: FieldInteger, Width: intWidth, Bits: 32,
		Set: func(s *model.SenseHatSample, v Value) { set(s, int32(v.Int)) }}
}

// SenseHatSchema is the parameter order of the Sense HAT CSV telemetry message.
var SenseHatSchema = []senseField{
	floatField("rate-x", func(s *model.SenseHatSample, f float32) { s.RateX = f }),
	floatField("rate-y", func(s *model.SenseHatSample, f float32) { s.RateY = f }),
	floatField("rate-z", func(s *model.SenseHatSample, f float32) { s.RateZ = f }),
	floatField("accel-x", func(s *model.SenseHatSample, f float32) { s.AccelX = f }),
	floatField("accel-y", func(s *model.SenseHatSample, f float32) { s.AccelY = f }),
	floatField("accel-z", func(s *model.SenseHatSample, f float32) { s.AccelZ = f }),
	floatField("pressure", func(s *model.SenseHatSample, f float32) { s.Pressure = f }),
	floatField("temperature", func(s *model.SenseHatSample, f float32) { s.Temperature = f }),
	floatField("humidity", func(s *model.SenseHatSample, f float32) { s.Humidity = f }),
	intField("red", func(s *model.SenseHatSample, n int32) { s.Red = n }),
	intField("green", func(s *model.SenseHatSample, n int32) { s.Green = n }),
	intField("blue", func(s *model.SenseHatSample, n int32) { s.Blue = n }),
	intField("clear", func(s *model.SenseHatSample, n int32) { s.Clear = n }),
}

// DecodeSenseHat decodes a Sense HAT parameter blob.
func DecodeSenseHat(text, delim string) (model.SenseHatSample, error) {
	return Decode(text, SenseHatSchema, delim)
}

// SenseHatToCSV formats a sample in schema order.
func SenseHatToCSV(s model.SenseHatSample, delim string) string {
	if delim == "" {
		delim = DefaultDelimiter
	}
	f := func(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) }
	i := func(v int32) string { return strconv.FormatInt(int64(v), 10) }
	return strings.Join([]string{
		f(s.RateX), f(s.RateY), f(s.RateZ),
		f(s.AccelX), f(s.AccelY), f(s.AccelZ),
		f(s.Pressure), f(s.Temperature), f(s.Humidity),
		i(s.Red), i(s.Green), i(s.Blue), i(s.Clear),
	}, delim)
}
