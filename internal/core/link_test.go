package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"AstroGate/internal/device"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
)

func TestLinkSendsScenarioALine(t *testing.T) {
	gwEnd, piEnd := device.NewPipe()
	defer piEnd.Close()

	link := NewLink(gwEnd, parser.NewJSONParser(), 50*time.Millisecond, zap.NewNop())
	defer link.Stop()
	gw := newTestGateway(t, nil, link)

	_, err := gw.SendLocalScript(writeScript(t, "hi.py", "print('hi')\n"))
	require.NoError(t, err)

	line, err := piEnd.ReadLine(time.Second)
	require.NoError(t, err)
	assert.Equal(t, `basecamp/script:{"command":1,"script-file":"Undefined","script-text":"print('hi')\n"}`, line)

	cmd, err := parser.NewJSONParser().DecodeScript(line)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", cmd.ScriptText)
}

func TestLinkPublishesDecodedSample(t *testing.T) {
	gwEnd, piEnd := device.NewPipe()
	defer piEnd.Close()

	codec := parser.NewJSONParser()
	link := NewLink(gwEnd, codec, 20*time.Millisecond, zap.NewNop())
	gw := newTestGateway(t, nil, link)
	link.Start(gw.HandleCsvTelemetry)
	defer link.Stop()

	in, err := codec.EncodeCsvTelemetry(model.CsvTelemetry{Name: "sense-hat", SeqCount: 1, Parameters: sampleCSV})
	require.NoError(t, err)
	require.NoError(t, piEnd.WriteLine(in))

	line, err := piEnd.ReadLine(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, `basecamp/sense-hat:{"rate-x":1.5,"rate-y":-2.25,"rate-z":3,"accel-x":0.01,"accel-y":0.02,"accel-z":9.81,`+
		`"pressure":1013.25,"temperature":23.5,"humidity":45.5,"red":7,"green":128,"blue":255,"clear":300}`, line)

	require.NoError(t, piEnd.WriteLine("basecamp/csv-tlm:{\"parameters\":\"1,2\"}"))
	_, err = piEnd.ReadLine(100 * time.Millisecond)
	assert.ErrorIs(t, err, device.ErrReadTimeout)
}

func TestLinkReadLoopFeedsGateway(t *testing.T) {
	for _, format := range []string{"json", "msgpack", "cbor"} {
		t.Run(format, func(t *testing.T) {
			codec, err := parser.New(format)
			require.NoError(t, err)

			gwEnd, piEnd := device.NewPipe()
			defer piEnd.Close()
			link := NewLink(gwEnd, codec, 20*time.Millisecond, zap.NewNop())
			gw := newTestGateway(t, nil, link)

			got := make(chan model.SenseHatSample, 4)
			link.Start(func(source, text string) (model.SenseHatSample, error) {
				s, err := gw.HandleCsvTelemetry(source, text)
				if err == nil {
					got <- s
				}
				return s, err
			})
			defer link.Stop()

			bad, err := codec.EncodeCsvTelemetry(model.CsvTelemetry{Name: "sense-hat", Parameters: "1,2"})
			require.NoError(t, err)
			good, err := codec.EncodeCsvTelemetry(model.CsvTelemetry{Name: "sense-hat", SeqCount: 1, Parameters: sampleCSV})
			require.NoError(t, err)

			require.NoError(t, piEnd.WriteLine("garbage that is not a message"))
			require.NoError(t, piEnd.WriteLine(bad))
			require.NoError(t, piEnd.WriteLine(good))

			select {
			case s := <-got:
				assert.Equal(t, int32(300), s.Clear)
			case <-time.After(2 * time.Second):
				t.Fatal("sample not decoded")
			}
		})
	}
}

func TestLinkStopsWhenPeerCloses(t *testing.T) {
	gwEnd, piEnd := device.NewPipe()
	link := NewLink(gwEnd, parser.NewJSONParser(), 0, zap.NewNop())
	link.Start(func(string, string) (model.SenseHatSample, error) { return model.SenseHatSample{}, nil })

	require.NoError(t, piEnd.Close())
	done := make(chan struct{})
	go func() {
		link.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("link did not stop")
	}
}
