package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"AstroGate/internal/config"
	"AstroGate/internal/metrics"
	"AstroGate/internal/model"
	"AstroGate/internal/parser"
	"AstroGate/internal/script"
)

const sampleCSV = "1.5,-2.25,3,0.01,0.02,9.81,1013.25,23.5,45.5,7,128,255,300"

type fakePublisher struct {
	mu        sync.Mutex
	cmds      []model.ScriptCommand
	samples   []model.SenseHatSample
	err       error
	sampleErr error
}

func (p *fakePublisher) PublishScript(cmd model.ScriptCommand) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cmds = append(p.cmds, cmd)
	return nil
}

func (p *fakePublisher) PublishSample(s model.SenseHatSample) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sampleErr != nil {
		return p.sampleErr
	}
	p.samples = append(p.samples, s)
	return nil
}

func (p *fakePublisher) published() []model.SenseHatSample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SenseHatSample(nil), p.samples...)
}

func (p *fakePublisher) sent() []model.ScriptCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.ScriptCommand(nil), p.cmds...)
}

type recordingObserver struct {
	scripts  []string
	samples  []model.SenseHatSample
	statuses []model.Status
}

func (o *recordingObserver) ScriptSent(name string, _ model.ScriptCommand) {
	o.scripts = append(o.scripts, name)
}

func (o *recordingObserver) SampleDecoded(_ string, s model.SenseHatSample) {
	o.samples = append(o.samples, s)
}

func (o *recordingObserver) StatusChanged(st model.Status) {
	o.statuses = append(o.statuses, st)
}

// testConfig allows local scripts anywhere under the temp dir, where
// t.TempDir creates them.
func testConfig() *model.Config {
	cfg := &model.Config{}
	config.ApplyDefaults(cfg)
	cfg.Global.ScriptDir = os.TempDir()
	return cfg
}

func newTestGateway(t *testing.T, cfg *model.Config, pub Publisher) *Gateway {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	return NewGateway(cfg, pub, zap.NewNop(), metrics.New())
}

func writeScript(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestSendLocalScript(t *testing.T) {
	pub := &fakePublisher{}
	gw := newTestGateway(t, nil, pub)
	obs := &recordingObserver{}
	gw.AddObserver(obs)

	path := writeScript(t, "hi.py", "print('hi')\n")
	cmd, err := gw.SendLocalScript(path)
	require.NoError(t, err)

	want := model.ScriptCommand{
		Command:    model.RunScriptText,
		ScriptFile: model.Placeholder,
		ScriptText: `print('hi')\n`,
	}
	assert.Equal(t, want, cmd)
	assert.Equal(t, []model.ScriptCommand{want}, pub.sent())

	st := gw.Status()
	assert.Equal(t, uint32(1), st.SentCount)
	assert.Equal(t, path[:min(len(path), config.DefaultPathMax)], st.LastSent)
	assert.Equal(t, uint32(1), st.ValidCmdCount)
	assert.Equal(t, []string{path}, obs.scripts)
	require.NotEmpty(t, obs.statuses)
	assert.Equal(t, st, obs.statuses[len(obs.statuses)-1])
}

func TestSendLocalScriptMissingFile(t *testing.T) {
	pub := &fakePublisher{}
	gw := newTestGateway(t, nil, pub)
	before := gw.Status()

	_, err := gw.SendLocalScript(filepath.Join(t.TempDir(), "missing.py"))
	require.ErrorIs(t, err, script.ErrFileNotFound)
	assert.Empty(t, pub.sent())

	after := gw.Status()
	assert.Equal(t, before.SentCount, after.SentCount)
	assert.Equal(t, before.LastSent, after.LastSent)
	assert.Equal(t, uint32(1), after.InvalidCmdCount)
}

func TestSendLocalScriptOutsideScriptDir(t *testing.T) {
	cfg := testConfig()
	cfg.Global.ScriptDir = t.TempDir()
	pub := &fakePublisher{}
	gw := newTestGateway(t, cfg, pub)

	secret := writeScript(t, "secret.txt", "API_TOKEN=hunter2\n")
	for _, name := range []string{secret, "../" + filepath.Base(filepath.Dir(secret)) + "/secret.txt", "/etc/passwd"} {
		_, err := gw.SendLocalScript(name)
		require.ErrorIs(t, err, script.ErrOutsideScriptDir, name)
	}
	assert.Empty(t, pub.sent())
	assert.Equal(t, uint32(3), gw.Status().InvalidCmdCount)
	assert.Equal(t, model.Placeholder, gw.Status().LastSent)

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Global.ScriptDir, "ok.py"), []byte("x = 1\n"), 0o600))
	cmd, err := gw.SendLocalScript("ok.py")
	require.NoError(t, err)
	assert.Equal(t, `x = 1\n`, cmd.ScriptText)
	assert.Equal(t, "ok.py", gw.Status().LastSent)
}

func TestLastSentBoundedByPathMax(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.PathMax = 16
	gw := newTestGateway(t, cfg, &fakePublisher{})

	dir := filepath.Join(t.TempDir(), strings.Repeat("d", 40))
	require.NoError(t, os.Mkdir(dir, 0o755))
	path := filepath.Join(dir, "long_script_name.py")
	require.NoError(t, os.WriteFile(path, []byte("pass\n"), 0o600))

	_, err := gw.SendLocalScript(path)
	require.NoError(t, err)
	assert.Equal(t, path[:16], gw.Status().LastSent)
	assert.Len(t, gw.Status().LastSent, 16)

	_, err = gw.SendTestScript(script.TestScriptDisplayHello)
	require.NoError(t, err)
	assert.Equal(t, "Display Hello Wo", gw.Status().LastSent)
}

func TestSendLocalScriptOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.ScriptMax = 8
	cfg.Limits.CharBlock = 4
	pub := &fakePublisher{}
	gw := newTestGateway(t, cfg, pub)

	_, err := gw.SendLocalScript(writeScript(t, "big.py", "abcdefg\n"))
	require.ErrorIs(t, err, script.ErrTranscodeOverflow)
	assert.Empty(t, pub.sent())

	cmd, err := gw.SendLocalScript(writeScript(t, "fits.py", "abcdef\n"))
	require.NoError(t, err)
	assert.Equal(t, `abcdef\n`, cmd.ScriptText)
}

func TestResetAfterThreeSends(t *testing.T) {
	gw := newTestGateway(t, nil, &fakePublisher{})
	path := writeScript(t, "a.py", "x = 1\n")

	for i := 0; i < 3; i++ {
		_, err := gw.SendLocalScript(path)
		require.NoError(t, err)
	}
	require.Equal(t, uint32(3), gw.Status().SentCount)

	st := gw.Reset()
	assert.Equal(t, model.Status{LastSent: model.Placeholder}, st)
	assert.Equal(t, st, gw.Status())
}

func TestPublishFailureLeavesStatus(t *testing.T) {
	pub := &fakePublisher{err: errors.New("link down")}
	gw := newTestGateway(t, nil, pub)

	_, err := gw.SendTestScript(script.TestScriptPrintHello)
	require.ErrorIs(t, err, ErrPublish)
	assert.ErrorContains(t, err, "link down")

	st := gw.Status()
	assert.Zero(t, st.SentCount)
	assert.Equal(t, model.Placeholder, st.LastSent)
}

func TestStartRemoteScript(t *testing.T) {
	pub := &fakePublisher{}
	gw := newTestGateway(t, nil, pub)

	cmd, err := gw.StartRemoteScript("/home/pi/astro/hello.py")
	require.NoError(t, err)
	assert.Equal(t, model.RunScriptFile, cmd.Command)
	assert.Equal(t, "/home/pi/astro/hello.py", cmd.ScriptFile)
	assert.Equal(t, model.Placeholder, cmd.ScriptText)
	assert.Equal(t, "/home/pi/astro/hello.py", gw.Status().LastSent)

	_, err = gw.StartRemoteScript("rm -rf /; x.py")
	require.ErrorIs(t, err, script.ErrInvalidFilename)
	assert.Len(t, pub.sent(), 1)
}

func TestSendTestScript(t *testing.T) {
	gw := newTestGateway(t, nil, &fakePublisher{})

	cmd, err := gw.SendTestScript(script.TestScriptDisplayHello)
	require.NoError(t, err)
	assert.Contains(t, cmd.ScriptText, `sense = SenseHat()\n`)
	assert.Equal(t, "Display Hello World test script", gw.Status().LastSent)

	_, err = gw.SendTestScript(script.TestScriptPrintHello)
	require.NoError(t, err)
	assert.Equal(t, "Print Hello World test script", gw.Status().LastSent)
}

func TestHandleCsvTelemetry(t *testing.T) {
	pub := &fakePublisher{}
	gw := newTestGateway(t, nil, pub)
	obs := &recordingObserver{}
	gw.AddObserver(obs)

	s, err := gw.HandleCsvTelemetry("test", sampleCSV)
	require.NoError(t, err)
	assert.Equal(t, float32(23.5), s.Temperature)
	assert.Equal(t, []model.SenseHatSample{s}, pub.published())
	assert.Equal(t, []model.SenseHatSample{s}, obs.samples)
	assert.Empty(t, obs.statuses)

	_, err = gw.HandleCsvTelemetry("test", "1,2,3")
	require.ErrorIs(t, err, parser.ErrFieldCountMismatch)
	assert.Len(t, obs.samples, 1)
	assert.Len(t, pub.published(), 1)

	assert.Equal(t, model.Status{LastSent: model.Placeholder}, gw.Status())
}

func TestHandleCsvTelemetryPublishFailure(t *testing.T) {
	pub := &fakePublisher{sampleErr: errors.New("link down")}
	gw := newTestGateway(t, nil, pub)
	obs := &recordingObserver{}
	gw.AddObserver(obs)

	s, err := gw.HandleCsvTelemetry("test", sampleCSV)
	require.ErrorIs(t, err, ErrPublish)
	assert.ErrorContains(t, err, "link down")
	assert.Zero(t, s)
	assert.Empty(t, obs.samples)
}

func TestHandleCsvTelemetryTooLong(t *testing.T) {
	cfg := testConfig()
	cfg.Limits.TextMax = 16
	gw := newTestGateway(t, cfg, &fakePublisher{})

	_, err := gw.HandleCsvTelemetry("test", sampleCSV)
	require.ErrorIs(t, err, ErrTelemetryTooLong)
}

func TestNoop(t *testing.T) {
	gw := newTestGateway(t, nil, &fakePublisher{})
	assert.Equal(t, Version, gw.Noop())
	assert.Equal(t, uint32(1), gw.Status().ValidCmdCount)
}

func TestConcurrentRequestsSerialize(t *testing.T) {
	pub := &fakePublisher{}
	gw := newTestGateway(t, nil, pub)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = gw.SendTestScript(script.TestScriptPrintHello)
			_, _ = gw.HandleCsvTelemetry("test", sampleCSV)
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(50), gw.Status().SentCount)
	assert.Len(t, pub.sent(), 50)
	for _, cmd := range pub.sent() {
		assert.True(t, strings.HasPrefix(cmd.ScriptText, "print('Hello World')"))
	}
}
