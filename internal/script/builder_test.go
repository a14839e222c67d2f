package script

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AstroGate/internal/model"
)

func TestBuildInline(t *testing.T) {
	b := NewBuilder(64, 32)

	cmd := b.BuildInline(`print('hi')\n`, 13)
	assert.Equal(t, model.RunScriptText, cmd.Command)
	assert.Equal(t, model.Placeholder, cmd.ScriptFile)
	assert.Equal(t, `print('hi')\n`, cmd.ScriptText)
}

func TestBuildInlineTruncates(t *testing.T) {
	b := NewBuilder(64, 8)

	cmd := b.BuildInline(strings.Repeat("x", 20), 20)
	assert.Equal(t, "xxxxxxxx", cmd.ScriptText)

	cmd = b.BuildInline("abcdef", 3)
	assert.Equal(t, "abc", cmd.ScriptText)

	// A declared length beyond the text never reads past it.
	cmd = b.BuildInline("ab", 8)
	assert.Equal(t, "ab", cmd.ScriptText)
}

func TestBuildRemote(t *testing.T) {
	b := NewBuilder(64, 256)

	cmd, err := b.BuildRemote("/home/pi/scripts/hello.py")
	require.NoError(t, err)
	assert.Equal(t, model.RunScriptFile, cmd.Command)
	assert.Equal(t, "/home/pi/scripts/hello.py", cmd.ScriptFile)
	assert.Equal(t, model.Placeholder, cmd.ScriptText)
}

func TestBuildRemoteInvalid(t *testing.T) {
	b := NewBuilder(16, 256)

	for _, name := range []string{"", "bad name.py", "x;rm -rf", "/a/very/long/path/name.py", "tab\tname"} {
		cmd, err := b.BuildRemote(name)
		require.ErrorIs(t, err, ErrInvalidFilename, name)
		assert.Equal(t, model.ScriptCommand{}, cmd)
	}
}

func TestBuildFromSource(t *testing.T) {
	b := NewBuilder(64, 64)

	cmd, err := b.Build(InlineSource("print(1)", 8))
	require.NoError(t, err)
	assert.Equal(t, model.RunScriptText, cmd.Command)
	assert.Equal(t, "print(1)", cmd.ScriptText)

	cmd, err = b.Build(RemoteSource("run.py"))
	require.NoError(t, err)
	assert.Equal(t, model.RunScriptFile, cmd.Command)
	assert.Equal(t, "run.py", cmd.ScriptFile)

	_, err = b.Build(Source{})
	assert.Error(t, err)
}

func TestBuildFieldsNeverStale(t *testing.T) {
	b := NewBuilder(64, 64)

	first := b.BuildInline("long script text here", 21)
	second, err := b.BuildRemote("a.py")
	require.NoError(t, err)

	assert.Equal(t, model.Placeholder, second.ScriptText)
	assert.Equal(t, model.Placeholder, first.ScriptFile)
}

func TestValidateFilename(t *testing.T) {
	assert.NoError(t, ValidateFilename("scripts/run-1.py", 64))
	assert.NoError(t, ValidateFilename("~/hello_world.py", 64))
	assert.ErrorIs(t, ValidateFilename("hello$.py", 64), ErrInvalidFilename)
	assert.ErrorIs(t, ValidateFilename(strings.Repeat("a", 65), 64), ErrInvalidFilename)
}

func TestCanned(t *testing.T) {
	text, name := Canned(TestScriptPrintHello)
	assert.Equal(t, `print('Hello World')\nprint('Hello Astro Pi')`, text)
	assert.Equal(t, "Print Hello World test script", name)

	text, name = Canned(TestScriptDisplayHello)
	assert.Contains(t, text, "sense.show_message")
	assert.Equal(t, "Display Hello World test script", name)

	_, name = Canned(TestScript(99))
	assert.Equal(t, "Display Hello World test script", name)
}
