package script

import (
	"fmt"

	"AstroGate/internal/model"
)

// SourceKind tags a Source.
type SourceKind uint8

const (
	SourceInline SourceKind = iota + 1
	SourceRemote
)

// Source is either inline script text or the path of a script on the Pi.
type Source struct {
	kind   SourceKind
	text   string
	length int
	path   string
}

// InlineSource wraps script text with its declared length.
func InlineSource(text string, length int) Source {
	return Source{kind: SourceInline, text: text, length: length}
}

// RemoteSource wraps the path of a script stored on the Pi.
func RemoteSource(path string) Source {
	return Source{kind: SourceRemote, path: path}
}

// Kind reports which variant s holds.
func (s Source) Kind() SourceKind { return s.kind }

// Builder formats script command payloads within fixed field capacities.
type Builder struct {
	PathMax   int
	ScriptMax int
}

// NewBuilder returns a Builder with the given script-file and script-text capacities.
func NewBuilder(pathMax, scriptMax int) Builder {
	return Builder{PathMax: pathMax, ScriptMax: scriptMax}
}

// Build dispatches on the source variant.
func (b Builder) Build(src Source) (model.ScriptCommand, error) {
	switch src.kind {
	case SourceInline:
		return b.BuildInline(src.text, src.length), nil
	case SourceRemote:
		return b.BuildRemote(src.path)
	default:
		return model.ScriptCommand{}, fmt.Errorf("unknown script source kind %d", src.kind)
	}
}

// BuildInline returns a run-text command carrying at most declaredLen bytes of text,
// never more than the script-text capacity.
func (b Builder) BuildInline(text string, declaredLen int) model.ScriptCommand {
	n := min(declaredLen, b.ScriptMax)
	return model.ScriptCommand{
		Command:    model.RunScriptText,
		ScriptFile: truncate(model.Placeholder, b.PathMax),
		ScriptText: truncate(text, n),
	}
}

// BuildRemote validates path and returns a run-file command.
func (b Builder) BuildRemote(path string) (model.ScriptCommand, error) {
	if err := ValidateFilename(path, b.PathMax); err != nil {
		return model.ScriptCommand{}, err
	}
	return model.ScriptCommand{
		Command:    model.RunScriptFile,
		ScriptFile: truncate(path, b.PathMax),
		ScriptText: truncate(model.Placeholder, b.ScriptMax),
	}, nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}
