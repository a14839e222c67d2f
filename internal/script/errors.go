package script

import "errors"

// Errors reported while turning a script request into a command payload.
// Each aborts only the current request.
var (
	ErrFileNotFound      = errors.New("script file does not exist")
	ErrFileOpen          = errors.New("error opening script file")
	ErrFileRead          = errors.New("error reading script file")
	ErrTranscodeOverflow = errors.New("script text exceeds field capacity")
	ErrInvalidFilename   = errors.New("invalid script filename")
	ErrOutsideScriptDir  = errors.New("script file outside the script directory")
)
