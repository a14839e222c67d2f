package script

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Path characters accepted for a script on the Pi.
var filenameRegex = regexp.MustCompile(`^[A-Za-z0-9_./~+-]+$`)

// ValidateFilename checks that name is a well formed path of at most maxLen characters.
func ValidateFilename(name string, maxLen int) error {
	if name == "" {
		return fmt.Errorf("%w: filename cannot be empty", ErrInvalidFilename)
	}
	if len(name) > maxLen {
		return fmt.Errorf("%w: filename too long (max %d characters)", ErrInvalidFilename, maxLen)
	}
	if !filenameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains characters outside [A-Za-z0-9_./~+-]", ErrInvalidFilename, name)
	}
	return nil
}

// ResolveInDir resolves name against dir and rejects any result that leaves
// dir, lexically or through a symlink. Relative names are taken relative to dir.
// An empty dir accepts every name unchanged.
func ResolveInDir(dir, name string) (string, error) {
	if dir == "" {
		return name, nil
	}
	if name == "" {
		return "", fmt.Errorf("%w: filename cannot be empty", ErrInvalidFilename)
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("script dir %q: %w", dir, err)
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if !within(root, p) {
		return "", fmt.Errorf("%w: %s", ErrOutsideScriptDir, name)
	}

	// A missing file is reported later as ErrFileNotFound.
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return p, nil
	}
	realPath, err := filepath.EvalSymlinks(p)
	if err != nil {
		return p, nil
	}
	if !within(realRoot, realPath) {
		return "", fmt.Errorf("%w: %s", ErrOutsideScriptDir, name)
	}
	return p, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
