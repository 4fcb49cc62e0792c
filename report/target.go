package report

import (
	"path"
	"strings"
)

// Target identifies a buildable unit: the directory of its declaring BUILD
// file plus the target name within that file.
type Target struct {
	Dir  string
	Name string
}

// ParseTarget parses a Pants address of the form "dir:name" or "dir".
// When the name part is omitted it defaults to the last path segment.
func ParseTarget(s string) Target {
	if dir, name, ok := strings.Cut(s, ":"); ok {
		if dir == "" {
			return Target{Name: name}
		}
		return Target{Dir: dir, Name: name}
	}
	return Target{Dir: s, Name: path.Base(s)}
}

// ParseEntry parses an entry literal from a BUILD file. Relative literals
// (":name") resolve against the directory of the declaring file.
func ParseEntry(literal, dir string) Target {
	if strings.HasPrefix(literal, ":") {
		return Target{Dir: dir, Name: literal[1:]}
	}
	return ParseTarget(literal)
}

// IsDefault reports whether the target is its directory's default target,
// i.e. the name repeats the last path segment.
func (t Target) IsDefault() bool {
	return path.Base(t.Dir) == t.Name
}

// String returns the canonical spelling: the bare directory for default
// targets, "dir:name" otherwise.
func (t Target) String() string {
	if t.IsDefault() {
		return t.Dir
	}
	return t.Dir + ":" + t.Name
}

// Normalize reduces an address to its canonical spelling so that the report's
// naming scheme and BUILD-file literals compare as exact strings.
func Normalize(s string) string {
	return ParseTarget(s).String()
}

// NormalizeEntry is Normalize for BUILD-file entry literals, resolving
// relative ":name" spellings against dir.
func NormalizeEntry(literal, dir string) string {
	return ParseEntry(literal, dir).String()
}
