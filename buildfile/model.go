// Package buildfile parses BUILD files into an editable structural model.
//
// Only dependencies=[...] and exports=[...] lists are recognized; every other
// byte of the file is opaque and survives re-serialization verbatim. Edits
// are span replacements, so a model that was never edited reproduces the
// original bytes exactly.
package buildfile

import (
	"bytes"
	"fmt"
	"strings"
)

// Block keywords recognized by the parser.
const (
	KeywordDependencies = "dependencies"
	KeywordExports      = "exports"
)

// Span is a half-open byte range [Start, End) into the source.
type Span struct {
	Start int
	End   int
}

// Entry is one string-literal element of a recognized block.
type Entry struct {
	// Literal is the target path between the quotes, as written.
	Literal string
	// Quote is the delimiter the literal was written with.
	Quote byte
	// Comment is the trailing same-line comment including '#', or "".
	Comment string
	// Skip marks entries whose comment contains the skip marker; they are
	// exempt from automatic removal and never flagged.
	Skip bool
	// Span covers the quoted literal.
	Span Span
	// Chunk covers the removable region: leading whitespace run, literal,
	// separator and trailing comment.
	Chunk Span
	// HasComma reports whether the entry already has a trailing separator.
	HasComma bool
}

// item is one slot of a block interior: either an entry or opaque filler
// (own-line comments, stray non-separator tokens). Pure whitespace and stray
// commas never become items; they live inside entry chunks or raw bytes.
type item struct {
	entry  *Entry
	filler string
}

// Block is one recognized dependencies/exports list.
type Block struct {
	Keyword string
	// Label is the value of the nearest preceding top-level name='...'
	// assignment, or "" for the file's default target.
	Label string
	// Span covers the block from the keyword through the closing bracket.
	Span Span

	header      string // raw text from keyword through '['
	indent      string // entry indentation used when regenerating
	closeIndent string // indentation of the keyword line, used before ']'
	items       []item

	removed   map[*Entry]bool
	inserted  []string
	normalize bool
	sortKey   func(literal string) string
}

// Entries returns the block's entries in source order.
func (b *Block) Entries() []*Entry {
	var entries []*Entry
	for _, it := range b.items {
		if it.entry != nil {
			entries = append(entries, it.entry)
		}
	}
	return entries
}

// Edited reports whether any edit was requested on the block.
func (b *Block) Edited() bool {
	return b.normalize || len(b.removed) > 0 || len(b.inserted) > 0
}

// File is the parsed representation of one BUILD file.
type File struct {
	// Path is the location the source was read from.
	Path string
	// Dir is the project-relative directory used to form target addresses.
	Dir string
	// Blocks holds the recognized blocks in source order.
	Blocks []*Block

	src []byte
}

// Source returns the original bytes the file was parsed from.
func (f *File) Source() []byte {
	return f.src
}

// Edited reports whether any block of the file was edited.
func (f *File) Edited() bool {
	for _, b := range f.Blocks {
		if b.Edited() {
			return true
		}
	}
	return false
}

// DependencyBlocks returns the blocks declaring private dependencies.
func (f *File) DependencyBlocks() []*Block {
	return f.blocksOf(KeywordDependencies)
}

// ExportBlocks returns the blocks re-exposing dependencies to consumers.
func (f *File) ExportBlocks() []*Block {
	return f.blocksOf(KeywordExports)
}

func (f *File) blocksOf(keyword string) []*Block {
	var blocks []*Block
	for _, b := range f.Blocks {
		if b.Keyword == keyword {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Render serializes the model back to bytes. Blocks without edits are copied
// verbatim from the source.
func (f *File) Render() []byte {
	var buf bytes.Buffer
	prev := 0
	for _, b := range f.Blocks {
		buf.Write(f.src[prev:b.Span.Start])
		switch {
		case b.normalize:
			buf.WriteString(b.renderCanonical())
		case len(b.removed) > 0 || len(b.inserted) > 0:
			buf.WriteString(b.renderSurgical(f.src))
		default:
			buf.Write(f.src[b.Span.Start:b.Span.End])
		}
		prev = b.Span.End
	}
	buf.Write(f.src[prev:])
	return buf.Bytes()
}

// ParseError describes malformed syntax inside a recognized block. It is
// recoverable at run level: the file is skipped with a warning.
type ParseError struct {
	Path   string
	Line   int
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

func renderEntryLine(indent, literal, comment string) string {
	quote := "'"
	if strings.Contains(literal, "'") {
		quote = `"`
	}
	line := indent + quote + literal + quote + ","
	if comment != "" {
		line += "  " + comment
	}
	return line
}
