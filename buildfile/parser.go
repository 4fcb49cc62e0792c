package buildfile

import (
	"bytes"
	"strings"
)

// Parser turns BUILD-file text into a structural model. The zero value
// recognizes blocks but never sets the Skip flag.
type Parser struct {
	// SkipMarker is the comment substring that exempts an entry from
	// sanitizing, e.g. "skip-sanitize".
	SkipMarker string
}

// Parse scans text for dependencies=[...] and exports=[...] constructs.
// Everything else is opaque. Malformed block syntax (unbalanced brackets,
// unterminated string literal) yields a *ParseError.
func (p Parser) Parse(path string, src []byte) (*File, error) {
	f := &File{Path: path, src: src}
	label := ""

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '#':
			i = skipToEOL(src, i)
		case c == '\'' || c == '"':
			i = skipOpaqueString(src, i)
		case isIdentStart(c) && (i == 0 || !isIdentChar(src[i-1])):
			word, end := readWord(src, i)
			switch word {
			case "name":
				if value, next, ok := parseAssignedString(src, end); ok {
					label = value
					i = next
					continue
				}
				i = end
			case KeywordDependencies, KeywordExports:
				open, ok := blockOpen(src, end)
				if !ok {
					i = end
					continue
				}
				block, next, err := p.parseBlock(path, src, i, open, word, label)
				if err != nil {
					return nil, err
				}
				f.Blocks = append(f.Blocks, block)
				i = next
			default:
				i = end
			}
		default:
			i++
		}
	}
	return f, nil
}

// parseBlock consumes a recognized list from the keyword through the closing
// bracket. kwStart indexes the keyword, open indexes '['.
func (p Parser) parseBlock(path string, src []byte, kwStart, open int, keyword, label string) (*Block, int, error) {
	b := &Block{
		Keyword:     keyword,
		Label:       label,
		header:      string(src[kwStart : open+1]),
		closeIndent: lineIndent(src, kwStart),
	}

	i := open + 1
	fillerStart := i
	depth := 0

	for i < len(src) {
		c := src[i]
		switch {
		case c == ']':
			if depth > 0 {
				depth--
				i++
				continue
			}
			b.appendFiller(src[fillerStart:i])
			b.Span = Span{Start: kwStart, End: i + 1}
			b.detectIndent(src)
			return b, i + 1, nil
		case c == '[':
			depth++
			i++
		case c == '#':
			i = skipToEOL(src, i)
		case c == '\'' || c == '"':
			if depth > 0 {
				end, err := p.scanString(path, src, i)
				if err != nil {
					return nil, 0, err
				}
				i = end
				continue
			}
			next, err := p.parseEntry(path, src, b, fillerStart, i)
			if err != nil {
				return nil, 0, err
			}
			i = next
			fillerStart = i
		default:
			i++
		}
	}
	return nil, 0, &ParseError{
		Path:   path,
		Line:   lineAt(src, kwStart),
		Offset: kwStart,
		Msg:    "unbalanced brackets in " + keyword + " block",
	}
}

// parseEntry consumes one quoted literal starting at qs, plus its trailing
// separator and same-line comment. The pure-whitespace run immediately before
// the literal is absorbed into the entry's removable chunk.
func (p Parser) parseEntry(path string, src []byte, b *Block, fillerStart, qs int) (int, error) {
	filler := src[fillerStart:qs]
	k := len(filler)
	for k > 0 && isBlank(filler[k-1]) {
		k--
	}
	chunkStart := qs - (len(filler) - k)
	b.appendFiller(filler[:k])

	end, err := p.scanString(path, src, qs)
	if err != nil {
		return 0, err
	}
	literal := string(src[qs+1 : end-1])

	j := skipInline(src, end)
	hasComma := false
	if j < len(src) && src[j] == ',' {
		hasComma = true
		j = skipInline(src, j+1)
	}
	comment := ""
	if j < len(src) && src[j] == '#' {
		ce := skipToEOL(src, j)
		comment = strings.TrimRight(string(src[j:ce]), " \t")
		j = ce
	}

	b.items = append(b.items, item{entry: &Entry{
		Literal:  literal,
		Quote:    src[qs],
		Comment:  comment,
		Skip:     p.SkipMarker != "" && comment != "" && strings.Contains(comment, p.SkipMarker),
		Span:     Span{Start: qs, End: end},
		Chunk:    Span{Start: chunkStart, End: j},
		HasComma: hasComma,
	}})
	return j, nil
}

// scanString consumes a single-line quoted literal with backslash escapes and
// returns the index one past the closing quote.
func (p Parser) scanString(path string, src []byte, qs int) (int, error) {
	quote := src[qs]
	for j := qs + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return 0, unterminated(path, src, qs)
		case quote:
			return j + 1, nil
		}
	}
	return 0, unterminated(path, src, qs)
}

func unterminated(path string, src []byte, qs int) error {
	return &ParseError{
		Path:   path,
		Line:   lineAt(src, qs),
		Offset: qs,
		Msg:    "unterminated string literal",
	}
}

// appendFiller records opaque interior content. Runs of whitespace and stray
// separators carry no content and are never materialized as items.
func (b *Block) appendFiller(raw []byte) {
	if len(bytes.Trim(raw, " \t\r\n,")) == 0 {
		return
	}
	b.items = append(b.items, item{filler: string(raw)})
}

// detectIndent picks the indentation used when regenerating entry lines.
func (b *Block) detectIndent(src []byte) {
	for _, it := range b.items {
		if it.entry == nil {
			continue
		}
		if indent := lineIndent(src, it.entry.Span.Start); indent != "" {
			b.indent = indent
		}
		break
	}
	if b.indent == "" {
		b.indent = b.closeIndent + "    "
	}
}

// blockOpen checks for "= [" after a block keyword, returning the bracket
// index.
func blockOpen(src []byte, i int) (int, bool) {
	j := skipWhitespace(src, i)
	if j >= len(src) || src[j] != '=' {
		return 0, false
	}
	j = skipWhitespace(src, j+1)
	if j >= len(src) || src[j] != '[' {
		return 0, false
	}
	return j, true
}

// parseAssignedString parses "= 'value'" after a name keyword.
func parseAssignedString(src []byte, i int) (string, int, bool) {
	j := skipInline(src, i)
	if j >= len(src) || src[j] != '=' {
		return "", 0, false
	}
	j = skipInline(src, j+1)
	if j >= len(src) || (src[j] != '\'' && src[j] != '"') {
		return "", 0, false
	}
	quote := src[j]
	for k := j + 1; k < len(src); k++ {
		switch src[k] {
		case '\\':
			k++
		case '\n':
			return "", 0, false
		case quote:
			return string(src[j+1 : k]), k + 1, true
		}
	}
	return "", 0, false
}

// lineIndent returns the whitespace prefix of the line containing off, or ""
// when anything but whitespace precedes off on its line.
func lineIndent(src []byte, off int) string {
	start := off
	for start > 0 && src[start-1] != '\n' {
		start--
	}
	for k := start; k < off; k++ {
		if !isSpace(src[k]) {
			return ""
		}
	}
	return string(src[start:off])
}

func lineAt(src []byte, off int) int {
	return 1 + bytes.Count(src[:off], []byte{'\n'})
}

func skipToEOL(src []byte, i int) int {
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipInline(src []byte, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

func skipWhitespace(src []byte, i int) int {
	for i < len(src) && (isSpace(src[i]) || src[i] == '\n' || src[i] == '\r') {
		i++
	}
	return i
}

// skipOpaqueString skips a top-level string without validating it; outside
// recognized blocks nothing is ever an error.
func skipOpaqueString(src []byte, i int) int {
	quote := src[i]
	if i+2 < len(src) && src[i+1] == quote && src[i+2] == quote {
		if end := bytes.Index(src[i+3:], []byte{quote, quote, quote}); end >= 0 {
			return i + 3 + end + 3
		}
		return len(src)
	}
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n', quote:
			return j + 1
		}
	}
	return len(src)
}

func readWord(src []byte, i int) (string, int) {
	j := i
	for j < len(src) && isIdentChar(src[j]) {
		j++
	}
	return string(src[i:j]), j
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isBlank(c byte) bool {
	return isSpace(c) || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || ('0' <= c && c <= '9')
}
