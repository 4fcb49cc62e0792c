package buildfile

import (
	"sort"
	"strings"
)

// RemoveEntries marks the given entries for removal. Each removal deletes the
// entry's chunk (leading whitespace, literal, separator, trailing comment)
// and leaves every other byte of the file untouched. Returns the number of
// entries that will be removed.
func (b *Block) RemoveEntries(victims map[*Entry]bool) int {
	removed := 0
	for _, e := range b.Entries() {
		if victims[e] {
			if b.removed == nil {
				b.removed = make(map[*Entry]bool)
			}
			b.removed[e] = true
			removed++
		}
	}
	return removed
}

// InsertLiterals appends new single-quoted entries before the closing
// bracket, in the order given. Returns the number of entries inserted.
func (b *Block) InsertLiterals(literals []string) int {
	b.inserted = append(b.inserted, literals...)
	return len(literals)
}

// Normalize requests full regeneration of the block: entries reordered by
// key, string delimiters rewritten to single quotes, every entry followed by
// a trailing separator. Comments travel with their owning entry; own-line
// comments keep their position in the block.
func (b *Block) Normalize(key func(literal string) string) {
	b.normalize = true
	b.sortKey = key
}

// survivors returns the entries that are not marked for removal.
func (b *Block) survivors() []*Entry {
	var entries []*Entry
	for _, e := range b.Entries() {
		if !b.removed[e] {
			entries = append(entries, e)
		}
	}
	return entries
}

// renderSurgical re-emits the block's raw bytes minus removed chunks, with
// inserted entries spliced in before the closing bracket.
func (b *Block) renderSurgical(src []byte) string {
	type patch struct {
		pos  int
		cut  int // bytes to drop at pos
		text string
	}
	var patches []patch

	for e := range b.removed {
		patches = append(patches, patch{pos: e.Chunk.Start, cut: e.Chunk.End - e.Chunk.Start})
	}

	if len(b.inserted) > 0 {
		last := lastEntry(b.survivors())
		insertPos := b.Span.Start + len(b.header)
		if last != nil {
			insertPos = last.Chunk.End
			if !last.HasComma {
				// The separator has to land right after the literal so it
				// stays outside any trailing comment.
				patches = append(patches, patch{pos: last.Span.End, text: ","})
			}
		}

		var sb strings.Builder
		for _, lit := range b.inserted {
			sb.WriteString("\n")
			sb.WriteString(renderEntryLine(b.indent, lit, ""))
		}
		// A block that closes on the entry line gets its bracket moved to a
		// fresh line so the inserted entries do not swallow it.
		if !strings.Contains(string(src[insertPos:b.Span.End-1]), "\n") {
			sb.WriteString("\n")
			sb.WriteString(b.closeIndent)
		}
		patches = append(patches, patch{pos: insertPos, text: sb.String()})
	}

	sort.SliceStable(patches, func(i, j int) bool { return patches[i].pos < patches[j].pos })

	var sb strings.Builder
	pos := b.Span.Start
	for _, p := range patches {
		if p.pos > pos {
			sb.Write(src[pos:p.pos])
			pos = p.pos
		}
		sb.WriteString(p.text)
		if end := p.pos + p.cut; end > pos {
			pos = end
		}
	}
	sb.Write(src[pos:b.Span.End])
	return sb.String()
}

// renderCanonical regenerates the whole block: one entry per line in key
// order, single quotes, trailing commas. Opaque filler keeps its slot while
// entries permute around it.
func (b *Block) renderCanonical() string {
	entries := b.survivors()
	for _, lit := range b.inserted {
		entries = append(entries, &Entry{Literal: lit})
	}
	if b.sortKey != nil {
		key := b.sortKey
		sort.SliceStable(entries, func(i, j int) bool {
			return key(entries[i].Literal) < key(entries[j].Literal)
		})
	}

	var sb strings.Builder
	sb.WriteString(b.header)
	sb.WriteString("\n")

	next := 0
	emit := func(e *Entry) {
		sb.WriteString(renderEntryLine(b.indent, e.Literal, e.Comment))
		sb.WriteString("\n")
	}
	for _, it := range b.items {
		if it.entry == nil {
			for _, line := range strings.Split(it.filler, "\n") {
				if trimmed := strings.TrimSpace(line); trimmed != "" {
					sb.WriteString(b.indent)
					sb.WriteString(trimmed)
					sb.WriteString("\n")
				}
			}
			continue
		}
		if b.removed[it.entry] {
			continue
		}
		if next < len(entries) {
			emit(entries[next])
			next++
		}
	}
	for ; next < len(entries); next++ {
		emit(entries[next])
	}

	sb.WriteString(b.closeIndent)
	sb.WriteString("]")
	return sb.String()
}

func lastEntry(entries []*Entry) *Entry {
	if len(entries) == 0 {
		return nil
	}
	return entries[len(entries)-1]
}
