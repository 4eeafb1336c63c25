package syntax

import (
	"sort"
	"strings"
)

// buffer applies non-overlapping replacements to an original text.
type buffer struct {
	src   string
	edits []edit
}

type edit struct {
	start, end int
	text       string
}

func newBuffer(src string) *buffer {
	return &buffer{src: src}
}

// Replace replaces src[start:end] with text. Offsets refer to the original text.
func (b *buffer) Replace(start, end int, text string) {
	b.edits = append(b.edits, edit{start: start, end: end, text: text})
}

func (b *buffer) String() string {
	if len(b.edits) == 0 {
		return b.src
	}
	sort.SliceStable(b.edits, func(i, j int) bool { return b.edits[i].start < b.edits[j].start })
	var sb strings.Builder
	pos := 0
	for _, e := range b.edits {
		if e.start < pos {
			// overlapping edit, keep the first one
			continue
		}
		sb.WriteString(b.src[pos:e.start])
		sb.WriteString(e.text)
		pos = e.end
	}
	sb.WriteString(b.src[pos:])
	return sb.String()
}
