// Package diff renders line diffs between a crate root and its rewrite.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Line is a single line of a hunk, without its newline.
type Line struct {
	Content string
	Type    LineType
}

// Hunk is a group of changes with surrounding context. Starts are 1-based.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff represents changes to a single file
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// DefaultContext is the number of unchanged lines kept around each change.
const DefaultContext = 3

// operation is one line of the full diff. oldPos and newPos are the 0-based
// positions in each file before the line is applied.
type operation struct {
	typ     LineType
	oldPos  int
	newPos  int
	content string
}

// Compute diffs oldContent against newContent line by line.
func Compute(oldPath, newPath, oldContent, newContent string, context int) *FileDiff {
	d := &FileDiff{OldPath: oldPath, NewPath: newPath}
	if oldContent == newContent {
		return d
	}

	dmp := diffmatchpatch.New()
	// Line-level reduction avoids newline boundary artifacts.
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	d.Hunks = groupIntoHunks(toOperations(diffs), context)
	return d
}

func toOperations(diffs []diffmatchpatch.Diff) []operation {
	var ops []operation
	oldPos, newPos := 0, 0
	for _, df := range diffs {
		for _, line := range strings.SplitAfter(df.Text, "\n") {
			if line == "" {
				continue
			}
			op := operation{oldPos: oldPos, newPos: newPos, content: strings.TrimSuffix(line, "\n")}
			switch df.Type {
			case diffmatchpatch.DiffEqual:
				op.typ = LineContext
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				op.typ = LineRemoved
				oldPos++
			case diffmatchpatch.DiffInsert:
				op.typ = LineAdded
				newPos++
			}
			ops = append(ops, op)
		}
	}
	return ops
}

// groupIntoHunks merges changes whose context windows touch.
func groupIntoHunks(ops []operation, context int) []Hunk {
	var hunks []Hunk
	start, end := -1, -1
	flush := func() {
		if start >= 0 {
			hunks = append(hunks, newHunk(ops[start:end+1]))
		}
	}
	for i, op := range ops {
		if op.typ == LineContext {
			continue
		}
		lo, hi := max(0, i-context), min(len(ops)-1, i+context)
		if start >= 0 && lo <= end+1 {
			end = max(end, hi)
			continue
		}
		flush()
		start, end = lo, hi
	}
	flush()
	return hunks
}

func newHunk(ops []operation) Hunk {
	h := Hunk{OldStart: ops[0].oldPos, NewStart: ops[0].newPos}
	for _, op := range ops {
		if op.typ != LineAdded {
			h.OldCount++
		}
		if op.typ != LineRemoved {
			h.NewCount++
		}
		h.Lines = append(h.Lines, Line{Content: op.content, Type: op.typ})
	}
	// An empty side names the line before the hunk.
	if h.OldCount > 0 {
		h.OldStart++
	}
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// Empty reports whether the two sides were identical.
func (d *FileDiff) Empty() bool {
	return len(d.Hunks) == 0
}

// String renders the diff in unified format. An empty diff renders as "".
func (d *FileDiff) String() string {
	if d.Empty() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s\n+++ %s\n", d.OldPath, d.NewPath)
	for _, h := range d.Hunks {
		fmt.Fprintf(&b, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			switch l.Type {
			case LineAdded:
				b.WriteByte('+')
			case LineRemoved:
				b.WriteByte('-')
			default:
				b.WriteByte(' ')
			}
			b.WriteString(l.Content)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
