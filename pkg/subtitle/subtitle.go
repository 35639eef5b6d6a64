// Package subtitle splits decoded subtitle text into caption units and
// reassembles them byte-exact except for intended text substitutions.
// Structure lines (index, time-range) are preserved verbatim; blocks that
// don't match the expected shape pass through untouched so malformed files
// still round-trip.
package subtitle

import (
	"strings"
	"unicode"
)

// Unit is one subtitle block. Only TextLines may be rewritten by rules;
// Index and TimeRange keep their exact source bytes. A passthrough unit is
// a block whose shape we did not recognize: its raw lines are kept verbatim
// and never touched.
type Unit struct {
	Index       string
	TimeRange   string
	TextLines   []string
	Raw         []string
	Passthrough bool
}

// Lines reassembles the unit's lines in source order.
func (u *Unit) Lines() []string {
	if u.Passthrough {
		return u.Raw
	}
	lines := make([]string, 0, 2+len(u.TextLines))
	lines = append(lines, u.Index, u.TimeRange)
	lines = append(lines, u.TextLines...)
	return lines
}

// Text joins the caption body for rule application.
func (u *Unit) Text() string {
	return strings.Join(u.TextLines, "\n")
}

// SetText replaces the caption body. A replacement may legitimately change
// the line count.
func (u *Unit) SetText(text string) {
	u.TextLines = strings.Split(text, "\n")
}

// Document is a parsed subtitle file plus the formatting conventions needed
// to serialize it back without churn: the newline style, the blank-line runs
// around each block, and whether the file ended with a newline.
type Document struct {
	Units []Unit

	// gaps[i] holds the blank lines before unit i; gaps[len(Units)] holds
	// the trailing blank lines. Blank lines are stored verbatim since they
	// may carry whitespace.
	gaps [][]string

	Newline         string
	TrailingNewline bool
}

// Parse splits decoded text into caption units. Blocks are separated by one
// or more blank lines; a block's first line is the index, its second the
// time-range (shape-checked only, never reformatted), the rest the caption
// text. Anything else becomes a passthrough unit — leniency here is policy,
// not a bug.
func Parse(text string) *Document {
	doc := &Document{Newline: "\n"}
	if strings.Contains(text, "\r\n") {
		doc.Newline = "\r\n"
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	doc.TrailingNewline = strings.HasSuffix(normalized, "\n")
	if doc.TrailingNewline {
		normalized = strings.TrimSuffix(normalized, "\n")
	}

	var blanks []string
	var block []string
	flush := func() {
		if len(block) > 0 {
			doc.gaps = append(doc.gaps, blanks)
			doc.Units = append(doc.Units, parseBlock(block))
			blanks = nil
			block = nil
		}
	}
	if normalized != "" {
		for _, line := range strings.Split(normalized, "\n") {
			if strings.TrimSpace(line) == "" {
				flush()
				blanks = append(blanks, line)
				continue
			}
			block = append(block, line)
		}
	}
	flush()
	doc.gaps = append(doc.gaps, blanks)
	return doc
}

// parseBlock classifies one run of non-blank lines.
func parseBlock(lines []string) Unit {
	if len(lines) >= 2 && isIndexLine(lines[0]) && isTimeRangeLine(lines[1]) {
		return Unit{
			Index:     lines[0],
			TimeRange: lines[1],
			TextLines: append([]string{}, lines[2:]...),
		}
	}
	return Unit{Raw: append([]string{}, lines...), Passthrough: true}
}

// isIndexLine reports whether the line is a bare sequence number.
func isIndexLine(line string) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// isTimeRangeLine shape-checks for the SRT time separator. The timestamps
// themselves are never validated or reformatted.
func isTimeRangeLine(line string) bool {
	return strings.Contains(line, "-->")
}

// Serialize re-joins the units with the document's original blank-line
// convention and line terminator. For unmodified input this reproduces the
// source bytes exactly.
func (doc *Document) Serialize() string {
	var out []string
	for i, unit := range doc.Units {
		out = append(out, doc.gaps[i]...)
		out = append(out, unit.Lines()...)
	}
	out = append(out, doc.gaps[len(doc.Units)]...)

	s := strings.Join(out, doc.Newline)
	if doc.TrailingNewline {
		s += doc.Newline
	}
	return s
}
