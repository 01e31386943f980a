// Package span locates a byte range in source text.
//
// Every token and syntax tree node carries a Span so that diagnostics
// can always point back at the exact source region that produced them.
package span

// Span is a half-open byte range [Start, End) into a source string,
// plus the precomputed line and column of the start position.
//
// Line and Column are both 1-based, matching how editors report
// position to a human.
type Span struct {
	Start  int
	End    int
	Line   int
	Column int
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int { return s.End - s.Start }

// Merge returns the smallest span covering both s and other. The
// resulting line/column are taken from whichever span starts first.
func Merge(s, other Span) Span {
	start, end := s, other
	if other.Start < s.Start {
		start, end = other, s
	}
	merged := start
	if end.End > merged.End {
		merged.End = end.End
	}
	return merged
}

// LineCounter tracks line/column position while scanning a source
// string byte by byte. It recognizes the line terminators named in
// spec.md's source-encoding section: LF, CR, U+2028 and U+2029.
type LineCounter struct {
	line   int
	column int
}

// NewLineCounter returns a counter positioned at line 1, column 1.
func NewLineCounter() *LineCounter {
	return &LineCounter{line: 1, column: 1}
}

// Position returns the counter's current line and column.
func (lc *LineCounter) Position() (line, column int) {
	return lc.line, lc.column
}

// Advance updates the counter for a single consumed byte. Multi-byte
// UTF-8 continuation bytes (0x80-0xBF) do not advance the column on
// their own; the lexer advances once per rune, so callers should only
// invoke Advance on the leading byte of a rune (ASCII bytes are their
// own leading byte).
func (lc *LineCounter) Advance(ch byte) {
	switch ch {
	case '\n':
		lc.line++
		lc.column = 1
	case '\r':
		lc.line++
		lc.column = 1
	default:
		lc.column++
	}
}

// AdvanceRune is like Advance but recognizes the two Unicode line
// terminators (U+2028 LINE SEPARATOR, U+2029 PARAGRAPH SEPARATOR)
// that a single byte cannot represent.
func (lc *LineCounter) AdvanceRune(r rune) {
	switch r {
	case ' ', ' ':
		lc.line++
		lc.column = 1
	case '\n', '\r':
		lc.line++
		lc.column = 1
	default:
		lc.column++
	}
}
