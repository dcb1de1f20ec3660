// Package bounded copies strings into fixed-capacity storage.
//
// Every copy reports the number of bytes kept and whether the source had to
// be cut. Cuts never split a UTF-8 sequence, so the kept prefix is always
// valid text when the source was.
package bounded

import "unicode/utf8"

// Result describes the outcome of a bounded copy.
type Result struct {
	Len       int  // bytes kept
	SourceLen int  // bytes offered
	Truncated bool // SourceLen > Len
}

// String returns s cut to at most max bytes.
func String(s string, max int) (string, Result) {
	if max < 0 {
		max = 0
	}
	if len(s) <= max {
		return s, Result{Len: len(s), SourceLen: len(s)}
	}
	n := runeBoundary(s, max)
	return s[:n], Result{Len: n, SourceLen: len(s), Truncated: true}
}

// Text is a string with a fixed maximum byte length.
type Text struct {
	max int
	s   string
}

// NewText returns empty Text that will hold at most max bytes.
func NewText(max int) Text {
	return Text{max: max}
}

// Set stores s, cutting it to the capacity.
func (t *Text) Set(s string) Result {
	var res Result
	t.s, res = String(s, t.max)
	return res
}

func (t Text) String() string { return t.s }

// runeBoundary returns the largest n <= max such that s[:n] does not end
// inside a multi-byte sequence.
func runeBoundary(s string, max int) int {
	n := max
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
