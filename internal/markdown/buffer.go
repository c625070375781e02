package markdown

import (
	"strings"
)

// Mode is the buffer's parsing state.
type Mode int

const (
	ModeNormal Mode = iota
	ModeFence
	ModeList
)

func (m Mode) String() string {
	switch m {
	case ModeFence:
		return "fence"
	case ModeList:
		return "list"
	default:
		return "normal"
	}
}

// Reason records which boundary produced a flush.
type Reason int

const (
	ReasonBlank Reason = iota
	ReasonHeading
	ReasonFence
	ReasonFinal
)

func (r Reason) String() string {
	switch r {
	case ReasonBlank:
		return "blank"
	case ReasonHeading:
		return "heading"
	case ReasonFence:
		return "fence"
	default:
		return "final"
	}
}

// Flush is one independently renderable unit of markdown.
type Flush struct {
	Text   string
	Reason Reason
}

// Buffer accumulates deltas and emits flushes at markdown boundaries.
// It is not safe for concurrent use; a turn owns exactly one Buffer.
type Buffer struct {
	block strings.Builder // complete lines not yet flushed
	line  strings.Builder // current line, no newline seen yet
	mode  Mode

	fenceChar   byte
	fenceLen    int
	fenceIndent int

	// inList stays set across blank lines after a list item, so a fence
	// indented under the item is still a fence.
	inList bool
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

// Mode reports the current parsing state.
func (b *Buffer) Mode() Mode { return b.mode }

// Pending returns the text received since the last flush.
func (b *Buffer) Pending() string {
	return b.block.String() + b.line.String()
}

// Consume appends delta and returns the flushes it completed, in order.
// Deltas need not align to line boundaries.
func (b *Buffer) Consume(delta string) []Flush {
	var out []Flush
	for delta != "" {
		i := strings.IndexByte(delta, '\n')
		if i < 0 {
			b.line.WriteString(delta)
			break
		}
		b.line.WriteString(delta[:i+1])
		delta = delta[i+1:]

		line := b.line.String()
		b.line.Reset()
		out = b.classify(line, out)
	}
	return out
}

// Finalize force-flushes whatever remains, including an unterminated fence
// or a last line without a newline, and resets the buffer. The returned
// flush has empty Text when nothing was pending.
func (b *Buffer) Finalize() Flush {
	text := b.Pending()
	b.block.Reset()
	b.line.Reset()
	b.mode = ModeNormal
	b.fenceChar, b.fenceLen, b.fenceIndent = 0, 0, 0
	b.inList = false
	return Flush{Text: text, Reason: ReasonFinal}
}

func (b *Buffer) classify(line string, out []Flush) []Flush {
	if b.mode == ModeFence {
		b.block.WriteString(line)
		if b.closesFence(line) {
			b.mode = ModeNormal
			b.fenceChar, b.fenceLen, b.fenceIndent = 0, 0, 0
			out = b.flush(ReasonFence, out)
		}
		return out
	}

	maxIndent := 3
	if b.inList {
		maxIndent = -1
	}
	if ch, n, indent, ok := fenceOpener(line, maxIndent); ok {
		out = b.flush(ReasonFence, out)
		b.block.WriteString(line)
		b.mode = ModeFence
		b.fenceChar, b.fenceLen, b.fenceIndent = ch, n, indent
		return out
	}

	switch {
	case strings.TrimSpace(line) == "":
		b.block.WriteString(line)
		b.mode = ModeNormal
		out = b.flush(ReasonBlank, out)
	case isHeading(line):
		out = b.flush(ReasonHeading, out)
		b.mode = ModeNormal
		b.inList = false
		out = append(out, Flush{Text: line, Reason: ReasonHeading})
	case isListItem(line):
		b.block.WriteString(line)
		b.mode = ModeList
		b.inList = true
	default:
		b.block.WriteString(line)
		// Unindented prose ends the list; indented lines continue an item.
		if line[0] != ' ' && line[0] != '\t' {
			b.inList = false
		}
	}
	return out
}

// flush emits the accumulated block, if any.
func (b *Buffer) flush(r Reason, out []Flush) []Flush {
	if b.block.Len() == 0 {
		return out
	}
	out = append(out, Flush{Text: b.block.String(), Reason: r})
	b.block.Reset()
	return out
}

func (b *Buffer) closesFence(line string) bool {
	s, _, ok := stripIndent(line, max(3, b.fenceIndent))
	if !ok {
		return false
	}
	n := runLen(s, b.fenceChar)
	if n < b.fenceLen {
		return false
	}
	return strings.TrimSpace(s[n:]) == ""
}

// fenceOpener reports whether line opens a fenced code block and returns its
// delimiter character, length and indentation. maxIndent < 0 allows any
// indentation.
func fenceOpener(line string, maxIndent int) (byte, int, int, bool) {
	s, indent, ok := stripIndent(line, maxIndent)
	if !ok || s == "" {
		return 0, 0, 0, false
	}
	ch := s[0]
	if ch != '`' && ch != '~' {
		return 0, 0, 0, false
	}
	n := runLen(s, ch)
	if n < 3 {
		return 0, 0, 0, false
	}
	// A backtick info string may not contain backticks.
	if ch == '`' && strings.IndexByte(s[n:], '`') >= 0 {
		return 0, 0, 0, false
	}
	return ch, n, indent, true
}

// stripIndent removes leading spaces. More than maxIndent of them (when
// maxIndent >= 0) makes the line indented code rather than a fence.
func stripIndent(line string, maxIndent int) (string, int, bool) {
	i := 0
	for i < len(line) && line[i] == ' ' {
		i++
	}
	if maxIndent >= 0 && i > maxIndent {
		return "", i, false
	}
	return line[i:], i, true
}

func runLen(s string, ch byte) int {
	n := 0
	for n < len(s) && s[n] == ch {
		n++
	}
	return n
}

func isHeading(line string) bool {
	s, _, ok := stripIndent(line, 3)
	if !ok {
		return false
	}
	n := runLen(s, '#')
	if n == 0 || n > 6 {
		return false
	}
	rest := s[n:]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\n' || rest[0] == '\r'
}

func isListItem(line string) bool {
	s := strings.TrimLeft(line, " \t")
	if s == "" {
		return false
	}
	switch s[0] {
	case '-', '*', '+':
		return len(s) > 1 && (s[1] == ' ' || s[1] == '\t')
	}
	i := 0
	for i < len(s) && i < 9 && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(s) {
		return false
	}
	return (s[i] == '.' || s[i] == ')') && (s[i+1] == ' ' || s[i+1] == '\t')
}
