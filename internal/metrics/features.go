// Package metrics derives counts from chat text for telemetry events. Only
// counts leave this package, never the text itself.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features summarizes one message: size counts plus the markdown structure
// that drives rendering boundaries.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int

	Headings  int
	ListItems int
	// CodeBlocks counts opening fence lines; an unterminated fence still counts.
	CodeBlocks int
}

// CountFeatures measures s. Lines are split on '\n'; a trailing newline
// starts an empty last line.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s == "" {
		return f
	}

	var fence string
	for _, line := range strings.Split(s, "\n") {
		f.Lines++
		trimmed := strings.TrimLeft(line, " ")
		if len(line)-len(trimmed) > 3 {
			continue
		}
		if fence != "" {
			if strings.HasPrefix(trimmed, fence) {
				fence = ""
			}
			continue
		}
		switch {
		case strings.HasPrefix(trimmed, "```"):
			fence = "```"
			f.CodeBlocks++
		case strings.HasPrefix(trimmed, "~~~"):
			fence = "~~~"
			f.CodeBlocks++
		case isHeading(trimmed):
			f.Headings++
		case isListItem(trimmed):
			f.ListItems++
		}
	}
	return f
}

func isHeading(line string) bool {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 6 {
		return false
	}
	return n == len(line) || line[n] == ' ' || line[n] == '\t'
}

func isListItem(line string) bool {
	if len(line) >= 2 && strings.ContainsRune("-*+", rune(line[0])) && line[1] == ' ' {
		return true
	}
	n := 0
	for n < len(line) && line[n] >= '0' && line[n] <= '9' {
		n++
	}
	return n > 0 && n+1 < len(line) && (line[n] == '.' || line[n] == ')') && line[n+1] == ' '
}

func (f Features) fields() map[string]any {
	return map[string]any{
		"bytes":       f.Bytes,
		"runes":       f.Runes,
		"words":       f.Words,
		"lines":       f.Lines,
		"headings":    f.Headings,
		"list_items":  f.ListItems,
		"code_blocks": f.CodeBlocks,
	}
}
