// Package render draws flushed markdown fragments on the terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer displays one complete markdown fragment. Fragments arrive in
// stream order and are never re-rendered.
type Renderer interface {
	Render(fragment string) error
}

// RenderError reports that a fragment could not be styled and was written
// raw instead. It is never fatal to a turn.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return "render markdown: " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Style names accepted by Options.Style.
const (
	StyleAuto  = "auto"
	StyleDark  = "dark"
	StyleLight = "light"
	StylePlain = "plain"
)

const (
	defaultWidth = 80
	minWidth     = 40
)

type Options struct {
	// Out defaults to os.Stdout.
	Out io.Writer
	// Style is one of the Style* constants; empty means auto.
	Style string
	// WordWrap is the wrap column; 0 uses the terminal width.
	WordWrap int
	// Styled forces glamour output even when Out is not a terminal.
	Styled bool
}

type markdownRenderer interface {
	Render(in string) (string, error)
}

// Terminal renders through glamour when writing to a TTY and writes fragments
// unchanged otherwise.
type Terminal struct {
	out io.Writer
	md  markdownRenderer
}

var _ Renderer = (*Terminal)(nil)

func NewTerminal(opts Options) (*Terminal, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	t := &Terminal{out: out}

	style := strings.ToLower(strings.TrimSpace(opts.Style))
	if style == "" {
		style = StyleAuto
	}
	if style == StylePlain || (!opts.Styled && !IsTerminal(out)) {
		return t, nil
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(standardStyle(style)),
		glamour.WithWordWrap(wrapWidth(opts.WordWrap, out)),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	t.md = md
	return t, nil
}

// Styled reports whether fragments go through glamour.
func (t *Terminal) Styled() bool { return t.md != nil }

// Render writes fragment to the output. When styling fails the raw fragment
// is written and a *RenderError returned.
func (t *Terminal) Render(fragment string) error {
	if fragment == "" {
		return nil
	}
	if t.md == nil {
		return t.write(fragment)
	}

	styled, err := t.md.Render(fragment)
	if err != nil {
		if werr := t.write(fragment); werr != nil {
			return werr
		}
		return &RenderError{Err: err}
	}
	return t.write(trimStyled(styled))
}

func (t *Terminal) write(s string) error {
	if _, err := io.WriteString(t.out, s); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// glamour pads every document with blank lines; fragments are rendered one
// at a time so keep a single trailing newline.
func trimStyled(s string) string {
	s = strings.TrimLeft(s, "\n")
	return strings.TrimRight(s, "\n") + "\n"
}

func standardStyle(name string) string {
	switch name {
	case StyleDark:
		return styles.DarkStyle
	case StyleLight:
		return styles.LightStyle
	case styles.NoTTYStyle:
		return styles.NoTTYStyle
	}
	if termenv.HasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

func wrapWidth(configured int, out io.Writer) int {
	if configured > 0 {
		return configured
	}
	f, ok := out.(*os.File)
	if !ok {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	if w < minWidth {
		return minWidth
	}
	return w
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Raw writes fragments unchanged.
type Raw struct {
	W io.Writer
}

func (r Raw) Render(fragment string) error {
	_, err := io.WriteString(r.W, fragment)
	return err
}
