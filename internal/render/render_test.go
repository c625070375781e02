package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

type failingMarkdown struct{}

func (failingMarkdown) Render(string) (string, error) { return "", errors.New("boom") }

type upperMarkdown struct{}

func (upperMarkdown) Render(in string) (string, error) { return "\n\n" + strings.ToUpper(in) + "\n\n\n", nil }

func TestTerminal_NonTTYWritesRaw(t *testing.T) {
	var out bytes.Buffer
	r, err := NewTerminal(Options{Out: &out})
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	if r.Styled() {
		t.Fatalf("expected raw output for a non-terminal writer")
	}
	for _, frag := range []string{"# Title\n", "para\n\n", "```go\nx := 1\n```\n"} {
		if err := r.Render(frag); err != nil {
			t.Fatalf("Render(%q): %v", frag, err)
		}
	}
	if got, want := out.String(), "# Title\npara\n\n```go\nx := 1\n```\n"; got != want {
		t.Fatalf("raw output mismatch:\n got=%q\nwant=%q", got, want)
	}
}

func TestTerminal_PlainStyleIsRawEvenWhenForced(t *testing.T) {
	var out bytes.Buffer
	r, err := NewTerminal(Options{Out: &out, Style: StylePlain, Styled: true})
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	if r.Styled() {
		t.Fatalf("plain style must not use glamour")
	}
}

func TestTerminal_StyledUsesGlamour(t *testing.T) {
	var out bytes.Buffer
	r, err := NewTerminal(Options{Out: &out, Style: "notty", Styled: true, WordWrap: 60})
	if err != nil {
		t.Fatalf("NewTerminal: %v", err)
	}
	if !r.Styled() {
		t.Fatalf("expected glamour renderer")
	}
	if err := r.Render("Hello there\n\n"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.String(), "Hello there") {
		t.Fatalf("rendered output missing text: %q", out.String())
	}
	if !strings.HasSuffix(out.String(), "\n") || strings.HasSuffix(out.String(), "\n\n") {
		t.Fatalf("expected exactly one trailing newline: %q", out.String())
	}
}

func TestTerminal_StyleFailureFallsBackToRaw(t *testing.T) {
	var out bytes.Buffer
	r := &Terminal{out: &out, md: failingMarkdown{}}

	err := r.Render("**bold**\n")
	var re *RenderError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RenderError, got %v", err)
	}
	if out.String() != "**bold**\n" {
		t.Fatalf("expected raw fragment, got %q", out.String())
	}
}

func TestTerminal_TrimsGlamourPadding(t *testing.T) {
	var out bytes.Buffer
	r := &Terminal{out: &out, md: upperMarkdown{}}
	if err := r.Render("a\n"); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.String() != "A\n" {
		t.Fatalf("got %q", out.String())
	}
}

func TestTerminal_EmptyFragmentIsNoop(t *testing.T) {
	var out bytes.Buffer
	r := &Terminal{out: &out, md: failingMarkdown{}}
	if err := r.Render(""); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRaw(t *testing.T) {
	var out bytes.Buffer
	if err := (Raw{W: &out}).Render("x\n"); err != nil {
		t.Fatal(err)
	}
	if out.String() != "x\n" {
		t.Fatalf("got %q", out.String())
	}
}
