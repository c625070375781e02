package provider_test

import (
	"errors"
	"testing"

	"github.com/petasbytes/rye/internal/provider"
)

func TestNew_UnknownProvider(t *testing.T) {
	_, err := provider.New(provider.Config{Name: "bogus"})
	if !errors.Is(err, provider.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestNew_Variants(t *testing.T) {
	p, err := provider.New(provider.Config{Name: "anthropic", APIKey: "k"})
	if err != nil || p.Name() != provider.NameAnthropic {
		t.Fatalf("anthropic: %v %v", p, err)
	}
	p, err = provider.New(provider.Config{Name: "OLLAMA", Host: "http://127.0.0.1:1", Model: "m"})
	if err != nil || p.Name() != provider.NameOllama {
		t.Fatalf("ollama: %v %v", p, err)
	}
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"Weekend Trip":             "Weekend Trip",
		"\"Quoted\"":               "Quoted",
		"\n\n## **Bold** heading\n": "Bold heading",
		"Title: \"Quoted\"":         "Quoted",
		"Title: Something":         "Something",
		"   \n  ":                  "",
	}
	for in, want := range cases {
		if got := provider.CleanTitle(in); got != want {
			t.Errorf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}
