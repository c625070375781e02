package provider_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/memory"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel streams its chunks through the configured streaming func.
type fakeModel struct {
	chunks []string
	err    error
	reply  string

	gotMessages []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.gotMessages = msgs
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	var sb strings.Builder
	for _, c := range f.chunks {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
		sb.WriteString(c)
	}
	if f.err != nil {
		return nil, f.err
	}
	content := sb.String()
	if f.reply != "" {
		content = f.reply
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: content}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestLLM_StreamYieldsChunks(t *testing.T) {
	m := &fakeModel{chunks: []string{"Hel", "", "lo\n\n", "world"}}
	p := provider.NewLLM(provider.NameOllama, m)

	s, err := p.Stream(context.Background(), []memory.Message{
		memory.UserMessage("a"), memory.AssistantMessage("b"), memory.UserMessage("c"),
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	var got []string
	for s.Next() {
		got = append(got, s.Current())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("Err: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if strings.Join(got, "|") != "Hel|lo\n\n|world" {
		t.Fatalf("chunks: %q", got)
	}

	if len(m.gotMessages) != 4 {
		t.Fatalf("expected system + 3 messages, got %d", len(m.gotMessages))
	}
	wantRoles := []llms.ChatMessageType{llms.ChatMessageTypeSystem, llms.ChatMessageTypeHuman, llms.ChatMessageTypeAI, llms.ChatMessageTypeHuman}
	for i, r := range wantRoles {
		if m.gotMessages[i].Role != r {
			t.Fatalf("message %d role: got %s want %s", i, m.gotMessages[i].Role, r)
		}
	}
}

func TestLLM_StreamErrorAfterPartialOutput(t *testing.T) {
	boom := errors.New("connection reset")
	p := provider.NewLLM("fake", &fakeModel{chunks: []string{"partial"}, err: boom})

	s, err := p.Stream(context.Background(), []memory.Message{memory.UserMessage("a")})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer s.Close()
	if !s.Next() || s.Current() != "partial" {
		t.Fatalf("expected the partial chunk first")
	}
	if s.Next() {
		t.Fatalf("expected end of stream")
	}
	if !errors.Is(s.Err(), boom) {
		t.Fatalf("expected wrapped error, got %v", s.Err())
	}
}

func TestLLM_CloseBeforeDrainStopsProducer(t *testing.T) {
	p := provider.NewLLM("fake", &fakeModel{chunks: []string{"a", "b", "c", "d"}})
	s, err := p.Stream(context.Background(), []memory.Message{memory.UserMessage("x")})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !s.Next() {
		t.Fatalf("expected a chunk")
	}
	// Returns only once the producer goroutine has exited.
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if s.Next() {
		t.Fatalf("Next after Close must be false")
	}
}

func TestLLM_Title(t *testing.T) {
	p := provider.NewLLM("fake", &fakeModel{reply: "Title: Go Generics Basics\nextra"})
	title, err := p.Title(context.Background(), "explain generics")
	if err != nil {
		t.Fatalf("Title: %v", err)
	}
	if title != "Go Generics Basics" {
		t.Fatalf("title: %q", title)
	}
}
