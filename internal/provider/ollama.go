package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/petasbytes/rye/memory"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOllamaModel = "llama3.2"
)

// LLM streams replies from any langchaingo model; NewOllama wires it to a
// local ollama server.
type LLM struct {
	name string
	llm  llms.Model
}

var _ Provider = (*LLM)(nil)

func NewOllama(host, model string) (*LLM, error) {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLLM(NameOllama, m), nil
}

// NewLLM wraps an already constructed langchaingo model.
func NewLLM(name string, m llms.Model) *LLM {
	return &LLM{name: name, llm: m}
}

func (l *LLM) Name() string { return l.name }

// Stream runs GenerateContent on its own goroutine and hands each streamed
// chunk to the consumer through an unbuffered channel, so the model never
// runs ahead of rendering.
func (l *LLM) Stream(ctx context.Context, history []memory.Message) (Stream, error) {
	if len(history) == 0 {
		return nil, errors.New("llm: empty history")
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &llmStream{
		chunks: make(chan string),
		done:   make(chan error, 1),
		cancel: cancel,
	}

	msgs := toLLMMessages(history)
	go func() {
		defer close(s.chunks)
		_, err := l.llm.GenerateContent(ctx, msgs, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case s.chunks <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}))
		s.done <- err
	}()
	return s, nil
}

func (l *LLM) Title(ctx context.Context, firstUser string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, l.llm, TitlePrompt(firstUser))
	if err != nil {
		return "", fmt.Errorf("%s title: %w", l.name, err)
	}
	return CleanTitle(out), nil
}

func toLLMMessages(history []memory.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(history)+1)
	out = append(out, llms.TextParts(llms.ChatMessageTypeSystem, SystemPrompt))
	for _, m := range history {
		role := llms.ChatMessageTypeHuman
		if m.Role == memory.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, contentOrPlaceholder(m.Content)))
	}
	return out
}

type llmStream struct {
	chunks chan string
	done   chan error
	cancel context.CancelFunc

	cur      string
	err      error
	finished bool
}

func (s *llmStream) Next() bool {
	if s.finished {
		return false
	}
	c, ok := <-s.chunks
	if !ok {
		s.finish()
		return false
	}
	s.cur = c
	return true
}

func (s *llmStream) finish() {
	s.finished = true
	s.cur = ""
	if err := <-s.done; err != nil {
		s.err = fmt.Errorf("llm stream: %w", err)
	}
}

func (s *llmStream) Current() string { return s.cur }

func (s *llmStream) Err() error { return s.err }

// Close cancels generation and waits for the producer goroutine to exit.
func (s *llmStream) Close() error {
	s.cancel()
	if !s.finished {
		for range s.chunks {
		}
		s.finish()
	}
	return nil
}
