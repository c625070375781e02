package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/petasbytes/rye/memory"
)

const DefaultModel = "claude-sonnet-4-20250514"

const (
	defaultMaxTokens = 4096
	titleMaxTokens   = 100
)

// NewAnthropicClient returns a client using apiKey, or the API key from the
// env when apiKey is empty.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *anthropic.Client {
	if apiKey != "" {
		opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	}
	c := anthropic.NewClient(opts...)
	return &c
}

// Anthropic streams replies from the Messages API.
type Anthropic struct {
	client    *anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

var _ Provider = (*Anthropic)(nil)

func NewAnthropic(client *anthropic.Client, model string, maxTokens int) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Anthropic{client: client, model: anthropic.Model(model), maxTokens: int64(maxTokens)}
}

func (a *Anthropic) Name() string { return NameAnthropic }

func (a *Anthropic) Stream(ctx context.Context, history []memory.Message) (Stream, error) {
	if len(history) == 0 {
		return nil, errors.New("anthropic: empty history")
	}
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: SystemPrompt}},
		Messages:  toAnthropicMessages(history),
	}
	return &anthropicStream{s: a.client.Messages.NewStreaming(ctx, params)}, nil
}

func (a *Anthropic) Title(ctx context.Context, firstUser string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: titleMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(TitlePrompt(firstUser))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic title: %w", err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(v.Text)
		}
	}
	return CleanTitle(sb.String()), nil
}

func toAnthropicMessages(history []memory.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, m := range history {
		block := anthropic.NewTextBlock(contentOrPlaceholder(m.Content))
		if m.Role == memory.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

// anthropicStream surfaces text deltas and skips every other event.
type anthropicStream struct {
	s   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	cur string
}

func (s *anthropicStream) Next() bool {
	for s.s.Next() {
		ev, ok := s.s.Current().AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
			s.cur = d.Text
			return true
		}
	}
	s.cur = ""
	return false
}

func (s *anthropicStream) Current() string { return s.cur }

func (s *anthropicStream) Err() error {
	if err := s.s.Err(); err != nil {
		return fmt.Errorf("anthropic stream: %w", err)
	}
	return nil
}

func (s *anthropicStream) Close() error { return s.s.Close() }
