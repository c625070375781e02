// Package provider adapts LLM backends to a pull-based stream of text deltas.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petasbytes/rye/memory"
)

// Provider produces a reply for a conversation history and short titles for
// new conversations.
type Provider interface {
	Name() string
	// Stream starts a reply to history, whose last message is from the user.
	Stream(ctx context.Context, history []memory.Message) (Stream, error)
	// Title summarizes the opening user message in a few words.
	Title(ctx context.Context, firstUser string) (string, error)
}

// Stream yields text deltas in order to a single consumer. After Next returns
// false, Err reports why the stream ended (nil on normal completion). Close
// releases the underlying connection and may be called at any time.
type Stream interface {
	Next() bool
	Current() string
	Err() error
	Close() error
}

const (
	NameAnthropic = "anthropic"
	NameOllama    = "ollama"
)

// ErrUnknownProvider is returned by New for an unsupported provider name.
var ErrUnknownProvider = errors.New("unknown provider")

// Config selects and configures a provider variant.
type Config struct {
	Name  string
	Model string
	// APIKey is used by the anthropic variant; empty reads ANTHROPIC_API_KEY.
	APIKey string
	// Host is the ollama server URL.
	Host      string
	MaxTokens int
}

// New builds the provider named by cfg.Name.
func New(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Name) {
	case NameAnthropic, "":
		return NewAnthropic(NewAnthropicClient(cfg.APIKey), cfg.Model, cfg.MaxTokens), nil
	case NameOllama:
		return NewOllama(cfg.Host, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Name)
	}
}

const SystemPrompt = "You are a helpful assistant. Always respond in markdown format. " +
	"When referring to information you've previously provided in this conversation, " +
	"reference the relevant sections instead of repeating the information. " +
	"Be concise and avoid unnecessary repetition."

const maxTitleLen = 50

// TitlePrompt asks for a short title for a conversation opened by firstUser.
func TitlePrompt(firstUser string) string {
	return fmt.Sprintf("Generate a concise, descriptive title (max %d characters) for a conversation "+
		"that starts with this user message: %q\n\nRespond with ONLY the title, no additional text or formatting.",
		maxTitleLen, firstUser)
}

var titleDecoration = strings.NewReplacer("**", "", "__", "", "`", "")

// CleanTitle keeps the first non-empty line of a model reply and strips the
// quoting and markdown decoration models like to add.
func CleanTitle(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "# ")
		line = strings.TrimPrefix(line, "Title: ")
		line = titleDecoration.Replace(line)
		line = strings.Trim(line, "\"' ")
		if line != "" {
			return line
		}
	}
	return ""
}

// emptyContent stands in for an empty stored reply; backends reject empty
// text blocks.
const emptyContent = "(no content)"

func contentOrPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyContent
	}
	return s
}
