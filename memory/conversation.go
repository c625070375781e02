package memory

import (
	"strings"
)

// Role is who wrote a message.
type Role int

const (
	RoleUser Role = iota
	RoleAssistant
)

func (r Role) String() string {
	if r == RoleAssistant {
		return "assistant"
	}
	return "user"
}

// Label is the section heading text used in conversation files.
func (r Role) Label() string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "You"
}

// Next is the role expected after r.
func (r Role) Next() Role {
	if r == RoleUser {
		return RoleAssistant
	}
	return RoleUser
}

// Message is one section of a conversation. Content is immutable once appended.
type Message struct {
	Role    Role
	Content string
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Conversation is the in-memory view of one conversation file.
type Conversation struct {
	ID string
	// Title is nil until a title has been generated.
	Title *string
	// TitleFinalized is set once the file has been renamed after its title.
	TitleFinalized bool
	Messages       []Message
	Path           string
}

// DisplayTitle returns the title, or the placeholder written in the file.
func (c *Conversation) DisplayTitle() string {
	if c.Title != nil {
		return *c.Title
	}
	return placeholderTitle(c.ID)
}

// AwaitingReply reports whether the last message has no assistant reply.
func (c *Conversation) AwaitingReply() bool {
	return len(c.Messages) > 0 && c.Messages[len(c.Messages)-1].Role == RoleUser
}

// FirstUserMessage returns the message that opened the conversation.
func (c *Conversation) FirstUserMessage() (string, bool) {
	if len(c.Messages) == 0 || c.Messages[0].Role != RoleUser {
		return "", false
	}
	return c.Messages[0].Content, true
}

// History returns a copy of the messages suitable for handing to a provider.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

func placeholderTitle(id string) string {
	return "Conversation " + id
}

// normalizeContent drops leading newlines and trailing whitespace; the file
// format cannot distinguish them from section separators.
func normalizeContent(s string) string {
	s = strings.TrimLeft(s, "\r\n")
	return strings.TrimRight(s, " \t\r\n")
}

// oneLine collapses a title to a single trimmed line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
