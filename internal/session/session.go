// Package session drives chat turns: it streams a reply from a provider,
// renders it at markdown boundaries as it arrives and records the exchange
// in the conversation store once the reply is complete.
//
// Flow of one turn:
//
//	user text -> provider deltas -> markdown.Buffer -> render.Renderer
//	          -> (stream ok) store: user + assistant -> title + rename (first exchange only)
//
// Nothing is written while a reply is streaming, so a failed or interrupted
// turn leaves the conversation file exactly as it was.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/petasbytes/rye/internal/markdown"
	"github.com/petasbytes/rye/internal/metrics"
	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/internal/render"
	"github.com/petasbytes/rye/internal/telemetry"
	"github.com/petasbytes/rye/internal/windowing"
	"github.com/petasbytes/rye/memory"
)

var (
	// ErrAwaitingReply: the conversation ends with a user message that has no
	// reply; Retry it before sending a new message.
	ErrAwaitingReply = errors.New("conversation is awaiting a reply")
	// ErrNotAwaitingReply: Retry was called but the last message already has a reply.
	ErrNotAwaitingReply = errors.New("conversation is not awaiting a reply")
	ErrEmptyInput       = errors.New("empty message")
	// ErrOverBudget: the newest exchange alone exceeds the configured token budget.
	ErrOverBudget = errors.New("newest message exceeds the token budget")
)

// TransportError reports a reply stream that failed or was cancelled. Partial
// holds the text received before the failure; it has been shown but not saved.
type TransportError struct {
	Err     error
	Partial string
}

func (e *TransportError) Error() string { return "reply stream: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Store is the part of the conversation store a Controller writes through.
type Store interface {
	Create(first memory.Message) (*memory.Conversation, error)
	Append(conv *memory.Conversation, msgs ...memory.Message) error
	RenameOnTitle(conv *memory.Conversation, title string) error
}

// Result describes a turn whose reply streamed successfully.
type Result struct {
	// Conversation is the updated conversation; nil only when creating it failed.
	Conversation *memory.Conversation
	Reply        string
	Flushes      int
	// RenderErrors counts fragments that fell back to raw output.
	RenderErrors int
	// Title is set when this turn named the conversation.
	Title string
	// TitleErr reports a failed title generation or rename. It never fails the turn.
	TitleErr error
}

type Controller struct {
	provider provider.Provider
	store    Store
	renderer render.Renderer
	logger   *slog.Logger
	budget   int
	counter  windowing.TokenCounter
	now      func() time.Time
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTokenBudget caps the estimated size of history sent per turn; 0 sends
// everything.
func WithTokenBudget(n int) Option {
	return func(c *Controller) { c.budget = n }
}

func WithTokenCounter(tc windowing.TokenCounter) Option {
	return func(c *Controller) { c.counter = tc }
}

func New(p provider.Provider, store Store, r render.Renderer, opts ...Option) *Controller {
	c := &Controller{
		provider: p,
		store:    store,
		renderer: r,
		logger:   slog.Default(),
		counter:  windowing.HeuristicCounter{},
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Turn sends text as the next user message of conv (nil starts a new
// conversation), renders the reply and saves both messages.
//
// Errors:
//   - *TransportError: the stream failed or ctx was cancelled; nothing saved.
//   - *memory.PersistError (with a non-nil Result): the reply streamed but
//     saving failed; Result.Reply still holds it.
//   - ErrAwaitingReply, ErrEmptyInput, ErrOverBudget: nothing was sent.
func (c *Controller) Turn(ctx context.Context, conv *memory.Conversation, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	if conv != nil && conv.AwaitingReply() {
		return nil, ErrAwaitingReply
	}

	user := memory.UserMessage(text)
	var history []memory.Message
	if conv != nil {
		history = conv.History()
	}
	history = append(history, user)

	ctx = c.turnContext(ctx, conv)
	mt := metrics.NewTurn(c.provider.Name(), text)
	res, err := c.reply(ctx, history, mt)
	if err != nil {
		return nil, err
	}

	assistant := memory.AssistantMessage(res.Reply)
	if conv == nil {
		conv, err = c.store.Create(user)
		if err != nil {
			c.emitFailed(ctx, mt, "persist", err)
			return res, err
		}
		ctx = telemetry.WithConversationID(ctx, conv.ID)
		res.Conversation = conv
		err = c.store.Append(conv, assistant)
	} else {
		res.Conversation = conv
		err = c.store.Append(conv, user, assistant)
	}
	if err != nil {
		c.emitFailed(ctx, mt, "persist", err)
		return res, err
	}

	c.finish(ctx, conv, res, mt)
	return res, nil
}

// Retry answers the dangling user message of a conversation that was saved
// without a reply, and saves only the reply.
func (c *Controller) Retry(ctx context.Context, conv *memory.Conversation) (*Result, error) {
	if conv == nil || !conv.AwaitingReply() {
		return nil, ErrNotAwaitingReply
	}
	history := conv.History()
	last := history[len(history)-1].Content

	ctx = c.turnContext(ctx, conv)
	mt := metrics.NewTurn(c.provider.Name(), last)
	res, err := c.reply(ctx, history, mt)
	if err != nil {
		return nil, err
	}
	res.Conversation = conv
	if err := c.store.Append(conv, memory.AssistantMessage(res.Reply)); err != nil {
		c.emitFailed(ctx, mt, "persist", err)
		return res, err
	}
	c.finish(ctx, conv, res, mt)
	return res, nil
}

func (c *Controller) turnContext(ctx context.Context, conv *memory.Conversation) context.Context {
	if _, ok := telemetry.TurnIDFromContext(ctx); !ok {
		ctx = telemetry.WithTurnID(ctx, telemetry.NewTurnID())
	}
	if conv != nil {
		ctx = telemetry.WithConversationID(ctx, conv.ID)
	}
	return ctx
}

// reply streams a response to history through the buffer and renderer. On
// failure the unflushed remainder is still rendered so everything received
// stays on screen.
func (c *Controller) reply(ctx context.Context, history []memory.Message, mt *metrics.Turn) (*Result, error) {
	start := c.now()
	window, stats := windowing.PrepareSendWindow(history, c.budget, c.counter)
	mt.WindowMessages, mt.WindowTokens, mt.SkippedGroups = len(window), stats.Total, stats.SkippedGroups
	if stats.OverBudgetNewest {
		c.emitFailed(ctx, mt, "over_budget", ErrOverBudget)
		return nil, fmt.Errorf("%w: estimated %d tokens, budget %d",
			ErrOverBudget, c.counter.CountGroup(lastGroup(history), history), stats.Budget)
	}
	if stats.SkippedGroups > 0 {
		c.logger.Debug("history windowed", "included_groups", stats.IncludedGroups,
			"skipped_groups", stats.SkippedGroups, "estimated_tokens", stats.Total)
	}

	res := &Result{}
	stream, err := c.provider.Stream(ctx, window)
	if err != nil {
		terr := &TransportError{Err: err}
		c.emitFailed(ctx, mt, "transport", terr)
		return nil, terr
	}
	defer stream.Close()

	buf := markdown.NewBuffer()
	var sb strings.Builder
	for ctx.Err() == nil && stream.Next() {
		d := stream.Current()
		if d == "" {
			continue
		}
		mt.AddDelta(c.now().Sub(start))
		sb.WriteString(d)
		for _, f := range buf.Consume(d) {
			c.render(f, res, mt)
		}
	}
	streamErr := stream.Err()
	if streamErr == nil {
		streamErr = ctx.Err()
	}

	if f := buf.Finalize(); f.Text != "" {
		c.render(f, res, mt)
	}
	mt.Duration = c.now().Sub(start)
	mt.Reply = metrics.CountFeatures(sb.String())

	if streamErr != nil {
		terr := &TransportError{Err: streamErr, Partial: sb.String()}
		c.emitFailed(ctx, mt, "transport", terr)
		return nil, terr
	}
	res.Reply = sb.String()
	return res, nil
}

func (c *Controller) render(f markdown.Flush, res *Result, mt *metrics.Turn) {
	res.Flushes++
	mt.AddFlush(f.Reason.String())
	if err := c.renderer.Render(f.Text); err != nil {
		res.RenderErrors++
		c.logger.Warn("render fragment", "reason", f.Reason.String(), "error", err)
	}
}

// finish names a conversation after its first saved exchange and emits the
// completion event.
func (c *Controller) finish(ctx context.Context, conv *memory.Conversation, res *Result, mt *metrics.Turn) {
	telemetry.EmitTurn(ctx, telemetry.EventTurnCompleted, mt, map[string]any{
		"messages": len(conv.Messages),
	})
	if conv.TitleFinalized {
		return
	}
	first, ok := conv.FirstUserMessage()
	if !ok {
		return
	}

	title, err := c.provider.Title(ctx, first)
	if err == nil && strings.TrimSpace(title) == "" {
		err = memory.ErrEmptyTitle
	}
	telemetry.EmitContext(ctx, telemetry.EventTitleGenerated, map[string]any{
		"ok":       err == nil,
		"provider": c.provider.Name(),
	})
	if err != nil {
		res.TitleErr = fmt.Errorf("generate title: %w", err)
		c.logger.Warn("title generation failed", "conversation", conv.ID, "error", err)
		return
	}

	oldPath := conv.Path
	if err := c.store.RenameOnTitle(conv, title); err != nil {
		res.TitleErr = fmt.Errorf("rename conversation: %w", err)
		c.logger.Warn("rename failed", "conversation", conv.ID, "error", err)
		return
	}
	res.Title = conv.DisplayTitle()
	telemetry.EmitContext(ctx, telemetry.EventConversationRenamed, map[string]any{
		"renamed": oldPath != conv.Path,
	})
	c.logger.Debug("conversation titled", "conversation", conv.ID, "path", conv.Path)
}

func (c *Controller) emitFailed(ctx context.Context, mt *metrics.Turn, kind string, err error) {
	telemetry.EmitTurn(ctx, telemetry.EventTurnFailed, mt, map[string]any{
		"failure":   kind,
		"cancelled": errors.Is(err, context.Canceled),
	})
	c.logger.Debug("turn failed", "failure", kind, "error", err)
}

func lastGroup(msgs []memory.Message) windowing.Group {
	groups := windowing.GroupExchanges(msgs)
	if len(groups) == 0 {
		return windowing.Group{}
	}
	return groups[len(groups)-1]
}
