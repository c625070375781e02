package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/petasbytes/rye/internal/config"
	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/internal/render"
	"github.com/petasbytes/rye/internal/session"
	"github.com/petasbytes/rye/memory"
)

const (
	historyFileName = ".history"
	retryCommand    = "/retry"
)

// chat runs the interactive loop until exit, EOF or Ctrl-C at the prompt.
// conv is nil for a new conversation.
func (a *app) chat(ctx context.Context, conv *memory.Conversation) error {
	if a.cfg.Provider == provider.NameAnthropic && a.cfg.Anthropic.APIKey == "" {
		return errors.New("missing ANTHROPIC_API_KEY; export it or set [anthropic] api_key in the config file")
	}
	p, err := newProvider(a.cfg.ProviderConfig())
	if err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	r, err := a.renderer()
	if err != nil {
		return err
	}
	ctrl := session.New(p, a.store, r,
		session.WithLogger(a.logger),
		session.WithTokenBudget(a.cfg.TokenBudget),
	)

	input := a.lineReader()
	defer input.Close()

	fmt.Fprintln(a.out, bannerStyle.Render(fmt.Sprintf("rye · %s (%s)", p.Name(), a.modelName())))
	fmt.Fprintln(a.out, hintStyle.Render("type help for commands, exit to leave"))
	if conv != nil {
		fmt.Fprintln(a.out, hintStyle.Render("continuing "+conv.DisplayTitle()))
		if err := a.replay(conv, r); err != nil {
			return err
		}
		if conv.AwaitingReply() {
			fmt.Fprintln(a.out, warnStyle.Render("the last message has no reply yet; type "+retryCommand+" to send it again"))
		}
	}

	for {
		line, err := input.ReadLine("you> ")
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.out)
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		text := strings.TrimSpace(line)
		var turn func(context.Context) (*session.Result, error)
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "help":
			a.printHelp(conv)
			continue
		case retryCommand:
			turn = func(ctx context.Context) (*session.Result, error) { return ctrl.Retry(ctx, conv) }
		default:
			turn = func(ctx context.Context) (*session.Result, error) { return ctrl.Turn(ctx, conv, text) }
		}

		res, err := a.runTurn(ctx, turn)
		if res != nil && res.Conversation != nil {
			conv = res.Conversation
		}
		a.report(res, err)
	}
}

// runTurn runs one turn with its own interrupt handler so Ctrl-C stops the
// reply without leaving the chat.
func (a *app) runTurn(ctx context.Context, turn func(context.Context) (*session.Result, error)) (*session.Result, error) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(a.out, assistantStyle.Render("Assistant"))
	res, err := turn(turnCtx)
	fmt.Fprintln(a.out)
	return res, err
}

// report prints the outcome of a turn for the user. Details go to the log.
func (a *app) report(res *session.Result, err error) {
	var (
		te *session.TransportError
		pe *memory.PersistError
	)
	switch {
	case err == nil:
	case errors.As(err, &te) && errors.Is(err, context.Canceled):
		fmt.Fprintln(a.errOut, warnStyle.Render("reply cancelled; nothing was saved"))
	case errors.As(err, &te):
		fmt.Fprintln(a.errOut, errorStyle.Render("reply failed: ")+te.Err.Error())
		fmt.Fprintln(a.errOut, hintStyle.Render("nothing was saved; send the message again"))
	case errors.As(err, &pe):
		fmt.Fprintln(a.errOut, errorStyle.Render("reply not saved: ")+pe.Error())
	case errors.Is(err, session.ErrAwaitingReply):
		fmt.Fprintln(a.errOut, warnStyle.Render("the last message has no reply yet; type "+retryCommand+" first"))
	case errors.Is(err, session.ErrNotAwaitingReply):
		fmt.Fprintln(a.errOut, warnStyle.Render("nothing to retry"))
	default:
		fmt.Fprintln(a.errOut, errorStyle.Render("error: ")+err.Error())
	}

	if res == nil {
		return
	}
	if res.TitleErr != nil {
		fmt.Fprintln(a.errOut, warnStyle.Render("could not title the conversation: ")+res.TitleErr.Error())
	}
	if res.Title != "" && res.Conversation != nil {
		fmt.Fprintln(a.out, hintStyle.Render(fmt.Sprintf("saved as %q in %s", res.Title, filepath.Base(res.Conversation.Path))))
	}
}

func (a *app) printHelp(conv *memory.Conversation) {
	fmt.Fprintln(a.out, hintStyle.Render("commands: exit, quit, help, "+retryCommand))
	if conv == nil {
		fmt.Fprintln(a.out, hintStyle.Render("new conversation, saved after the first reply"))
		return
	}
	fmt.Fprintln(a.out, hintStyle.Render("conversation: "+conv.ID))
	fmt.Fprintln(a.out, hintStyle.Render("title:        "+conv.DisplayTitle()))
	fmt.Fprintln(a.out, hintStyle.Render("file:         "+conv.Path))
}

// replay prints the stored messages of a conversation.
func (a *app) replay(conv *memory.Conversation, r render.Renderer) error {
	for _, m := range conv.Messages {
		style := assistantStyle
		if m.Role == memory.RoleUser {
			style = userStyle
		}
		fmt.Fprintln(a.out, style.Render(m.Role.Label()))
		if err := r.Render(m.Content + "\n"); err != nil {
			var re *render.RenderError
			if !errors.As(err, &re) {
				return fmt.Errorf("render message: %w", err)
			}
			a.logger.Warn("render stored message", "error", err)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *app) renderer() (render.Renderer, error) {
	r, err := render.NewTerminal(render.Options{
		Out:      a.out,
		Style:    a.cfg.Render.Style,
		WordWrap: a.cfg.Render.WordWrap,
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// lineReader picks liner for interactive emacs-mode sessions and a plain
// reader otherwise.
func (a *app) lineReader() lineReader {
	if a.cfg.EditMode == config.EditModeEmacs && isTerminal(a.in) && isTerminal(a.out) {
		return newLinerReader(filepath.Join(a.store.Dir(), historyFileName))
	}
	if a.cfg.EditMode == config.EditModeVi {
		a.logger.Debug("vi edit mode: line editing disabled")
	}
	return newPlainReader(a.in, a.out)
}

func (a *app) modelName() string {
	if a.cfg.Provider == provider.NameOllama {
		return a.cfg.Ollama.Model
	}
	return a.cfg.Anthropic.Model
}
