// Package cli provides rye's command line: an interactive chat plus commands
// to list, show and resume stored conversations.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/petasbytes/rye/internal/config"
	"github.com/petasbytes/rye/internal/provider"
	"github.com/petasbytes/rye/internal/telemetry"
	"github.com/petasbytes/rye/memory"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// newProvider builds the chat backend; tests swap it for a fake.
var newProvider = provider.New

// options holds the flags shared by the chat commands.
type options struct {
	continueID string
	provider   string
	model      string
}

// apply overrides the loaded configuration with command-line flags.
func (o *options) apply(cfg *config.Config) error {
	if o.provider != "" {
		cfg.Provider = strings.ToLower(o.provider)
	}
	if o.model != "" {
		switch cfg.Provider {
		case provider.NameOllama:
			cfg.Ollama.Model = o.model
		default:
			cfg.Anthropic.Model = o.model
		}
	}
	return cfg.Validate()
}

// NewRootCmd builds the rye command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "rye",
		Short: "Chat with an LLM in the terminal",
		Long: `Rye is a terminal chat with a language model. Replies are rendered as
markdown while they stream, and every conversation is saved as a plain
markdown file you can read, grep or edit.

Inside a chat:
  exit, quit   leave
  help         show the conversation id and file
  /retry       answer a message that was saved without a reply

Examples:
  rye
  rye -p ollama -m llama3.2
  rye -c 3f2a
  rye list
  rye resume`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var conv *memory.Conversation
			if opts.continueID != "" {
				if conv, err = a.load(opts.continueID); err != nil {
					return err
				}
			}
			return a.chat(cmd.Context(), conv)
		},
	}

	cmd.Flags().StringVarP(&opts.continueID, "continue", "c", "", "continue the conversation with this id, id prefix or file name")
	cmd.PersistentFlags().StringVarP(&opts.provider, "provider", "p", "", "provider: anthropic or ollama (default from config)")
	cmd.PersistentFlags().StringVarP(&opts.model, "model", "m", "", "model name for the selected provider")

	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newShowCmd(opts))
	cmd.AddCommand(newResumeCmd(opts))
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// app is the state shared by one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *memory.Store
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	closeLog func() error
}

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := opts.apply(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, closeLog := config.SetupLogger(cfg.Log.File, level)
	slog.SetDefault(logger)

	store, err := memory.Open(cfg.ConversationsDir, memory.WithLogger(logger))
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("open conversations: %w", err)
	}
	telemetry.Configure(store.Dir(), cfg.Observe)
	logger.Debug("rye started", "dir", store.Dir(), "provider", cfg.Provider, "observe", cfg.Observe)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		in:       cmd.InOrStdin(),
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	if err := a.closeLog(); err != nil {
		fmt.Fprintf(a.errOut, "warning: close log file: %v\n", err)
	}
}

// load resolves and parses a stored conversation. Errors name the identifier
// and the storage directory; malformed files name their path and line.
func (a *app) load(identifier string) (*memory.Conversation, error) {
	conv, err := a.store.Load(identifier)
	if err != nil {
		return nil, fmt.Errorf("cannot load %q from %s: %w", identifier, a.store.Dir(), err)
	}
	return conv, nil
}
