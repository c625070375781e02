package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/petasbytes/rye/internal/picker"
	"github.com/petasbytes/rye/memory"
	"github.com/spf13/cobra"
)

const listTimeLayout = "2006-01-02 15:04"

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			infos, err := a.store.List()
			if err != nil {
				return fmt.Errorf("list conversations: %w", err)
			}
			if len(infos) == 0 {
				fmt.Fprintf(a.out, "No conversations in %s.\n", a.store.Dir())
				return nil
			}
			fmt.Fprintln(a.out, conversationTable(infos))
			return nil
		},
	}
}

func conversationTable(infos []memory.Info) string {
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(false).
		Headers("ID", "UPDATED", "TITLE").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, info := range infos {
		t.Row(shortID(info.ID), info.ModTime.Format(listTimeLayout), info.Title)
	}
	return t.String()
}

// shortID keeps ids readable in listings; any unique prefix resolves.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Render a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			conv, err := a.load(args[0])
			if err != nil {
				return err
			}
			r, err := a.renderer()
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, bannerStyle.Render(conv.DisplayTitle()))
			fmt.Fprintln(a.out, hintStyle.Render(conv.Path))
			fmt.Fprintln(a.out)
			return a.replay(conv, r)
		},
	}
}

func newResumeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resume [id]",
		Short: "Continue a stored conversation, picking it from a list when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			identifier := ""
			if len(args) == 1 {
				identifier = args[0]
			} else {
				infos, err := a.store.List()
				if err != nil {
					return fmt.Errorf("list conversations: %w", err)
				}
				info, err := picker.Run(infos, a.in, a.out)
				if err != nil {
					return err
				}
				identifier = info.Name
			}

			conv, err := a.load(identifier)
			if err != nil {
				return err
			}
			return a.chat(cmd.Context(), conv)
		},
	}
}
