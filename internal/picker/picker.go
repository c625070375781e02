// Package picker is a full-screen list for choosing a stored conversation,
// with fuzzy filtering ("/" to filter, enter to pick, q or esc to leave).
package picker

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/petasbytes/rye/memory"
)

var (
	// ErrNoConversations: there is nothing to pick from.
	ErrNoConversations = errors.New("no stored conversations")
	// ErrCancelled: the picker was closed without a choice.
	ErrCancelled = errors.New("no conversation selected")
)

const timeLayout = "2006-01-02 15:04"

// Item adapts a memory.Info to the list.
type Item struct {
	info memory.Info
}

func (i Item) Title() string { return i.info.Title }

func (i Item) Description() string {
	return fmt.Sprintf("%s  %s", i.info.ModTime.Format(timeLayout), i.info.Name)
}

// FilterValue matches on the title and the file name, so ids filter too.
func (i Item) FilterValue() string { return i.info.Title + " " + i.info.Name }

var _ list.Item = Item{}

var docStyle = lipgloss.NewStyle().Margin(1, 2)

// Model is the bubbletea model behind Run.
type Model struct {
	list   list.Model
	chosen *memory.Info
}

func New(infos []memory.Info) Model {
	items := make([]list.Item, len(infos))
	for i, info := range infos {
		items[i] = Item{info: info}
	}
	l := list.New(items, list.NewDefaultDelegate(), 80, 20)
	l.Title = "Conversations"
	return Model{list: l}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil
	case tea.KeyMsg:
		// While the filter input has focus, enter applies the filter instead.
		if m.list.FilterState() == list.Filtering {
			break
		}
		if msg.String() == "enter" {
			if it, ok := m.list.SelectedItem().(Item); ok {
				info := it.info
				m.chosen = &info
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string { return docStyle.Render(m.list.View()) }

// Chosen returns the picked conversation, if any.
func (m Model) Chosen() (memory.Info, bool) {
	if m.chosen == nil {
		return memory.Info{}, false
	}
	return *m.chosen, true
}

// Run shows the picker on the alternate screen and returns the chosen
// conversation.
func Run(infos []memory.Info, in io.Reader, out io.Writer) (memory.Info, error) {
	if len(infos) == 0 {
		return memory.Info{}, ErrNoConversations
	}
	final, err := tea.NewProgram(New(infos),
		tea.WithAltScreen(),
		tea.WithInput(in),
		tea.WithOutput(out),
	).Run()
	if err != nil {
		return memory.Info{}, fmt.Errorf("run picker: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return memory.Info{}, ErrCancelled
	}
	info, ok := m.Chosen()
	if !ok {
		return memory.Info{}, ErrCancelled
	}
	return info, nil
}
