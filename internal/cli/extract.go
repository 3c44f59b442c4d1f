package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("248"))
	keyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true)
)

// extractState is shared between the worker goroutine and the TUI
type extractState[T any] struct {
	mu     sync.RWMutex
	done   bool
	err    error
	result T
}

func (s *extractState[T]) finish(result T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = true
	s.result = result
	s.err = err
}

func (s *extractState[T]) get() (bool, T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done, s.result, s.err
}

type extractTickMsg time.Time

type extractModel[T any] struct {
	spinner spinner.Model
	label   string
	state   *extractState[T]
	cancel  context.CancelFunc
}

func newExtractModel[T any](label string, state *extractState[T], cancel context.CancelFunc) extractModel[T] {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return extractModel[T]{
		spinner: s,
		label:   label,
		state:   state,
		cancel:  cancel,
	}
}

func extractTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return extractTickMsg(t)
	})
}

func (m extractModel[T]) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, extractTickCmd())
}

func (m extractModel[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case extractTickMsg:
		done, _, _ := m.state.get()
		if done {
			return m, tea.Quit
		}
		return m, extractTickCmd()
	}

	return m, nil
}

func (m extractModel[T]) View() string {
	if done, _, _ := m.state.get(); done {
		// results are printed after the program exits
		return ""
	}
	return fmt.Sprintf("\n  %s %s\n\n", m.spinner.View(), infoStyle.Render(m.label))
}

// isTerminal reports whether stdout and stderr are both interactive
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

// runProgram runs the spinner until it quits
var runProgram = func(ctx context.Context, m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithContext(ctx)).Run()
	return err
}

// runWithSpinner runs fn in the background while a spinner shows label.
// Without a terminal fn runs in the foreground with no decoration.
func runWithSpinner[T any](ctx context.Context, label string, fn func(context.Context) (T, error)) (T, error) {
	if !isTerminal() {
		return fn(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	state := &extractState[T]{}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		state.finish(fn(ctx))
	}()

	runErr := runProgram(ctx, newExtractModel(label, state, cancel))
	failed := runErr != nil && ctx.Err() == nil
	if failed {
		cancel()
	}

	// the worker still owns the browser; wait for it to let go
	<-finished
	if failed {
		var zero T
		return zero, runErr
	}
	_, result, err := state.get()
	return result, err
}
