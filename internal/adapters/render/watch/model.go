// Package watch is the live status view: a bubbletea program fed by an
// application.Watcher, with a one-second countdown between refreshes.
package watch

import (
	"context"
	"fmt"
	"io"
	"time"

	statusview "github.com/bnema/gasmorph/internal/adapters/render/status"
	"github.com/bnema/gasmorph/internal/application"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"
)

const tickInterval = time.Second

// StatusMsg carries one refresh result into the program.
type StatusMsg struct {
	Status application.AccountStatus
	Err    error
}

type tickMsg time.Time

type Options struct {
	View            statusview.RenderOptions
	RefreshInterval time.Duration
	Now             func() time.Time
}

type model struct {
	spinner  spinner.Model
	opts     Options
	now      time.Time
	status   *application.AccountStatus
	err      error
	quitting bool
}

func newModel(opts Options) model {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return model{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		opts: opts,
		now:  opts.Now(),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	case StatusMsg:
		m.err = msg.Err
		if msg.Err == nil {
			status := msg.Status
			m.status = &status
		}
		return m, nil
	case tickMsg:
		m.now = m.opts.Now()
		return m, tick()
	case spinner.TickMsg:
		if m.status != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	faint := lipgloss.NewStyle().Faint(true)
	if m.status == nil {
		line := fmt.Sprintf("%s %s", m.spinner.View(), "Loading status...")
		if m.err != nil {
			line += "\n" + errorLine(m.err)
		}
		return line
	}

	opts := m.opts.View
	opts.Now = m.now
	view := statusview.Panel(*m.status, opts)
	if m.err != nil {
		view += "\n" + errorLine(m.err)
	}

	footer := "q to quit"
	if m.opts.RefreshInterval > 0 {
		footer = fmt.Sprintf("refresh every %s · %s", m.opts.RefreshInterval, footer)
	}

	return view + "\n\n" + faint.Render(footer)
}

func errorLine(err error) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("refresh failed: " + err.Error())
}

// Run drives the live view until the user quits or ctx ends. The watch loop
// is stopped before Run returns.
func Run(ctx context.Context, watcher *application.Watcher, account common.Address, opts Options, input io.Reader, output io.Writer) error {
	p := tea.NewProgram(
		newModel(opts),
		tea.WithInput(input),
		tea.WithOutput(output),
		tea.WithContext(ctx),
	)

	handle := watcher.Start(ctx, account, func(status application.AccountStatus, err error) {
		p.Send(StatusMsg{Status: status, Err: err})
	})
	defer handle.Stop()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run watch view: %w", err)
	}

	return nil
}
