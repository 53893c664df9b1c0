package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/jvm-rewrite/pipeline"
	"github.com/wippyai/jvm-rewrite/rewrite"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	unitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	rewrittenStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type runFunc func(ctx context.Context, p *pipeline.Processor) (*pipeline.Summary, error)

type eventMsg pipeline.Event

type doneMsg struct {
	err     error
	summary *pipeline.Summary
}

type progressModel struct {
	err       error
	summary   *pipeline.Summary
	start     tea.Cmd
	cancel    context.CancelFunc
	input     string
	last      string
	bar       progress.Model
	done      int
	total     int
	rewritten int
	failed    int
}

func (m *progressModel) Init() tea.Cmd {
	return m.start
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancel()
		}

	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, 60)

	case eventMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.last = msg.Unit
		switch msg.Status {
		case pipeline.StatusRewritten:
			m.rewritten++
		case pipeline.StatusFailed:
			m.failed++
		}

	case doneMsg:
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("classrewrite"))
	b.WriteString(" ")
	b.WriteString(m.input)
	b.WriteString("\n\n")

	if m.total == 0 {
		b.WriteString("Reading input...\n")
		return b.String()
	}

	b.WriteString(m.bar.ViewAs(float64(m.done) / float64(m.total)))
	b.WriteString(fmt.Sprintf("  %d/%d\n\n", m.done, m.total))
	b.WriteString(rewrittenStyle.Render(fmt.Sprintf("%d rewritten", m.rewritten)))
	if m.failed > 0 {
		b.WriteString("  ")
		b.WriteString(errorStyle.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	b.WriteString("\n")
	if m.last != "" {
		b.WriteString(unitStyle.Render(m.last))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("q cancel"))
	return b.String()
}

// runWithProgress runs the pipeline behind a progress view. Cancelling
// the view cancels the run.
func runWithProgress(ctx context.Context, cfg rewrite.Config, opts pipeline.Options, input string, run runFunc) (*pipeline.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := &progressModel{
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		cancel: cancel,
		input:  input,
	}
	prog := tea.NewProgram(m)

	opts.OnEvent = func(e pipeline.Event) {
		prog.Send(eventMsg(e))
	}
	m.start = func() tea.Msg {
		p, err := pipeline.New(cfg, opts)
		if err != nil {
			return doneMsg{err: err}
		}
		summary, err := run(ctx, p)
		return doneMsg{summary: summary, err: err}
	}

	final, err := prog.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	fm := final.(*progressModel)
	return fm.summary, fm.err
}
