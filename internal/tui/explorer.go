package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/recore/internal/analysis"
	"github.com/san-kum/recore/internal/experiment"
	"github.com/san-kum/recore/internal/kinetics"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// Slider bounds match the web explorer.
const (
	RhoMin  = 0.0005
	RhoMax  = 0.01
	RhoStep = 0.0005

	TEndMin  = 1.0
	TEndMax  = 60.0
	TEndStep = 1.0
)

const solveTimeout = 30 * time.Second

type solvedMsg struct {
	req kinetics.Request
	run *experiment.Run
	err error
}

type model struct {
	exp     *experiment.Experiment
	initial kinetics.Request
	req     kinetics.Request

	run     *experiment.Run
	err     error
	solving bool

	width  int
	height int
}

func newModel(exp *experiment.Experiment, req kinetics.Request) model {
	req.Rho = clamp(req.Rho, RhoMin, RhoMax)
	req.TEnd = clamp(req.TEnd, TEndMin, TEndMax)
	return model{
		exp:     exp,
		initial: req,
		req:     req,
		solving: true,
		width:   80,
		height:  24,
	}
}

func (m model) Init() tea.Cmd {
	return m.solve()
}

func (m model) solve() tea.Cmd {
	exp, req := m.exp, m.req
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), solveTimeout)
		defer cancel()
		run, err := exp.Run(ctx, experiment.Spec{Label: "explore", Request: req})
		return solvedMsg{req: req, run: run, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case solvedMsg:
		// a slower solve for an older slider position
		if msg.req != m.req {
			return m, nil
		}
		m.solving = false
		m.run, m.err = msg.run, msg.err
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (model, tea.Cmd) {
	prev := m.req
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "left", "h":
		m.req.Rho = snap(m.req.Rho-RhoStep, RhoStep, RhoMin, RhoMax)
	case "right", "l":
		m.req.Rho = snap(m.req.Rho+RhoStep, RhoStep, RhoMin, RhoMax)
	case "up", "k":
		m.req.TEnd = snap(m.req.TEnd+TEndStep, TEndStep, TEndMin, TEndMax)
	case "down", "j":
		m.req.TEnd = snap(m.req.TEnd-TEndStep, TEndStep, TEndMin, TEndMax)
	case "r":
		m.req = m.initial
	default:
		return m, nil
	}
	if m.req == prev {
		return m, nil
	}
	m.solving = true
	return m, m.solve()
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("           " + cyan.Render("r e c o r e") + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	beta := m.exp.Constants().BetaEff()
	b.WriteString(fmt.Sprintf("    %s %s  %s\n",
		dim.Render("step reactivity ρ ="), magenta.Render(fmt.Sprintf("%.4f", m.req.Rho)),
		dimmer.Render(fmt.Sprintf("(%.2f $)", m.req.Rho/beta))))
	b.WriteString(fmt.Sprintf("    %s %s   %s %s\n\n",
		dim.Render("t_end ="), white.Render(fmt.Sprintf("%.0f s", m.req.TEnd)),
		dim.Render("dt ="), white.Render(fmt.Sprintf("%g s", m.req.Dt))))

	switch {
	case m.err != nil:
		b.WriteString("    " + yellow.Render("solve failed: "+m.err.Error()) + "\n")
	case m.run == nil:
		b.WriteString("    " + dim.Render("solving...") + "\n")
	default:
		b.WriteString(m.viewChart())
		b.WriteString("\n")
		b.WriteString(m.viewReadouts())
	}

	status := ""
	if m.solving && m.run != nil {
		status = dimmer.Render("  solving...")
	}
	b.WriteString("\n" + dim.Render("    ←→ ρ  ↑↓ t_end  r reset  q quit") + status + "\n")
	return b.String()
}

func (m model) viewChart() string {
	tr := m.run.Trajectory
	powers, diverged := finitePrefix(tr.Powers)

	var b strings.Builder
	if len(powers) > 1 {
		cw := m.width - 16
		if cw < 40 {
			cw = 40
		}
		ch := m.height - 16
		if ch < 8 {
			ch = 8
		}
		graph := asciigraph.Plot(downsample(powers, cw),
			asciigraph.Height(ch),
			asciigraph.Width(cw),
			asciigraph.Offset(4),
			asciigraph.Caption("relative power P(t)"),
		)
		b.WriteString(cyan.Render(graph) + "\n")
	}
	if diverged >= 0 {
		b.WriteString("    " + yellow.Render(fmt.Sprintf("power diverged at t = %.3f s (prompt supercritical)", tr.Times[diverged])) + "\n")
	}
	return b.String()
}

func (m model) viewReadouts() string {
	tr := m.run.Trajectory
	c := m.exp.Constants()

	source := green.Render("solved")
	if m.run.Cached {
		source = dim.Render("cached")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("    %s %s   %s %s\n",
		dim.Render("final P"), white.Render(formatValue(tr.Final())),
		dim.Render("peak P"), white.Render(formatValue(tr.Peak()))))
	b.WriteString(fmt.Sprintf("    %s %s   %s %s\n",
		dim.Render("prompt jump"), white.Render(formatValue(analysis.PromptJump(c, m.req.Rho))),
		dim.Render("period"), white.Render(formatValue(analysis.Period(tr))+" s")))
	b.WriteString(fmt.Sprintf("    %s %s\n", dim.Render(fmt.Sprintf("%d samples", tr.Len())), source))
	return b.String()
}

// finitePrefix returns the leading run of finite values and the index of the
// first non-finite one, or -1 when all are finite.
func finitePrefix(data []float64) ([]float64, int) {
	for i, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return data[:i], i
		}
	}
	return data, -1
}

// downsample picks n evenly spaced values, always keeping the last one.
func downsample(data []float64, n int) []float64 {
	if n < 2 || len(data) <= n {
		return data
	}
	out := make([]float64, n)
	last := len(data) - 1
	for i := range out {
		out[i] = data[i*last/(n-1)]
	}
	return out
}

func snap(v, step, lo, hi float64) float64 {
	return clamp(math.Round(v/step)*step, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func formatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "∞"
	case math.IsInf(v, -1):
		return "-∞"
	case math.IsNaN(v):
		return "n/a"
	}
	return fmt.Sprintf("%.4g", v)
}

// RunExplorer opens the terminal transient explorer starting from req.
func RunExplorer(exp *experiment.Experiment, req kinetics.Request) error {
	p := tea.NewProgram(newModel(exp, req), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
