package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// stopTimeout bounds how long Stop waits for bubbletea to restore the
// terminal.
const stopTimeout = 2 * time.Second

// TUIRenderer draws rebuild progress with bubbletea. Progress events go
// through a ProgressTracker; the model receives snapshots, so it never
// touches the tracker from the bubbletea goroutine.
type TUIRenderer struct {
	cfg     Config
	tracker *ProgressTracker
	model   *rebuildModel

	mu      sync.Mutex
	program *tea.Program
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewTUIRenderer fails unless cfg.Output is a terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, errors.New("output is not a TTY")
	}
	styles := DefaultStyles()
	if cfg.NoColor || DetectNoColor() {
		styles = NoColorStyles()
	}
	return &TUIRenderer{
		cfg:     cfg,
		tracker: NewProgressTracker(),
		model:   newRebuildModel(cfg.Title, styles),
		done:    make(chan struct{}),
	}, nil
}

func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// send delivers msg to a running program and drops it otherwise.
func (r *TUIRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Apply(event)
	r.send(snapshotMsg(r.tracker.Stats()))
}

func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.send(doneMsg(stats))
}

func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p, cancel := r.program, r.cancel
	r.mu.Unlock()

	if p != nil {
		p.Quit()
		select {
		case <-r.done:
		case <-time.After(stopTimeout):
		}
	}
	if cancel != nil {
		cancel()
	}
	return nil
}

type (
	snapshotMsg ProgressStats
	doneMsg     CompletionStats
)

// rebuildModel is the bubbletea model: a stage strip, a bar with counts,
// and a summary panel once the rebuild is done.
type rebuildModel struct {
	title  string
	styles Styles
	width  int

	snap     ProgressStats
	summary  *CompletionStats
	quitting bool

	spin spinner.Model
	bar  progress.Model
}

func newRebuildModel(title string, styles Styles) *rebuildModel {
	spin := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Active))
	bar := progress.New(progress.WithSolidFill(ColorLime), progress.WithWidth(50), progress.WithoutPercentage())
	return &rebuildModel{title: title, styles: styles, width: 80, spin: spin, bar: bar}
}

func (m *rebuildModel) Init() tea.Cmd { return m.spin.Tick }

func (m *rebuildModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(msg.Width-20, 20)
	case snapshotMsg:
		m.snap = ProgressStats(msg)
	case doneMsg:
		stats := CompletionStats(msg)
		m.summary = &stats
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *rebuildModel) View() string {
	switch {
	case m.quitting:
		return "Cancelled.\n"
	case m.summary != nil:
		return m.summaryView(*m.summary)
	}

	width := max(m.width-4, 40)
	body := strings.Join([]string{
		m.stageStrip(),
		m.styles.Border.Render(strings.Repeat("─", width)),
		m.progressLines(),
	}, "\n")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left, m.styles.Header.Render(m.title), box.Render(body)) +
		"\n" + m.styles.Dim.Render("q to quit")
}

// stageStrip shows finished stages filled, the current one spinning.
func (m *rebuildModel) stageStrip() string {
	parts := make([]string, 0, 3)
	for _, s := range []Stage{StageLoading, StageEmbedding, StageIndexing} {
		switch {
		case s < m.snap.Stage:
			parts = append(parts, m.styles.Success.Render("● "+s.String()))
		case s == m.snap.Stage:
			parts = append(parts, m.styles.Active.Render(m.spin.View()+" "+s.String()))
		default:
			parts = append(parts, m.styles.Dim.Render("○ "+s.String()))
		}
	}
	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *rebuildModel) progressLines() string {
	s := m.snap
	if s.Total == 0 {
		return m.spin.View() + " " + s.Stage.String() + "..."
	}

	detail := []string{fmt.Sprintf("%d / %d records", s.Current, s.Total)}
	if s.Speed > 0 {
		detail = append(detail, fmt.Sprintf("%.0f/s", s.Speed))
	}
	if s.ETA > 0 {
		detail = append(detail, "ETA "+formatDuration(s.ETA))
	}
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", s.Progress*100))
	return m.bar.ViewAs(s.Progress) + "  " + pct + "\n" + m.styles.Label.Render(strings.Join(detail, "  •  "))
}

func (m *rebuildModel) summaryView(st CompletionStats) string {
	rows := [][2]string{
		{"Records", fmt.Sprintf("%d %s", st.Records, st.Kind)},
		{"Index", fmt.Sprintf("%s, %s, %d dims", st.Backend, st.Metric, st.Dimensions)},
		{"Duration", formatDuration(st.Duration)},
		{"Model", st.Embedder.Model},
	}
	lines := []string{m.styles.Success.Render("✓ Rebuild complete"), ""}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		lines = append(lines, m.styles.Label.Render(fmt.Sprintf("%-9s", row[0]+":"))+"  "+m.styles.Active.Render(row[1]))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorLime)).
		Padding(1, 2).
		Width(max(m.width-4, 40))
	return box.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration prints "250ms", "42s", "2m 5s" or "1h 1m".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm", h, m)
	case m > 0 && s == 0:
		return fmt.Sprintf("%dm", m)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

var _ Renderer = (*TUIRenderer)(nil)
