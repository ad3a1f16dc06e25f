package progressview

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/insightd/internal/pipeline"
)

// tuiRenderer runs a bubbletea program that redraws a table of per-
// collection stage counters on every snapshot, the multi-collection
// generalization of internal/ui.TUIRenderer's single progress bar.
type tuiRenderer struct {
	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

func newTUIRenderer(cfg Config) (*tuiRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("progressview: output is not a TTY")
	}

	model := newModel(cfg.Names, cfg.NoColor || DetectNoColor())

	var opts []tea.ProgramOption
	if f, ok := cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	return &tuiRenderer{
		program: tea.NewProgram(model, opts...),
		done:    make(chan struct{}),
	}, nil
}

func (r *tuiRenderer) Start() error {
	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

func (r *tuiRenderer) Update(snap pipeline.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(snapshotMsg(snap))
	}
}

func (r *tuiRenderer) Stop() error {
	r.mu.Lock()
	program := r.program
	r.mu.Unlock()
	if program == nil {
		return nil
	}
	program.Quit()
	<-r.done
	return nil
}

type snapshotMsg pipeline.Snapshot

type model struct {
	names   func(string) string
	noColor bool
	byColl  map[string]pipeline.Snapshot

	header    lipgloss.Style
	collStyle lipgloss.Style
	doneStyle lipgloss.Style
	failStyle lipgloss.Style
}

func newModel(names func(string) string, noColor bool) model {
	m := model{
		names:  names,
		byColl: make(map[string]pipeline.Snapshot),
	}
	if noColor {
		m.header = lipgloss.NewStyle().Bold(true)
		m.collStyle = lipgloss.NewStyle()
		m.doneStyle = lipgloss.NewStyle()
		m.failStyle = lipgloss.NewStyle()
		return m
	}
	m.header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	m.collStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	m.doneStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	m.failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	return m
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.byColl[msg.CollectionID] = pipeline.Snapshot(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	if len(m.byColl) == 0 {
		return m.header.Render("insightd") + "\nwaiting for documents…\n"
	}

	ids := make([]string, 0, len(m.byColl))
	for id := range m.byColl {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString(m.header.Render("insightd pipeline progress"))
	b.WriteString("\n\n")
	for _, id := range ids {
		snap := m.byColl[id]
		b.WriteString(m.collStyle.Render(m.names(id)))
		b.WriteString("\n")
		for _, stage := range stageOrder {
			c := snap.Stages[stage]
			b.WriteString(fmt.Sprintf("  %-7s pending %-4d active %-4d ", stage, c.Pending, c.Active))
			b.WriteString(m.doneStyle.Render(fmt.Sprintf("completed %-4d", c.Completed)))
			b.WriteString(" ")
			b.WriteString(m.failStyle.Render(fmt.Sprintf("failed %-4d", c.Failed)))
			b.WriteString("\n")
		}
	}
	b.WriteString("\n(q to quit)\n")
	return b.String()
}
