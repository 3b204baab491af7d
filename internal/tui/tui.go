// Package tui is the terminal review queue: records parked by the
// adjudicator are listed for a human to approve or reject.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"newsforge/internal/core"
	"newsforge/internal/records"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	approveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	rejectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).MarginTop(1)
)

// item is one reviewable record projection.
type item struct {
	id       string
	title    string
	score    float64
	concerns []string
	decision string
}

// Model is the bubbletea model for the review queue.
type Model struct {
	store    *records.Store
	items    []item
	cursor   int
	message  string
	quitting bool
}

// NewModel loads every record parked for human review.
func NewModel(store *records.Store) (Model, error) {
	ids, err := store.ListIDs()
	if err != nil {
		return Model{}, err
	}

	m := Model{store: store}
	for _, id := range ids {
		rec, err := store.Load(id)
		if err != nil {
			continue
		}
		adj := rec.FinalAdjudication
		if rec.TerminalStatus != "" || adj == nil ||
			adj.FinalPublicationDecision != core.DecisionFlagForReview {
			continue
		}
		title := rec.FinalPageH1
		if title == "" {
			title = rec.InitialTitle
		}
		m.items = append(m.items, item{
			id:       id,
			title:    title,
			score:    adj.OverallValueExcitementScore,
			concerns: adj.SpecificConcerns,
			decision: adj.FinalPublicationDecision,
		})
	}
	return m, nil
}

// Pending returns how many records await review.
func (m Model) Pending() int { return len(m.items) }

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "a":
			return m.decide(core.DecisionPublishMinorEdits, "")
		case "r":
			return m.decide(core.DecisionReject, core.TerminalRejectedAdjudicator)
		}
	}
	return m, nil
}

// decide applies a human decision to the selected record: approval rewrites
// the adjudication so the next pipeline run publishes it, rejection marks the
// record terminal.
func (m Model) decide(decision, terminal string) (tea.Model, tea.Cmd) {
	if len(m.items) == 0 {
		return m, nil
	}
	sel := m.items[m.cursor]

	rec, err := m.store.Load(sel.id)
	if err != nil {
		m.message = rejectStyle.Render(fmt.Sprintf("Failed to load %s: %v", sel.id, err))
		return m, nil
	}
	rec.FinalAdjudication.FinalPublicationDecision = decision
	rec.FinalAdjudication.DecisionRationale = strings.TrimSpace(
		rec.FinalAdjudication.DecisionRationale + "; human review decision")
	rec.SetStageStatus("adjudicator_prime", core.StatusSuccess)
	rec.TerminalStatus = terminal
	if err := m.store.Save(rec); err != nil {
		m.message = rejectStyle.Render(fmt.Sprintf("Failed to save %s: %v", sel.id, err))
		return m, nil
	}

	if terminal == "" {
		m.message = approveStyle.Render(fmt.Sprintf("Approved %q", sel.title))
	} else {
		m.message = rejectStyle.Render(fmt.Sprintf("Rejected %q", sel.title))
	}

	m.items = append(m.items[:m.cursor], m.items[m.cursor+1:]...)
	if m.cursor >= len(m.items) && m.cursor > 0 {
		m.cursor--
	}
	if len(m.items) == 0 {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		if m.message != "" {
			return m.message + "\n"
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Review queue"))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %d article(s) flagged for human review\n\n", len(m.items))))

	if len(m.items) == 0 {
		b.WriteString(dimStyle.Render("Nothing to review.\n"))
	}

	for i, it := range m.items {
		line := fmt.Sprintf("%s  (score %.0f)", it.title, it.score)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + line))
			b.WriteString("\n")
			for _, c := range it.concerns {
				b.WriteString(dimStyle.Render("    - " + c))
				b.WriteString("\n")
			}
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if m.message != "" {
		b.WriteString("\n" + m.message + "\n")
	}
	b.WriteString(helpStyle.Render("a approve  r reject  j/k move  q quit"))
	b.WriteString("\n")
	return b.String()
}

// Run starts the interactive review session.
func Run(store *records.Store) error {
	m, err := NewModel(store)
	if err != nil {
		return err
	}
	if m.Pending() == 0 {
		fmt.Println("Nothing to review.")
		return nil
	}
	_, err = tea.NewProgram(m).Run()
	return err
}
