// Package console is the interactive chat console used by campusctl. It
// talks to a running campusd over HTTP and shows the server's index state
// alongside the conversation.
package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/campusd/internal/chat"
	httpserver "github.com/fyrsmithlabs/campusd/internal/http"
)

const (
	sparklineWidth  = 20
	sparklineHeight = 1
	historySize     = 20

	// chrome is the number of lines around the transcript viewport.
	chrome = 8
)

// Model is the BubbleTea chat model.
type Model struct {
	client   *Client
	userID   string
	interval time.Duration

	input      textinput.Model
	transcript viewport.Model
	lines      []string

	health     *httpserver.HealthResponse
	healthErr  error
	lastUpdate time.Time
	latencies  []float64

	pending  bool
	ready    bool
	quitting bool
}

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45")).
			Bold(true)

	botStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a chat model. Health is polled every interval.
func NewModel(client *Client, userID string, interval time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about timetables, buses, events, exams..."
	ti.CharLimit = 1000
	ti.Focus()

	return Model{
		client:     client,
		userID:     userID,
		interval:   interval,
		input:      ti,
		transcript: viewport.New(80, 10),
		latencies:  make([]float64, 0, historySize),
	}
}

type tickMsg time.Time

type healthMsg struct {
	resp *httpserver.HealthResponse
	err  error
}

type replyMsg struct {
	resp    *chat.Response
	elapsed time.Duration
	err     error
}

// Init starts health polling and the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tick(m.interval),
		fetchHealth(m.client),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchHealth(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Health(ctx)
		return healthMsg{resp: resp, err: err}
	}
}

func sendMessage(client *Client, message, userID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		start := time.Now()
		resp, err := client.Chat(ctx, message, userID)
		return replyMsg{resp: resp, elapsed: time.Since(start), err: err}
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no replies"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

func (m *Model) appendLine(line string) {
	m.lines = append(m.lines, line)
	m.transcript.SetContent(strings.Join(m.lines, "\n"))
	m.transcript.GotoBottom()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.transcript.Width = max(20, msg.Width-4)
		m.transcript.Height = max(3, msg.Height-chrome)
		m.input.Width = max(20, msg.Width-8)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyEnter:
			message := strings.TrimSpace(m.input.Value())
			if message == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.pending = true
			m.appendLine(userStyle.Render("you: ") + message)
			return m, sendMessage(m.client, message, m.userID)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchHealth(m.client),
		)

	case healthMsg:
		m.health, m.healthErr = msg.resp, msg.err
		m.lastUpdate = time.Now()
		return m, nil

	case replyMsg:
		m.pending = false
		if msg.err != nil {
			m.appendLine(errorStyle.Render("error: ") + msg.err.Error())
			return m, nil
		}
		m.latencies = appendToHistory(m.latencies, msg.elapsed.Seconds()*1000)
		m.appendLine(botStyle.Render(FormatResponse(msg.resp)) + " " +
			dimStyle.Render(fmt.Sprintf("[%s, %s]", msg.resp.Intent, FormatLatency(msg.elapsed.Seconds()))))
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) statusBadge() string {
	switch {
	case m.healthErr != nil:
		return errorStyle.Render("✗ OFFLINE")
	case m.health == nil:
		return dimStyle.Render("… CONNECTING")
	case m.health.Index == nil || m.health.Index.Absent:
		return warningStyle.Render("⚠ NO INDEX")
	default:
		return healthyStyle.Render("✓ READY")
	}
}

// View renders the console.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(" campusd chat "))
	b.WriteString("  " + m.statusBadge())
	b.WriteString("  " + dimStyle.Render(m.client.BaseURL()))
	b.WriteString("\n")

	if m.healthErr != nil {
		b.WriteString(errorStyle.Render("Cannot reach campusd: ") + m.healthErr.Error())
	} else if m.health != nil {
		b.WriteString(dimStyle.Render("Index: ") + FormatStats(m.health.Index))
	}
	b.WriteString("   " + dimStyle.Render("Latency: ") + createSparkline(m.latencies))
	b.WriteString("\n\n")

	if len(m.lines) == 0 {
		b.WriteString(dimStyle.Render("No messages yet."))
	} else {
		b.WriteString(m.transcript.View())
	}
	b.WriteString("\n\n")

	if m.pending {
		b.WriteString(dimStyle.Render("waiting for reply..."))
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")

	b.WriteString(footerKeyStyle.Render("[enter]") + footerStyle.Render(" send  ") +
		footerKeyStyle.Render("[pgup/pgdn]") + footerStyle.Render(" scroll  ") +
		footerKeyStyle.Render("[esc]") + footerStyle.Render(" quit"))

	return containerStyle.Render(b.String())
}
