package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/halcyon-chat/halcyon/internal/chat"
	"github.com/halcyon-chat/halcyon/internal/service"
	"github.com/halcyon-chat/halcyon/internal/store"
)

// ---------------------------------------------------------------------------
// Messages pushed into the update loop from service callbacks
// ---------------------------------------------------------------------------

// StreamDeltaMsg carries one streamed increment of assistant output.
type StreamDeltaMsg struct {
	Content   string
	Reasoning string
}

// ToolStatusMsg announces the tool the assistant is about to run. An empty
// Name means the reply finished with no tool call.
type ToolStatusMsg struct {
	Name string
}

// TurnDoneMsg carries the terminal result of one chat turn.
type TurnDoneMsg struct {
	Result service.Result
}

// ---------------------------------------------------------------------------
// Bubble Tea model -- inline chat shell
// ---------------------------------------------------------------------------

// Model is the Bubble Tea model for the chat TUI.
type Model struct {
	width  int
	height int

	version string
	modelID string

	input       string
	inputCursor int

	thinking   bool
	streamBuf  string
	reasonBuf  string
	toolStatus string

	inputTokens  int
	outputTokens int

	history   []chat.Message
	viewLines []string

	promptHistory []string
	historyIdx    int
	historyDraft  string

	spinner spinner.Model

	Store   *store.Store
	Session *store.Session
	Service *service.Service
	titled  bool
}

// InitialModel creates the initial Bubble Tea model. history holds the
// replayed transcript when resuming an existing session.
func InitialModel(version, modelID string, svc *service.Service, st *store.Store, session *store.Session, history []chat.Message) Model {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	m := Model{
		version:      version,
		modelID:      modelID,
		spinner:      sp,
		historyIdx:   -1,
		Store:        st,
		Session:      session,
		Service:      svc,
		history:      history,
		inputTokens:  session.InputTokens,
		outputTokens: session.OutputTokens,
		titled:       session.Title != "",
	}
	if len(history) == 0 {
		m.viewLines = []string{WelcomeStyle.Render("Welcome to halcyon."), ""}
	} else {
		m.replayHistory()
	}
	return m
}

// Init initializes the Bubble Tea model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamDeltaMsg:
		m.streamBuf += msg.Content
		m.reasonBuf += msg.Reasoning
		return m, nil

	case ToolStatusMsg:
		m.toolStatus = msg.Name
		if msg.Name != "" {
			m.viewLines = append(m.viewLines, ToolNameStyle.Render("⚙ "+msg.Name))
		}
		return m, nil

	case TurnDoneMsg:
		return m.finishTurn(msg.Result)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.thinking {
			m.Service.Abort()
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.thinking {
			m.Service.Abort()
		}
		return m, nil

	case tea.KeyEnter:
		if m.thinking {
			return m, nil
		}
		return m.submit()

	case tea.KeyBackspace:
		if m.inputCursor > 0 {
			r := []rune(m.input)
			m.input = string(r[:m.inputCursor-1]) + string(r[m.inputCursor:])
			m.inputCursor--
		}
		return m, nil

	case tea.KeyLeft:
		if m.inputCursor > 0 {
			m.inputCursor--
		}
		return m, nil

	case tea.KeyRight:
		if m.inputCursor < len([]rune(m.input)) {
			m.inputCursor++
		}
		return m, nil

	case tea.KeyUp:
		if len(m.promptHistory) == 0 {
			return m, nil
		}
		if m.historyIdx == -1 {
			m.historyDraft = m.input
			m.historyIdx = len(m.promptHistory) - 1
		} else if m.historyIdx > 0 {
			m.historyIdx--
		}
		m.input = m.promptHistory[m.historyIdx]
		m.inputCursor = len([]rune(m.input))
		return m, nil

	case tea.KeyDown:
		if m.historyIdx == -1 {
			return m, nil
		}
		if m.historyIdx < len(m.promptHistory)-1 {
			m.historyIdx++
			m.input = m.promptHistory[m.historyIdx]
		} else {
			m.historyIdx = -1
			m.input = m.historyDraft
		}
		m.inputCursor = len([]rune(m.input))
		return m, nil

	case tea.KeySpace:
		return m.insertRunes([]rune{' '})

	case tea.KeyRunes:
		return m.insertRunes(msg.Runes)
	}
	return m, nil
}

func (m Model) insertRunes(runes []rune) (tea.Model, tea.Cmd) {
	r := []rune(m.input)
	m.input = string(r[:m.inputCursor]) + string(runes) + string(r[m.inputCursor:])
	m.inputCursor += len(runes)
	return m, nil
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input)
	if prompt == "" {
		return m, nil
	}
	m.promptHistory = append(m.promptHistory, prompt)
	m.historyIdx = -1
	m.input = ""
	m.inputCursor = 0

	m.history = append(m.history, chat.Message{Role: chat.RoleUser, Content: prompt})
	m.viewLines = append(m.viewLines, UserIconStyle.Render("> ")+prompt, "")
	if m.Store != nil {
		if err := m.Store.AppendMessage(m.Session.ID, chat.RoleUser, prompt); err != nil {
			m.viewLines = append(m.viewLines, ErrorLineStyle.Render("store: "+err.Error()))
		}
		if !m.titled {
			m.titled = true
			if err := m.Store.SetTitle(m.Session.ID, truncateTitle(prompt)); err == nil {
				m.Session.Title = truncateTitle(prompt)
			}
		}
	}

	m.thinking = true
	m.streamBuf = ""
	m.reasonBuf = ""
	m.toolStatus = ""

	msgs := make([]chat.Message, len(m.history))
	copy(msgs, m.history)
	go m.Service.Chat(context.Background(), msgs)
	return m, m.spinner.Tick
}

func (m Model) finishTurn(res service.Result) (tea.Model, tea.Cmd) {
	m.thinking = false
	m.toolStatus = ""
	m.streamBuf = ""
	m.reasonBuf = ""

	m.inputTokens += res.InputTokens
	m.outputTokens += res.OutputTokens
	if m.Store != nil && (res.InputTokens > 0 || res.OutputTokens > 0) {
		_ = m.Store.AddTokens(m.Session.ID, res.InputTokens, res.OutputTokens)
	}

	if res.Reasoning != "" {
		for _, line := range RenderMarkdown(res.Reasoning, m.renderWidth()) {
			m.viewLines = append(m.viewLines, ReasonStyle.Render(line))
		}
		m.viewLines = append(m.viewLines, "")
	}
	if res.Content != "" {
		m.history = append(m.history, chat.Message{Role: chat.RoleAssistant, Content: res.Content})
		if m.Store != nil {
			_ = m.Store.AppendMessage(m.Session.ID, chat.RoleAssistant, res.Content)
		}
		m.viewLines = append(m.viewLines, AsstIconStyle.Render("● "))
		m.viewLines = append(m.viewLines, RenderMarkdown(res.Content, m.renderWidth())...)
		m.viewLines = append(m.viewLines, "")
	}
	if res.Aborted {
		m.viewLines = append(m.viewLines, ErrorLineStyle.Render("(aborted)"), "")
	} else if res.Err != nil {
		m.viewLines = append(m.viewLines, ErrorLineStyle.Render("error: "+res.Err.Error()), "")
	}
	return m, nil
}

// replayHistory re-renders a resumed session transcript into the view.
func (m *Model) replayHistory() {
	m.viewLines = m.viewLines[:0]
	for _, msg := range m.history {
		switch msg.Role {
		case chat.RoleUser:
			m.viewLines = append(m.viewLines, UserIconStyle.Render("> ")+msg.Content, "")
		case chat.RoleAssistant:
			m.viewLines = append(m.viewLines, AsstIconStyle.Render("● "))
			m.viewLines = append(m.viewLines, RenderMarkdown(msg.Content, m.renderWidth())...)
			m.viewLines = append(m.viewLines, "")
		}
	}
}

func (m Model) renderWidth() int {
	if m.width <= 0 {
		return 80
	}
	return m.width
}

// View renders the transcript, any in-flight stream, and the input line.
func (m Model) View() string {
	var b strings.Builder
	for _, line := range m.viewLines {
		b.WriteString(line + "\n")
	}

	if m.thinking {
		if m.reasonBuf != "" {
			for _, line := range RenderMarkdown(m.reasonBuf, m.renderWidth()) {
				b.WriteString(ReasonStyle.Render(line) + "\n")
			}
		}
		if m.streamBuf != "" {
			for _, line := range RenderMarkdown(m.streamBuf, m.renderWidth()) {
				b.WriteString(line + "\n")
			}
		}
		if m.toolStatus != "" {
			b.WriteString(ThinkingStyle.Render(m.spinner.View()+" "+m.toolStatus) + "\n\n")
		} else {
			b.WriteString(ThinkingStyle.Render(m.spinner.View()+" Thinking...") + "\n\n")
		}
	} else {
		b.WriteString(m.inputLine() + "\n")
	}

	b.WriteString(m.footer() + "\n")
	return b.String()
}

func (m Model) inputLine() string {
	r := []rune(m.input)
	before := string(r[:m.inputCursor])
	cursor := " "
	after := ""
	if m.inputCursor < len(r) {
		cursor = string(r[m.inputCursor])
		after = string(r[m.inputCursor+1:])
	}
	return PromptStyle.Render("> ") + InputStyle.Render(before) +
		lipgloss.NewStyle().Reverse(true).Render(cursor) + InputStyle.Render(after)
}

func (m Model) footer() string {
	return FooterHead.Render("halcyon "+m.version) +
		FooterMeta.Render(" · ") +
		FooterMeta.Render(m.modelID) +
		FooterMeta.Render(" · ") +
		FooterTokens.Render(fmt.Sprintf("%d in / %d out", m.inputTokens, m.outputTokens)) +
		FooterMeta.Render(" · esc aborts · ctrl+c quits")
}

func truncateTitle(s string) string {
	r := []rune(s)
	if len(r) <= 48 {
		return s
	}
	return string(r[:48]) + "…"
}
