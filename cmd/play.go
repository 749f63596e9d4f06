package cmd

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/storyteller/internal/answer"
	"github.com/abhisek/storyteller/internal/answercache"
	"github.com/abhisek/storyteller/internal/config"
	"github.com/abhisek/storyteller/internal/dialogue"
	"github.com/abhisek/storyteller/internal/llm"
	"github.com/abhisek/storyteller/internal/logger"
	"github.com/abhisek/storyteller/internal/thread"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a story in the terminal",
	Long:  "play runs the story engine in-process and reads the learner's answers from the terminal. Nothing is served over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if mode, _ := cmd.Flags().GetString("mode"); mode != "" {
			cfg.Engine.Mode = mode
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		// The terminal belongs to the story; logs go to a file or nowhere.
		log := logger.Nop()
		if path, _ := cmd.Flags().GetString("log-file"); path != "" {
			if log, err = logger.NewFile(cfg.LogMode, path); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		st, err := openStoreAt(cmd, cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()

		provider, err := llm.NewProviderFromEnv(ctx, st.EventRepo(), log)
		if err != nil {
			return fmt.Errorf("LLM provider not configured: %w", err)
		}
		answers, err := answercache.New(cfg.Redis, st.ExpectedAnswers(), log)
		if err != nil {
			return fmt.Errorf("answer cache: %w", err)
		}
		if c, ok := answers.(io.Closer); ok {
			defer c.Close()
		}

		var validator answer.Validator
		if cfg.Engine.SemanticCheck {
			vcfg := answer.DefaultValidatorConfig()
			vcfg.Model = cfg.Engine.Model
			validator = answer.NewSemanticValidator(provider, vcfg)
		}

		engine := dialogue.New(cfg.Engine, dialogue.Deps{
			Threads:       thread.NewLocal(provider, st.Threads(), thread.DefaultHistory),
			Provider:      provider,
			Conversations: st.Conversations(),
			Answers:       answers,
			Graphs:        st.Graphs(),
			Instructions:  st.Instructions(),
			Documents:     st.Documents(),
			Assistants:    st.Assistants(),
			Grader:        answer.NewGrader(validator),
			Log:           log,
		})

		user, _ := cmd.Flags().GetString("user")
		threadID, _ := cmd.Flags().GetString("thread")
		m := newPlayModel(ctx, engine, user, threadID)
		_, err = tea.NewProgram(m).Run()
		return err
	},
}

func init() {
	playCmd.Flags().String("user", defaultPlayUser(), "Learner id the conversation is recorded under")
	playCmd.Flags().StringP("thread", "t", "", "Resume an existing thread")
	playCmd.Flags().String("mode", "", "Engine mode: linear or graph (overrides STORYTELLER_MODE)")
	playCmd.Flags().String("log-file", "", "Write logs to this file")
}

func defaultPlayUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}

// turnHandler runs one turn of the story.
type turnHandler interface {
	HandleTurn(ctx context.Context, req dialogue.TurnRequest) iter.Seq[dialogue.Event]
}

var (
	playTitleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	playStoryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F9FAFB"))
	playLearnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4"))
	playStatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
	playCorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")).Bold(true)
	playWrongStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	playHintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
)

type entryKind int

const (
	entryStory entryKind = iota
	entryLearner
	entryCorrect
	entryWrong
	entryError
)

type playEntry struct {
	kind entryKind
	text string
}

// turnEventMsg carries one event of the running turn.
type turnEventMsg struct {
	event dialogue.Event
}

// turnClosedMsg means the turn's stream ended.
type turnClosedMsg struct{}

type playModel struct {
	ctx    context.Context
	engine turnHandler
	userID string

	threadID       string
	conversationID int64

	input      textinput.Model
	transcript []playEntry
	status     string
	events     <-chan dialogue.Event
	busy       bool
	answering  bool
	width      int
	height     int
}

func newPlayModel(ctx context.Context, engine turnHandler, userID, threadID string) *playModel {
	ti := textinput.New()
	ti.Placeholder = "Type your answer"
	ti.CharLimit = 500
	ti.Focus()

	return &playModel{
		ctx:      ctx,
		engine:   engine,
		userID:   userID,
		threadID: threadID,
		input:    ti,
	}
}

func (m *playModel) Init() tea.Cmd {
	return nil
}

func (m *playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		}

	case turnEventMsg:
		m.apply(msg.event)
		if msg.event.Terminal() {
			return m, nil
		}
		return m, waitForEvent(m.events)

	case turnClosedMsg:
		// The context was cancelled before a terminal event arrived.
		m.busy = false
		m.status = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit starts a turn with the typed message. Nothing happens while a
// turn is still streaming.
func (m *playModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if m.busy || text == "" {
		return nil
	}
	m.input.SetValue("")
	m.transcript = append(m.transcript, playEntry{kind: entryLearner, text: text})
	m.answering = m.threadID != ""
	m.busy = true

	req := dialogue.TurnRequest{
		ThreadID:       m.threadID,
		ConversationID: m.conversationID,
		Message:        text,
		UserID:         m.userID,
	}
	m.events = streamTurn(m.ctx, m.engine, req)
	return waitForEvent(m.events)
}

// streamTurn runs the turn on its own goroutine and hands its events over
// a channel that is closed when the turn ends.
func streamTurn(ctx context.Context, engine turnHandler, req dialogue.TurnRequest) <-chan dialogue.Event {
	ch := make(chan dialogue.Event)
	go func() {
		defer close(ch)
		for ev := range engine.HandleTurn(ctx, req) {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func waitForEvent(ch <-chan dialogue.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return turnClosedMsg{}
		}
		return turnEventMsg{event: ev}
	}
}

func (m *playModel) apply(ev dialogue.Event) {
	switch ev.Type {
	case dialogue.EventThreadID:
		m.threadID = ev.ThreadID
	case dialogue.EventStatus:
		m.status = ev.Status
	case dialogue.EventContent:
		m.status = ""
		if n := len(m.transcript); n > 0 && m.transcript[n-1].kind == entryStory {
			m.transcript[n-1].text += ev.Content
			return
		}
		m.transcript = append(m.transcript, playEntry{kind: entryStory, text: strings.TrimLeft(ev.Content, "\n")})
	case dialogue.EventDone:
		m.busy = false
		m.status = ""
		if ev.ConversationID != 0 {
			m.conversationID = ev.ConversationID
		}
		if m.answering && ev.WasWrong != nil {
			m.insertVerdict(*ev.WasWrong)
		}
	case dialogue.EventError:
		m.busy = false
		m.status = ""
		m.transcript = append(m.transcript, playEntry{kind: entryError, text: ev.Message})
	}
}

// insertVerdict places the verdict right after the learner's answer, ahead
// of the story that continued from it.
func (m *playModel) insertVerdict(wasWrong bool) {
	entry := playEntry{kind: entryCorrect, text: "Correct!"}
	if wasWrong {
		entry = playEntry{kind: entryWrong, text: "Not quite."}
	}
	at := len(m.transcript)
	for i := len(m.transcript) - 1; i >= 0; i-- {
		if m.transcript[i].kind == entryLearner {
			at = i + 1
			break
		}
	}
	m.transcript = append(m.transcript[:at], append([]playEntry{entry}, m.transcript[at:]...)...)
}

func (m *playModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	v.SetContent(m.render())
	return v
}

func (m *playModel) render() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width)

	var lines []string
	for _, e := range m.transcript {
		var s string
		switch e.kind {
		case entryStory:
			s = playStoryStyle.Render(e.text)
		case entryLearner:
			s = playLearnerStyle.Render("> " + e.text)
		case entryCorrect:
			s = playCorrectStyle.Render("✓ " + e.text)
		case entryWrong:
			s = playWrongStyle.Render("✗ " + e.text)
		case entryError:
			s = playWrongStyle.Render(e.text)
		}
		lines = append(lines, strings.Split(wrap.Render(s), "\n")...)
		lines = append(lines, "")
	}
	if m.status != "" {
		lines = append(lines, playStatusStyle.Render(m.status+"..."))
	}

	header := playTitleStyle.Render("Storyteller")
	footer := m.input.View() + "\n" + playHintStyle.Render("Enter to send · Esc to quit")
	if len(m.transcript) == 0 {
		lines = append(lines, playHintStyle.Render("Say hello to begin the story."))
	}

	// Keep the newest lines when the transcript outgrows the screen.
	if m.height > 0 {
		room := m.height - lipgloss.Height(header) - lipgloss.Height(footer) - 2
		if room < 1 {
			room = 1
		}
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}
	return header + "\n\n" + strings.Join(lines, "\n") + "\n" + footer
}
