package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"interview/audio"
	"interview/config"
	"interview/errors"
	"interview/job"
	"interview/log"
	"interview/session"
	"interview/transcript"
)

type tickMsg time.Time

var (
	titleStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cursorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	selectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	recStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	interviewerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	userStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	panelStyle       = lipgloss.NewStyle().PaddingLeft(1)
)

type tuiModel struct {
	ctx     context.Context
	app     *app
	keyword string

	jobs      []job.Job
	cursor    int
	selected  int // index into jobs, -1 when nothing is selected
	searching bool

	state      session.State
	recording  bool
	recEnabled bool
	recStarted time.Time
	status     string
	statusErr  bool
	utterances []transcript.Utterance

	width, height int
	now           time.Time
}

func newTUIModel(ctx context.Context, a *app, keyword string) tuiModel {
	return tuiModel{ctx: ctx, app: a, keyword: keyword, selected: -1, searching: true}
}

func runTUI(ctx context.Context, cfg *config.Config, actx audio.Context) error {
	sink := newUISink()
	a := newApp(cfg, actx, sink)
	p := tea.NewProgram(newTUIModel(ctx, a, cfg.Search.Keyword), tea.WithAltScreen(), tea.WithContext(ctx))

	runCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sink.forward(runCtx, p.Send)
	}()
	go func() {
		defer wg.Done()
		a.run(runCtx)
	}()

	_, err := p.Run()
	stop()
	wg.Wait()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		log.Errorf("TUI error: %v", err)
		return err
	}
	return nil
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) search() tea.Cmd {
	api, ctx, keyword := m.app.api, m.ctx, m.keyword
	return func() tea.Msg {
		jobs, err := api.SearchJobs(ctx, keyword)
		return jobsMsg{Jobs: jobs, Err: err}
	}
}

// start runs outside Update: Controller.Start waits on the loop, and the
// loop may be waiting on this program to accept a message.
func (m tuiModel) start() tea.Cmd {
	ctrl, ctx := m.app.ctrl, m.ctx
	return func() tea.Msg {
		return startResultMsg{Err: ctrl.Start(ctx)}
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), m.search())
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case jobsMsg:
		m.searching = false
		if msg.Err != nil {
			m.status, m.statusErr = "job search failed: "+errors.UserMessage(msg.Err), true
			break
		}
		m.jobs, m.cursor, m.selected = msg.Jobs, 0, -1
		m.status, m.statusErr = fmt.Sprintf("%d jobs for %q", len(msg.Jobs), m.keyword), false

	case startResultMsg:
		if msg.Err != nil && !errors.Is(msg.Err, session.ErrNoJobSelected) {
			m.status, m.statusErr = errors.UserMessage(msg.Err), true
		}

	case stateMsg:
		if msg.State == session.Negotiating {
			m.utterances = nil
		}
		m.state = msg.State

	case statusMsg:
		m.status, m.statusErr = msg.Text, msg.Error

	case utteranceMsg:
		m.utterances = append(m.utterances, msg.Utterance)

	case recordingMsg:
		if msg.On && !m.recording {
			m.recStarted = time.Now()
		}
		m.recording, m.recEnabled = msg.On, msg.Enabled
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.jobs)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor < len(m.jobs) {
			m.selected = m.cursor
			m.app.ctrl.SelectJob(m.jobs[m.cursor])
		}
	case "s":
		return m, m.start()
	case " ":
		m.app.ctrl.ToggleRecording()
	case "e":
		m.app.ctrl.End()
	case "r":
		if !m.searching {
			m.searching = true
			m.status, m.statusErr = "searching...", false
			return m, m.search()
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	left := m.width / 3
	if left < 30 {
		left = 30
	}
	right := m.width - left - 1
	if right < 20 {
		right = 20
	}

	jobsPanel := lipgloss.NewStyle().Width(left).Height(m.height).Render(m.renderJobs(left))
	talkPanel := panelStyle.Width(right).Height(m.height).Render(m.renderSession(right - 2))
	return lipgloss.JoinHorizontal(lipgloss.Top, jobsPanel, talkPanel)
}

func (m tuiModel) renderJobs(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Jobs: "+m.keyword) + "\n\n")
	switch {
	case m.searching:
		b.WriteString(dimStyle.Render("searching...") + "\n")
	case len(m.jobs) == 0:
		b.WriteString(dimStyle.Render("no matching jobs") + "\n")
	}
	for i, j := range m.jobs {
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		line := truncate(j.Label(), width-4)
		if i == m.selected {
			line = selectedStyle.Render(line + " ✓")
		}
		b.WriteString(prefix + line + "\n")
	}
	return b.String()
}

func (m tuiModel) renderSession(width int) string {
	var lines []string

	if m.recording {
		elapsed := m.now.Sub(m.recStarted).Seconds()
		if elapsed < 0 {
			elapsed = 0
		}
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed)))
	} else {
		lines = append(lines, dimStyle.Render("○ "+strings.ToUpper(m.state.String())))
	}
	info := fmt.Sprintf("[%s | capture: %s]", m.state, m.app.ctrl.Mode())
	if m.state == session.Active && !m.recEnabled {
		info += " recording unavailable"
	}
	lines = append(lines, dimStyle.Render(info))
	if m.status != "" {
		style := dimStyle
		if m.statusErr {
			style = errorStyle
		}
		for _, l := range wrapText(m.status, width) {
			lines = append(lines, style.Render(l))
		}
	}
	lines = append(lines, "")

	// newest utterances that fit above the help lines
	var talk []string
	for _, u := range m.utterances {
		style, who := interviewerStyle, "Interviewer"
		if u.Speaker == transcript.User {
			style, who = userStyle, "You"
		}
		text := u.Text
		if text == "" {
			text = "(audio)"
		}
		for i, l := range wrapText(who+": "+text, width) {
			if i > 0 {
				l = "  " + l
			}
			talk = append(talk, style.Render(l))
		}
		talk = append(talk, "")
	}
	room := m.height - len(lines) - 3
	if room < 0 {
		room = 0
	}
	if len(talk) > room {
		talk = talk[len(talk)-room:]
	}
	lines = append(lines, talk...)

	lines = append(lines, "",
		helpKeyStyle.Render("↑/↓ enter")+helpStyle.Render(" select  ")+
			helpKeyStyle.Render("s")+helpStyle.Render(" start  ")+
			helpKeyStyle.Render("space")+helpStyle.Render(" answer  ")+
			helpKeyStyle.Render("e")+helpStyle.Render(" end  ")+
			helpKeyStyle.Render("r")+helpStyle.Render(" search  ")+
			helpKeyStyle.Render("q")+helpStyle.Render(" quit"),
		helpStyle.Render("interview "+version))
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

// wrapText breaks text on spaces into lines of at most width runes.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}
	var lines []string
	r := []rune(text)
	for len(r) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if r[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(r[:splitAt]))
		r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
	}
	if len(r) > 0 {
		lines = append(lines, string(r))
	}
	return lines
}
