package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/devicelogin/internal/auth"
	"github.com/waabox/devicelogin/internal/domain"
)

const separator = "────────────────────────────────────────────────────────────\n"

// BrowserOpenedMsg reports the outcome of a browser launch.
// It is exported so that tests can inject it directly into PromptModel.Update.
type BrowserOpenedMsg struct {
	Err error
}

// PromptModel is the Bubbletea model that shows the device code and waits for the user.
type PromptModel struct {
	code      auth.DeviceCodeResponse
	open      func(url string) error
	expiresIn time.Duration
	// browserFailed is shown as a hint only; it never ends the prompt.
	browserFailed bool
	confirmed     bool
	aborted       bool
}

// NewPromptModel creates the prompt model for code. open launches the browser.
func NewPromptModel(code auth.DeviceCodeResponse, open func(url string) error) PromptModel {
	return PromptModel{
		code:      code,
		open:      open,
		expiresIn: code.ExpiresIn(time.Now()),
	}
}

// Init opens the browser once when the prompt appears.
func (m PromptModel) Init() tea.Cmd {
	return m.openBrowser()
}

func (m PromptModel) openBrowser() tea.Cmd {
	if m.open == nil {
		return nil
	}
	url := m.code.BrowserURL()
	return func() tea.Msg {
		return BrowserOpenedMsg{Err: m.open(url)}
	}
}

// Update handles key events and browser launch results.
func (m PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case BrowserOpenedMsg:
		m.browserFailed = msg.Err != nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.confirmed = true
			return m, tea.Quit
		case "o":
			return m, m.openBrowser()
		case "esc", "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// Confirmed reports whether the user pressed enter.
func (m PromptModel) Confirmed() bool {
	return m.confirmed
}

// Aborted reports whether the user left the prompt without confirming.
func (m PromptModel) Aborted() bool {
	return m.aborted
}

// View renders the prompt.
func (m PromptModel) View() string {
	header := " devicelogin · GitHub Device Code Authentication\n"
	if m.confirmed {
		return header + separator + "\n Waiting for authorization...\n\n"
	}
	if m.aborted {
		return header + separator + "\n Authorization cancelled.\n\n"
	}

	body := fmt.Sprintf(
		"\n Visit:  %s\n"+
			" Code:   %s\n\n",
		m.code.DisplayURI(), m.code.UserCode)
	if m.expiresIn > 0 {
		body += fmt.Sprintf(" This code will expire in %d seconds.\n\n", int(m.expiresIn.Seconds()))
	}
	if m.browserFailed {
		body += " Could not open a browser, open the URL above manually.\n\n"
	}

	footer := " enter: I've entered the code   o: open browser   esc: cancel\n"
	return header + separator + body + separator + footer
}

// Prompter runs PromptModel as a Bubbletea program on the given terminal streams.
type Prompter struct {
	in   io.Reader
	out  io.Writer
	open func(url string) error
}

// NewPrompter creates a Prompter. open launches the browser; its error is only displayed.
func NewPrompter(in io.Reader, out io.Writer, open func(url string) error) *Prompter {
	return &Prompter{in: in, out: out, open: open}
}

// Prompt blocks until the user confirms, aborts or ctx is cancelled.
// Aborting returns domain.ErrPromptAborted.
func (p *Prompter) Prompt(ctx context.Context, code auth.DeviceCodeResponse) error {
	prog := tea.NewProgram(NewPromptModel(code, p.open),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := prog.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return fmt.Errorf("running prompt: %w", err)
	}
	if m, ok := final.(PromptModel); !ok || !m.Confirmed() {
		return domain.ErrPromptAborted
	}
	return nil
}
