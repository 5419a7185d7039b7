package register

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mberg/authdeck/internal/session"
	"github.com/mberg/authdeck/internal/ui/messages"
	"github.com/mberg/authdeck/internal/validation"
)

var (
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#36A3D9"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#36A3D9")).Bold(true).
			Padding(1, 0)
)

// Model is the registration form view.
type Model struct {
	inputs     []textinput.Model
	labels     []string
	fields     []string
	focusIndex int
	fieldErrs  validation.Fields
	err        string
	submitting bool
	manager    *session.Manager
	width      int
	height     int
}

// New creates a new registration form.
func New(manager *session.Manager) Model {
	email := textinput.New()
	email.Placeholder = "email"
	email.Focus()
	email.Width = 30

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.Width = 30

	confirm := textinput.New()
	confirm.Placeholder = "confirm password"
	confirm.EchoMode = textinput.EchoPassword
	confirm.Width = 30

	return Model{
		inputs:  []textinput.Model{email, password, confirm},
		labels:  []string{"Email:", "Password:", "Confirm password:"},
		fields:  []string{"email", "password", "confirmPassword"},
		manager: manager,
	}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "tab", "shift+tab":
			m.inputs[m.focusIndex].Blur()
			if msg.String() == "tab" {
				m.focusIndex = (m.focusIndex + 1) % len(m.inputs)
			} else {
				m.focusIndex = (m.focusIndex + len(m.inputs) - 1) % len(m.inputs)
			}
			m.inputs[m.focusIndex].Focus()
			return m, nil
		case "enter":
			if m.submitting {
				return m, nil
			}
			email := strings.TrimSpace(m.inputs[0].Value())
			password := m.inputs[1].Value()
			confirm := m.inputs[2].Value()
			m.submitting = true
			m.err = ""
			m.fieldErrs = nil
			manager := m.manager
			return m, func() tea.Msg {
				s, err := manager.Register(context.Background(), email, password, confirm)
				return messages.RegisterResultMsg{Session: s, Err: err}
			}
		}

	case messages.RegisterResultMsg:
		m.submitting = false
		if msg.Err != nil {
			var f validation.Fields
			if errors.As(msg.Err, &f) {
				m.fieldErrs = f
			} else {
				m.err = msg.Err.Error()
			}
			return m, nil
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focusIndex], cmd = m.inputs[m.focusIndex].Update(msg)
	return m, cmd
}

// View renders the registration form.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Create account"))
	sb.WriteString("\n\n")
	for i, input := range m.inputs {
		sb.WriteString(labelStyle.Render(m.labels[i]))
		sb.WriteString("\n")
		sb.WriteString(input.View())
		sb.WriteString("\n")
		if msg, ok := m.fieldErrs[m.fields[i]]; ok {
			sb.WriteString(errorStyle.Render(msg))
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if m.err != "" {
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n\n")
	}

	if m.submitting {
		sb.WriteString("Creating account...")
	} else {
		sb.WriteString(focusedStyle.Render("Enter") + " to register, " +
			focusedStyle.Render("Esc") + " to go back")
	}

	content := sb.String()
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
