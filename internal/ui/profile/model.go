package profile

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/mberg/authdeck/internal/api"
	"github.com/mberg/authdeck/internal/session"
	"github.com/mberg/authdeck/internal/store"
	"github.com/mberg/authdeck/internal/ui/messages"
)

const loadTimeout = 15 * time.Second

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#36A3D9")).Bold(true).
			Padding(1, 0)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#36A3D9"))
)

// Model is the account profile view.
type Model struct {
	manager *session.Manager
	gateway *api.Client

	user        *store.Identity
	provisional bool
	loading     bool
	err         string

	width  int
	height int
}

// New creates the profile view.
func New(manager *session.Manager, gateway *api.Client) Model {
	return Model{manager: manager, gateway: gateway}
}

// SetSize sets the viewport dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Init seeds the view from the cached session and starts the network load.
func (m *Model) Init() tea.Cmd {
	current := m.manager.Current()
	m.user = current.User
	m.provisional = current.Provisional
	m.loading = true
	return m.load()
}

// load fetches the profile and the verified session state concurrently.
func (m Model) load() tea.Cmd {
	manager := m.manager
	gateway := m.gateway
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		var (
			user *store.Identity
			sess session.Session
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			user, err = gateway.Profile(ctx)
			return err
		})
		g.Go(func() error {
			var err error
			sess, err = manager.Read(ctx)
			return err
		})
		err := g.Wait()
		return messages.ProfileLoadedMsg{User: user, Session: sess, Err: err}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			m.loading = true
			m.err = ""
			m.manager.Invalidate()
			return m, m.load()
		case "l":
			manager := m.manager
			return m, func() tea.Msg {
				return messages.LogoutResultMsg{Err: manager.Logout(context.Background())}
			}
		}

	case messages.ProfileLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err.Error()
			return m, nil
		}
		m.user = msg.User
		m.provisional = msg.Session.Provisional
		return m, nil
	}
	return m, nil
}

// View renders the profile.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Account"))
	sb.WriteString("\n\n")

	if m.user != nil {
		sb.WriteString(labelStyle.Render("Email: "))
		sb.WriteString(m.user.Email)
		sb.WriteString("\n")
		sb.WriteString(labelStyle.Render("Member since: "))
		sb.WriteString(m.user.CreatedAt.Format("Jan 2, 2006"))
		sb.WriteString("\n")
		if m.provisional {
			sb.WriteString(dimStyle.Render("(cached, verifying...)"))
			sb.WriteString("\n")
		}
	} else if m.loading {
		sb.WriteString("Loading profile...")
		sb.WriteString("\n")
	}

	if m.err != "" {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(m.err))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(keyStyle.Render("r") + " refresh, " +
		keyStyle.Render("l") + " log out, " +
		keyStyle.Render("q") + " quit")

	content := sb.String()
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
