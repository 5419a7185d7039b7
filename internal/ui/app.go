package ui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mberg/authdeck/internal/api"
	"github.com/mberg/authdeck/internal/session"
	"github.com/mberg/authdeck/internal/ui/login"
	"github.com/mberg/authdeck/internal/ui/messages"
	"github.com/mberg/authdeck/internal/ui/profile"
	"github.com/mberg/authdeck/internal/ui/register"
)

// ViewType identifies the active view.
type ViewType int

const (
	ViewLogin ViewType = iota
	ViewRegister
	ViewProfile
)

func (v ViewType) surface() string {
	switch v {
	case ViewRegister:
		return "register"
	case ViewProfile:
		return "profile"
	default:
		return session.SurfaceLogin
	}
}

// navigator relays teardown redirects from background work into the Bubble
// Tea loop. GoTo may be called from any goroutine.
type navigator struct {
	mu      sync.Mutex
	current string
	send    func(tea.Msg)
}

func (n *navigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *navigator) GoTo(target string) {
	n.mu.Lock()
	send := n.send
	n.mu.Unlock()
	if target == session.SurfaceLogin && send != nil {
		send(messages.OpenLoginMsg{})
	}
}

func (n *navigator) setSend(send func(tea.Msg)) {
	n.mu.Lock()
	n.send = send
	n.mu.Unlock()
}

func (n *navigator) setCurrent(surface string) {
	n.mu.Lock()
	n.current = surface
	n.mu.Unlock()
}

// App is the root Bubble Tea model.
type App struct {
	activeView ViewType

	loginForm    login.Model
	registerForm register.Model
	profileView  profile.Model

	manager *session.Manager
	gateway *api.Client
	nav     *navigator

	width  int
	height int

	program *tea.Program
}

// NewApp creates the root application model and wires itself in as the
// session manager's navigator.
func NewApp(manager *session.Manager, gateway *api.Client) *App {
	a := &App{
		activeView:   ViewLogin,
		loginForm:    login.New(manager),
		registerForm: register.New(manager),
		profileView:  profile.New(manager, gateway),
		manager:      manager,
		gateway:      gateway,
		nav:          &navigator{current: session.SurfaceLogin},
	}
	manager.SetNavigator(a.nav)
	return a
}

// SetProgram stores the tea.Program reference so background teardowns can
// post navigation messages.
func (a *App) SetProgram(p *tea.Program) {
	a.program = p
	a.nav.setSend(p.Send)
}

// Init reads the session in the background; the login form shows meanwhile.
func (a *App) Init() tea.Cmd {
	manager := a.manager
	return func() tea.Msg {
		s, err := manager.Read(context.Background())
		return messages.SessionReadMsg{Session: s, Err: err}
	}
}

// Update handles all messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.loginForm.SetSize(msg.Width, msg.Height)
		a.registerForm.SetSize(msg.Width, msg.Height)
		a.profileView.SetSize(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "ctrl+r":
			if a.activeView == ViewLogin {
				a.setView(ViewRegister)
				return a, nil
			}
		case "esc":
			if a.activeView == ViewRegister {
				a.setView(ViewLogin)
				return a, nil
			}
		case "q":
			if a.activeView == ViewProfile {
				return a, tea.Quit
			}
		}

	case messages.SessionReadMsg:
		if msg.Session.State == session.StateAuthenticated {
			return a, a.setView(ViewProfile)
		}
		return a, nil

	case messages.OpenLoginMsg:
		a.setView(ViewLogin)
		return a, nil

	case messages.LoginResultMsg:
		var cmd tea.Cmd
		a.loginForm, cmd = a.loginForm.Update(msg)
		if msg.Err == nil {
			return a, tea.Batch(cmd, a.setView(ViewProfile))
		}
		return a, cmd

	case messages.RegisterResultMsg:
		var cmd tea.Cmd
		a.registerForm, cmd = a.registerForm.Update(msg)
		if msg.Err == nil {
			return a, tea.Batch(cmd, a.setView(ViewProfile))
		}
		return a, cmd

	case messages.LogoutResultMsg:
		a.setView(ViewLogin)
		return a, nil
	}

	return a, a.updateActive(msg)
}

// setView switches the active view and returns its init command, if any.
func (a *App) setView(v ViewType) tea.Cmd {
	a.activeView = v
	a.nav.setCurrent(v.surface())
	switch v {
	case ViewProfile:
		a.profileView.SetSize(a.width, a.height)
		return a.profileView.Init()
	case ViewRegister:
		a.registerForm.SetSize(a.width, a.height)
	case ViewLogin:
		a.loginForm.SetSize(a.width, a.height)
	}
	return nil
}

func (a *App) updateActive(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch a.activeView {
	case ViewLogin:
		a.loginForm, cmd = a.loginForm.Update(msg)
	case ViewRegister:
		a.registerForm, cmd = a.registerForm.Update(msg)
	case ViewProfile:
		a.profileView, cmd = a.profileView.Update(msg)
	}
	return cmd
}

// View renders the active view.
func (a *App) View() string {
	switch a.activeView {
	case ViewRegister:
		return a.registerForm.View()
	case ViewProfile:
		return a.profileView.View()
	default:
		return a.loginForm.View()
	}
}
