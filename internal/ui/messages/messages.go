package messages

import (
	"github.com/mberg/authdeck/internal/session"
	"github.com/mberg/authdeck/internal/store"
)

// View transition messages.
type (
	OpenLoginMsg    struct{}
	OpenRegisterMsg struct{}
	OpenProfileMsg  struct{}
)

// Data messages.
type (
	SessionReadMsg struct {
		Session session.Session
		Err     error
	}

	LoginResultMsg struct {
		Session session.Session
		Err     error
	}

	RegisterResultMsg struct {
		Session session.Session
		Err     error
	}

	LogoutResultMsg struct {
		Err error
	}

	ProfileLoadedMsg struct {
		User    *store.Identity
		Session session.Session
		Err     error
	}
)
