package api

import (
	"encoding/json"
	"strings"

	"github.com/mberg/authdeck/internal/store"
)

// AuthResponse is the success body of the register, login, and refresh calls.
// RefreshToken is optional; the service may not rotate it on refresh.
type AuthResponse struct {
	Message      string         `json:"message"`
	User         store.Identity `json:"user"`
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
}

// VerifyResponse reports whether the presented token is still good.
type VerifyResponse struct {
	Valid bool           `json:"valid"`
	User  store.Identity `json:"user"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// errorBody is the service's error envelope.
type errorBody struct {
	Message    errorMessage `json:"message"`
	StatusCode int          `json:"statusCode"`
	Error      string       `json:"error"`
}

// errorMessage arrives as either a string or an array of strings depending on
// the endpoint, so it decodes both.
type errorMessage []string

func (m *errorMessage) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*m = errorMessage{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*m = errorMessage(many)
	return nil
}

func (m errorMessage) String() string {
	return strings.Join(m, "; ")
}
