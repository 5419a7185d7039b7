package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mberg/authdeck/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func authResponse(token, refresh string) AuthResponse {
	return AuthResponse{
		Message: "ok",
		User: store.Identity{
			ID:        "u1",
			Email:     "user@example.com",
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Token:        token,
		RefreshToken: refresh,
	}
}

func TestDecorateAttachesBearerToken(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1"}, store.Identity{ID: "u1"}))

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, store.Identity{ID: "u1", Email: "user@example.com"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer T1", gotAuth)
}

func TestNoTokenSendsUnauthenticated(t *testing.T) {
	st := testStore(t)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, VerifyResponse{Valid: false})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Verify(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestRefreshAndRetryExactlyOnce(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	var refreshCalls, profileCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileCalls, 1)
		if r.Header.Get("Authorization") != "Bearer T2" {
			writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired", "statusCode": 401})
			return
		}
		writeJSON(t, w, http.StatusOK, store.Identity{ID: "u1", Email: "user@example.com"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		var req refreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "R1", req.RefreshToken)
		writeJSON(t, w, http.StatusOK, authResponse("T2", "R2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	user, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&profileCalls))

	cred := st.Credential()
	assert.Equal(t, "T2", cred.AccessToken)
	assert.Equal(t, "R2", cred.RefreshToken)
}

func TestRetriedCallIsNotRefreshedTwice(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	var refreshCalls, profileCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&profileCalls, 1)
		// Rejects even the refreshed token.
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "nope", "statusCode": 401})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(t, w, http.StatusOK, authResponse("T2", "R2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Profile(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)

	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&profileCalls))
}

func TestLoginRejectionIsNeverRefreshed(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "Invalid credentials", "statusCode": 401})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		writeJSON(t, w, http.StatusOK, authResponse("T2", "R2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)

	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
	assert.Equal(t, "Invalid credentials", credErr.Message)

	assert.Zero(t, atomic.LoadInt32(&refreshCalls))
	// The stored credential is untouched by a failed login.
	assert.Equal(t, "T1", st.Credential().AccessToken)
}

func TestFailedRefreshTearsDownSession(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired", "statusCode": 401})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "refresh token expired", "statusCode": 401})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	expired := false
	c.OnSessionExpired(func() { expired = true })

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.True(t, expired)
	assert.Equal(t, store.Credential{}, st.Credential())
	assert.Nil(t, st.Identity())
}

func TestUnauthorizedWithoutRefreshTokenTearsDown(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1"}, store.Identity{ID: "u1"}))

	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired", "statusCode": 401})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	expired := false
	c.OnSessionExpired(func() { expired = true })

	_, err := c.Profile(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.True(t, expired)
	assert.Zero(t, atomic.LoadInt32(&refreshCalls))
	assert.Equal(t, store.Credential{}, st.Credential())
}

func TestConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	var refreshCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired", "statusCode": 401})
			return
		}
		writeJSON(t, w, http.StatusOK, store.Identity{ID: "u1", Email: "user@example.com"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshCalls, 1)
		// Hold the exchange open long enough for every caller to hit its 401.
		time.Sleep(100 * time.Millisecond)
		writeJSON(t, w, http.StatusOK, authResponse("T2", "R2"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Profile(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshCalls))
	assert.Equal(t, "T2", st.Credential().AccessToken)
}

func TestTransportFailureIsTyped(t *testing.T) {
	st := testStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Verify(context.Background())
	require.Error(t, err)

	var transportErr *TransportError
	assert.ErrorAs(t, err, &transportErr)
}

func TestErrorMessageDecodesStringAndArray(t *testing.T) {
	var single errorBody
	require.NoError(t, json.Unmarshal([]byte(`{"message":"bad password","statusCode":401}`), &single))
	assert.Equal(t, "bad password", single.Message.String())

	var many errorBody
	require.NoError(t, json.Unmarshal([]byte(`{"message":["email invalid","password short"],"statusCode":400}`), &many))
	assert.Equal(t, "email invalid; password short", many.Message.String())
}

func TestRefreshKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.Set(store.Credential{AccessToken: "T1", RefreshToken: "R1"}, store.Identity{ID: "u1"}))

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer T2" {
			writeJSON(t, w, http.StatusUnauthorized, map[string]interface{}{"message": "token expired", "statusCode": 401})
			return
		}
		writeJSON(t, w, http.StatusOK, store.Identity{ID: "u1"})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, authResponse("T2", ""))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL, st, zap.NewNop())
	_, err := c.Profile(context.Background())
	require.NoError(t, err)

	cred := st.Credential()
	assert.Equal(t, "T2", cred.AccessToken)
	assert.Equal(t, "R1", cred.RefreshToken)
}
