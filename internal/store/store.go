package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Slot keys in the session table. The three slots are written and cleared
// together so a reader never observes a token without its identity.
const (
	slotToken        = "token"
	slotRefreshToken = "refresh_token"
	slotUser         = "user"
)

// Credential is the stored bearer token pair. An empty AccessToken means
// "unauthenticated". RefreshToken is optional; the service may not issue one.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// Identity is the last-known authenticated principal, cached alongside the
// credential so the UI can render a name before any round-trip completes.
type Identity struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists the credential and identity slots across runs.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates or opens the session database and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("opening session database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating session database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Credential returns the stored token pair. Missing slots read as empty
// strings; Credential never fails.
func (s *Store) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Credential{
		AccessToken:  s.slot(slotToken),
		RefreshToken: s.slot(slotRefreshToken),
	}
}

// Identity returns the stored identity, or nil when the slot is absent or the
// stored value does not parse. Corrupt state reads as "no identity".
func (s *Store) Identity() *Identity {
	s.mu.Lock()
	raw := s.slot(slotUser)
	s.mu.Unlock()

	if raw == "" {
		return nil
	}
	var id Identity
	if err := json.Unmarshal([]byte(raw), &id); err != nil {
		return nil
	}
	if id.ID == "" && id.Email == "" {
		return nil
	}
	return &id
}

// Set writes the credential and identity in one transaction.
func (s *Store) Set(cred Credential, user Identity) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding identity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for key, value := range map[string]string{
		slotToken:        cred.AccessToken,
		slotRefreshToken: cred.RefreshToken,
		slotUser:         string(raw),
	} {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO session (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("writing %s slot: %w", key, err)
		}
	}
	return tx.Commit()
}

// Clear removes all slots in one transaction. After Clear the store reads as
// fully unauthenticated; there is no intermediate state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM session`); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// slot reads one key; callers hold s.mu.
func (s *Store) slot(key string) string {
	var value string
	err := s.db.QueryRow(`SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return ""
	}
	return value
}
