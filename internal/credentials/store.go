// Package credentials persists the bearer credential used for privileged
// hosts, sealed with a passphrase.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/iconidentify/vidgrab/internal/config"
	"github.com/iconidentify/vidgrab/internal/domain"
	"github.com/iconidentify/vidgrab/pkg/crypto"
)

// record is the sealed payload.
type record struct {
	Token     string    `json:"token"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status describes the stored credential without revealing it.
type Status struct {
	Authenticated bool       `json:"authenticated"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Store loads and persists one bearer token.
type Store struct {
	path       string
	passphrase string
	sealer     *crypto.Sealer
	logger     *slog.Logger

	mu       sync.Mutex
	cached   *record
	cachedAt time.Time // modification time of the file cached was read from
}

// NewStore creates a credential store. sealer may be nil to use the
// default key derivation cost.
func NewStore(cfg config.CredentialsConfig, sealer *crypto.Sealer, logger *slog.Logger) *Store {
	if sealer == nil {
		sealer = crypto.NewSealer(crypto.KDFParams{})
	}
	return &Store{
		path:       cfg.Path,
		passphrase: cfg.Passphrase,
		sealer:     sealer,
		logger:     logger,
	}
}

// Token returns the stored bearer token, or an error wrapping
// domain.ErrNotAuthenticated when none is usable.
func (s *Store) Token(ctx context.Context) (string, error) {
	rec, err := s.load()
	if err != nil {
		return "", err
	}
	return rec.Token, nil
}

// Status reports whether a usable credential is stored.
func (s *Store) Status(ctx context.Context) Status {
	rec, err := s.load()
	if err != nil {
		return Status{}
	}
	updated := rec.UpdatedAt
	return Status{Authenticated: true, UpdatedAt: &updated}
}

// Save seals token and writes it atomically.
func (s *Store) Save(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token is empty")
	}
	if s.passphrase == "" {
		return fmt.Errorf("save credential: %w", crypto.ErrEmptyPassword)
	}

	rec := record{Token: token, UpdatedAt: time.Now().UTC()}
	plaintext, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext, s.passphrase)
	if err != nil {
		return fmt.Errorf("seal credential: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0600); err != nil {
		return fmt.Errorf("write credential: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace credential: %w", err)
	}

	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	s.logger.Info("credential saved", "path", s.path)
	return nil
}

// Clear removes the stored credential. A missing file is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credential: %w", err)
	}
	s.logger.Info("credential cleared", "path", s.path)
	return nil
}

// load returns the cached record, re-reading the file when it changed.
func (s *Store) load() (*record, error) {
	if s.path == "" || s.passphrase == "" {
		return nil, domain.ErrNotAuthenticated
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("%w: stat credential: %v", domain.ErrNotAuthenticated, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && info.ModTime().Equal(s.cachedAt) {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read credential: %v", domain.ErrNotAuthenticated, err)
	}
	plaintext, err := s.sealer.Open(data, s.passphrase)
	if err != nil {
		if errors.Is(err, crypto.ErrOpenFailed) {
			s.logger.Warn("credential could not be unsealed", "path", s.path)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrNotAuthenticated, err)
	}

	var rec record
	if err := json.Unmarshal(plaintext, &rec); err != nil || rec.Token == "" {
		return nil, fmt.Errorf("%w: malformed credential", domain.ErrNotAuthenticated)
	}

	s.cached = &rec
	s.cachedAt = info.ModTime()
	return &rec, nil
}
