/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package scores records completed games and serves the leaderboard.
package scores

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultTop is the leaderboard length shown on the landing page.
const DefaultTop = 10

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrNegativeScore = errors.New("score must not be negative")
)

// Entry is one submitted score. Entries are never modified after creation.
type Entry struct {
	ID        uuid.UUID `json:"id" msgpack:"id"`
	Email     string    `json:"email" msgpack:"email"`
	Score     int       `json:"score" msgpack:"score"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Recorder is the contract a game session needs from the leaderboard.
type Recorder interface {
	Submit(ctx context.Context, email string, score int) (Entry, error)
	Top(ctx context.Context, n int) ([]Entry, error)
}

// Store keeps entries in memory and, when a path is set, mirrors them to a
// msgpack file after every submission.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries []Entry
	now     func() time.Time
}

// Open loads the store at path. An empty path gives a memory-only store;
// a missing file starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now}
	if path == "" {
		return s, nil
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, err
	}

	if len(b) == 0 {
		return s, nil
	}

	if err := msgpack.Unmarshal(b, &s.entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return s, nil
}

// Submit validates and appends a new entry.
func (s *Store) Submit(ctx context.Context, email string, score int) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return Entry{}, err
	}
	if score < 0 {
		return Entry{}, ErrNegativeScore
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		ID:        uuid.New(),
		Email:     email,
		Score:     score,
		CreatedAt: s.now().UTC(),
	}

	entries := append(s.entries, e)
	if err := s.saveLocked(entries); err != nil {
		return Entry{}, err
	}
	s.entries = entries

	return e, nil
}

// Top returns up to n entries, highest score first, earliest entry first
// among equal scores.
func (s *Store) Top(ctx context.Context, n int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Entry{}, nil
	}

	s.mu.RLock()
	ranked := make([]Entry, len(s.entries))
	copy(ranked, s.entries)
	s.mu.RUnlock()

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

func (s *Store) saveLocked(entries []Entry) error {
	if s.path == "" {
		return nil
	}

	b, err := msgpack.Marshal(entries)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}

	return os.Rename(tmp, s.path)
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(addr.Address), nil
}
