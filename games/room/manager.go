/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the length of generated room codes.
const CodeLength = 6

// Manager holds rooms by code. Rooms idle for longer than the idle timeout
// are closed by Run.
type Manager struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	idleTimeout time.Duration
	onCreate    func(*Room)

	logf func(format string, args ...any)
}

// NewManager returns a manager. onCreate, if set, runs once for every new
// room before it is handed out.
func NewManager(idleTimeout time.Duration, onCreate func(*Room), logf func(format string, args ...any)) *Manager {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Manager{
		rooms:       make(map[string]*Room),
		idleTimeout: idleTimeout,
		onCreate:    onCreate,
		logf:        logf,
	}
}

// Get returns an existing room.
func (m *Manager) Get(code string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[code]
	return r, ok
}

// GetOrCreate returns the room for code, creating it if needed. It returns
// nil for an empty code.
func (m *Manager) GetOrCreate(code string) *Room {
	if code == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[code]; ok {
		return r
	}

	return m.createLocked(code)
}

// Create makes a room under a fresh random code.
func (m *Manager) Create() *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		code := generateCode(CodeLength)
		if _, exists := m.rooms[code]; exists {
			continue
		}
		return m.createLocked(code)
	}
}

func (m *Manager) createLocked(code string) *Room {
	r := New(code, m.logf)
	m.rooms[code] = r

	if m.onCreate != nil {
		m.onCreate(r)
	}

	m.logf("GAMES: Created room %s", code)

	return r
}

// Remove closes and forgets the room. The room's close hooks have finished
// by the time Remove returns.
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	r, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if ok {
		r.Close()
		m.logf("GAMES: Closed room %s", code)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.rooms)
}

// Reap closes every room whose last activity is before now minus the idle
// timeout, and returns how many were closed.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	var stale []string
	for code, r := range m.rooms {
		if r.LastActive().Before(cutoff) {
			stale = append(stale, code)
		}
	}
	m.mu.Unlock()

	for _, code := range stale {
		m.Remove(code)
	}

	return len(stale)
}

// Run reaps idle rooms until ctx is done, then closes whatever is left.
func (m *Manager) Run(ctx context.Context) error {
	defer m.CloseAll()

	if m.idleTimeout <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(m.idleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := m.Reap(now); n > 0 {
				m.logf("GAMES: Reaped %d idle room(s)", n)
			}
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	codes := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		codes = append(codes, code)
	}
	m.mu.Unlock()

	for _, code := range codes {
		m.Remove(code)
	}
}

func generateCode(n int) string {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}

// ValidCode reports whether code could have been produced by the manager.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		found := false
		for j := 0; j < len(codeChars); j++ {
			if code[i] == codeChars[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
