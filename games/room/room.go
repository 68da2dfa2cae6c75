/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room implements the shared channel between one game display and
// its controllers: role assignment, named message handlers and broadcast.
package room

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleDisplay    Role = "display"
	RoleController Role = "controller"
)

func (r Role) Valid() bool {
	return r == RoleDisplay || r == RoleController
}

// Scope selects which members receive a call.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeDisplays
	ScopeControllers
)

func (s Scope) includes(r Role) bool {
	switch s {
	case ScopeDisplays:
		return r == RoleDisplay
	case ScopeControllers:
		return r == RoleController
	}
	return true
}

const sendBuffer = 64

var (
	ErrClosed       = errors.New("room is closed")
	ErrInvalidRole  = errors.New("invalid role")
	ErrDisplayTaken = errors.New("room already has a display")
	ErrEmptyName    = errors.New("message name is empty")
)

// Handler receives a named message. It runs on the sender's goroutine and
// must not block.
type Handler func(Message)

// JoinConfig describes a joining member. An empty Role asks for the display
// seat, which is refused while another display is connected.
type JoinConfig struct {
	Role Role
	Name string
}

type Room struct {
	Code string

	mu          sync.Mutex
	members     map[string]*Member
	handlers    map[string]map[uint64]Handler
	nextHandler uint64
	leaveHooks  map[uint64]func(*Member)
	closers     []func()
	closing     bool
	closed      bool
	createdAt   time.Time
	lastActive  time.Time

	logf func(format string, args ...any)
}

func New(code string, logf func(format string, args ...any)) *Room {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	now := time.Now()
	return &Room{
		Code:       code,
		members:    make(map[string]*Member),
		handlers:   make(map[string]map[uint64]Handler),
		leaveHooks: make(map[uint64]func(*Member)),
		createdAt:  now,
		lastActive: now,
		logf:       logf,
	}
}

// Join adds a member and assigns its role.
func (r *Room) Join(cfg JoinConfig) (*Member, error) {
	if cfg.Role != "" && !cfg.Role.Valid() {
		return nil, ErrInvalidRole
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	role := cfg.Role
	if role == "" {
		if r.countLocked(RoleDisplay) > 0 {
			return nil, ErrDisplayTaken
		}
		role = RoleDisplay
	}

	m := &Member{
		ID:   uuid.NewString(),
		Role: role,
		Name: cfg.Name,
		room: r,
		send: make(chan Message, sendBuffer),
	}
	r.members[m.ID] = m
	r.lastActive = time.Now()

	r.logf("GAMES: %s %s joined room %s", role, m.ID, r.Code)

	return m, nil
}

// Register installs h for messages called name. The returned func removes
// it; calling it more than once is harmless.
func (r *Room) Register(name string, h Handler) (unregister func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextHandler++
	id := r.nextHandler

	if r.handlers[name] == nil {
		r.handlers[name] = make(map[uint64]Handler)
	}
	r.handlers[name][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			delete(r.handlers[name], id)
			if len(r.handlers[name]) == 0 {
				delete(r.handlers, name)
			}
		})
	}
}

// HandlerCount reports how many handlers are registered for name, or for
// every name when name is empty.
func (r *Room) HandlerCount(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name != "" {
		return len(r.handlers[name])
	}

	n := 0
	for _, hs := range r.handlers {
		n += len(hs)
	}
	return n
}

// Call broadcasts a message from the room host to every member in scope.
// Host calls are not fed back into registered handlers.
func (r *Room) Call(name string, payload any, scope Scope) error {
	msg, err := NewMessage(name, payload)
	if err != nil {
		return err
	}

	return r.deliver(nil, msg, scope)
}

func (r *Room) deliver(from *Member, msg Message, scope Scope) error {
	if msg.Name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	var (
		handlers []Handler
		dropped  []*Member
	)
	if from != nil {
		msg.From = from.ID
		msg.Role = from.Role
		r.lastActive = time.Now()

		for _, h := range r.handlers[msg.Name] {
			handlers = append(handlers, h)
		}
	}

	for id, m := range r.members {
		if from != nil && id == from.ID {
			continue
		}
		if !scope.includes(m.Role) {
			continue
		}

		select {
		case m.send <- msg:
		default:
			r.logf("GAMES: Dropping %s %s from room %s (send buffer full)", m.Role, m.ID, r.Code)
			if r.removeLocked(m) {
				dropped = append(dropped, m)
			}
		}
	}

	r.mu.Unlock()

	r.notifyLeft(dropped...)

	for _, h := range handlers {
		h(msg)
	}

	return nil
}

// Send delivers a message to one member only.
func (r *Room) Send(memberID, name string, payload any) error {
	msg, err := NewMessage(name, payload)
	if err != nil {
		return err
	}

	r.mu.Lock()

	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}

	m, ok := r.members[memberID]
	if !ok {
		r.mu.Unlock()
		return nil
	}

	dropped := false
	select {
	case m.send <- msg:
	default:
		r.logf("GAMES: Dropping %s %s from room %s (send buffer full)", m.Role, m.ID, r.Code)
		dropped = r.removeLocked(m)
	}

	r.mu.Unlock()

	if dropped {
		r.notifyLeft(m)
	}

	return nil
}

// Count reports the number of members with the given role, or all members
// when role is empty.
func (r *Room) Count(role Role) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.countLocked(role)
}

func (r *Room) countLocked(role Role) int {
	if role == "" {
		return len(r.members)
	}

	n := 0
	for _, m := range r.members {
		if m.Role == role {
			n++
		}
	}
	return n
}

func (r *Room) LastActive() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActive
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Touch marks the room as active.
func (r *Room) Touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

// OnLeave calls fn after a member leaves or is dropped. Members removed
// because the room closed are not reported. The returned func removes fn.
func (r *Room) OnLeave(fn func(*Member)) (unregister func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextHandler++
	id := r.nextHandler
	r.leaveHooks[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.leaveHooks, id)
			r.mu.Unlock()
		})
	}
}

func (r *Room) notifyLeft(members ...*Member) {
	if len(members) == 0 {
		return
	}

	r.mu.Lock()
	hooks := make([]func(*Member), 0, len(r.leaveHooks))
	for _, fn := range r.leaveHooks {
		hooks = append(hooks, fn)
	}
	r.mu.Unlock()

	for _, m := range members {
		for _, fn := range hooks {
			fn(m)
		}
	}
}

// OnClose queues fn to run when the room closes. If the room is already
// closed fn runs immediately.
func (r *Room) OnClose(fn func()) {
	r.mu.Lock()
	if !r.closing {
		r.closers = append(r.closers, fn)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	fn()
}

// Close runs the close hooks, then disconnects every member. It is safe to
// call more than once.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return
	}
	r.closing = true
	closers := r.closers
	r.closers = nil
	r.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for _, m := range r.members {
		r.removeLocked(m)
	}
}

func (r *Room) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

func (r *Room) removeLocked(m *Member) bool {
	if _, ok := r.members[m.ID]; !ok {
		return false
	}
	delete(r.members, m.ID)
	close(m.send)

	return true
}

// Member is one connected device.
type Member struct {
	ID   string
	Role Role
	Name string

	room *Room
	send chan Message
}

// Messages yields everything addressed to this member. It is closed when the
// member leaves or is dropped.
func (m *Member) Messages() <-chan Message {
	return m.send
}

// Call sends a named message from this member to the room. Registered
// handlers see it, as do the other members in scope.
func (m *Member) Call(name string, payload json.RawMessage, scope Scope) error {
	return m.room.deliver(m, Message{Name: name, Payload: payload}, scope)
}

// Leave removes the member from its room.
func (m *Member) Leave() {
	r := m.room

	r.mu.Lock()
	left := r.removeLocked(m)
	if left {
		r.logf("GAMES: %s %s left room %s", m.Role, m.ID, r.Code)
		r.lastActive = time.Now()
	}
	r.mu.Unlock()

	if left {
		r.notifyLeft(m)
	}
}
