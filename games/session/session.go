/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session runs one game inside a room: it owns the authoritative
// state, advances it on a fixed tick, publishes snapshots to displays and
// wires room commands into the input aggregator.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Seednode/arcadebox/games/engine"
	"github.com/Seednode/arcadebox/games/input"
	"github.com/Seednode/arcadebox/games/room"
	"github.com/Seednode/arcadebox/games/scores"
)

const maxUsername = 32

var ErrStarted = errors.New("session already started")

type Config struct {
	Variant       string
	TickInterval  time.Duration
	FrameInterval time.Duration
	SubmitTimeout time.Duration

	Logf func(format string, args ...any)
}

// Frame is one published snapshot. Frames are never modified after they are
// published.
type Frame[S engine.State] struct {
	Seq      uint64 `json:"seq"`
	Variant  string `json:"variant"`
	Username string `json:"username,omitempty"`
	State    S      `json:"state"`
}

// GameOver is the payload of a game-over notice.
type GameOver struct {
	Game  uint64 `json:"game"`
	Score int    `json:"score"`
}

// SubmitResult is the payload of submit-ok and submit-failed notices.
type SubmitResult struct {
	Score int    `json:"score"`
	Error string `json:"error,omitempty"`
	Retry bool   `json:"retry,omitempty"`
}

// Runner is the variant-independent view of a session.
type Runner interface {
	Run(ctx context.Context) error
	Close()
	Wait()
}

type Session[S engine.State] struct {
	cfg    Config
	room   *room.Room
	engine engine.Engine[S]
	input  *input.Aggregator
	scores scores.Recorder

	current        atomic.Pointer[Frame[S]]
	resetRequested atomic.Bool
	username       atomic.Value

	mu         sync.Mutex
	game       uint64
	over       bool
	finalScore int
	submitted  bool
	submitting bool
	unregister []func()
	closed     bool

	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New builds a session and publishes the engine's initial state. Nothing
// runs until Run is called.
func New[S engine.State](r *room.Room, eng engine.Engine[S], rec scores.Recorder, cfg Config) *Session[S] {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 150 * time.Millisecond
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 33 * time.Millisecond
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 5 * time.Second
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}

	s := &Session[S]{
		cfg:    cfg,
		room:   r,
		engine: eng,
		input:  input.NewAggregator(),
		scores: rec,
		game:   1,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.username.Store("")

	s.current.Store(&Frame[S]{
		Seq:     1,
		Variant: cfg.Variant,
		State:   eng.Reset(),
	})

	return s
}

// State returns the most recently published snapshot.
func (s *Session[S]) State() Frame[S] {
	return *s.current.Load()
}

func (s *Session[S]) Input() *input.Aggregator {
	return s.input
}

func (s *Session[S]) Username() string {
	return s.username.Load().(string)
}

// Run registers the command handlers and drives the tick and frame loops
// until ctx is done or Close is called. Handlers are always released before
// Run returns.
func (s *Session[S]) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	defer close(s.done)
	defer s.Close()

	if err := s.register(); err != nil {
		return err
	}

	s.cfg.Logf("GAMES: Started %s session in room %s", s.cfg.Variant, s.room.Code)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.tickLoop(ctx)
	})
	g.Go(func() error {
		return s.frameLoop(ctx)
	})

	err := g.Wait()

	s.cfg.Logf("GAMES: Stopped %s session in room %s", s.cfg.Variant, s.room.Code)

	return err
}

// Close stops both loops and unregisters every handler. It may be called
// from any goroutine, any number of times.
func (s *Session[S]) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)

		s.mu.Lock()
		s.closed = true
		unregister := s.unregister
		s.unregister = nil
		s.mu.Unlock()

		for _, u := range unregister {
			u()
		}

		s.input.Clear()

		if s.started.CompareAndSwap(false, true) {
			close(s.done)
		}
	})
}

// Wait blocks until Run has returned, or until Close if Run never started.
func (s *Session[S]) Wait() {
	<-s.done
}

func (s *Session[S]) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-ticker.C:
			s.step()
		}
	}
}

func (s *Session[S]) frameLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	var sent uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stop:
			return nil
		case <-ticker.C:
			f := s.current.Load()
			if f.Seq == sent {
				continue
			}

			err := s.room.Call(room.MsgFrame, f, room.ScopeDisplays)
			if errors.Is(err, room.ErrClosed) {
				return nil
			}
			if err != nil {
				s.cfg.Logf("ERROR: Publishing frame for room %s: %v", s.room.Code, err)
				continue
			}
			sent = f.Seq
		}
	}
}

// step advances the game by one tick. It is only ever called from the tick
// loop, which makes it the single writer of the published state.
func (s *Session[S]) step() {
	cur := s.current.Load()

	var next S
	reset := s.resetRequested.Swap(false)
	if reset {
		s.input.Clear()
		next = s.engine.Reset()
		s.beginGame()
	} else {
		if cur.State.Over() {
			return
		}
		intent := s.input.CurrentIntent(cur.State.Heading())
		next = s.engine.Tick(cur.State, intent)
	}

	s.current.Store(&Frame[S]{
		Seq:      cur.Seq + 1,
		Variant:  s.cfg.Variant,
		Username: s.Username(),
		State:    next,
	})

	if next.Over() {
		s.endGame(next.Points())
	}
}

func (s *Session[S]) beginGame() {
	s.mu.Lock()
	s.game++
	s.over = false
	s.finalScore = 0
	s.submitted = false
	s.mu.Unlock()

	s.cfg.Logf("GAMES: Reset %s game in room %s", s.cfg.Variant, s.room.Code)
}

func (s *Session[S]) endGame(score int) {
	s.mu.Lock()
	s.over = true
	s.finalScore = score
	game := s.game
	s.mu.Unlock()

	s.cfg.Logf("GAMES: Game %d in room %s over with score %d", game, s.room.Code, score)

	err := s.room.Call(room.MsgGameOver, GameOver{Game: game, Score: score}, room.ScopeAll)
	if err != nil && !errors.Is(err, room.ErrClosed) {
		s.cfg.Logf("ERROR: Announcing game over in room %s: %v", s.room.Code, err)
	}
}

func (s *Session[S]) register() error {
	handlers := map[string]room.Handler{
		room.CmdReset:       s.handleReset,
		room.CmdSetUsername: s.handleUsername,
		room.CmdSubmitEmail: s.handleSubmit,
		room.CmdKey:         s.handleKey,
	}
	for _, d := range engine.Directions {
		handlers["move-"+d.String()] = s.remote(d, true)
		handlers["stop-"+d.String()] = s.remote(d, false)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return room.ErrClosed
	}

	for name, h := range handlers {
		s.unregister = append(s.unregister, s.room.Register(name, h))
	}
	s.unregister = append(s.unregister, s.room.OnLeave(s.handleLeave))

	return nil
}

func (s *Session[S]) remote(d engine.Direction, held bool) room.Handler {
	return func(msg room.Message) {
		s.input.SetRemote(msg.From, d, held)
	}
}

// handleLeave releases whatever a departed member was holding, so the
// remaining sources keep steering.
func (s *Session[S]) handleLeave(m *room.Member) {
	s.input.ReleaseRemote(m.ID)
	if m.Role == room.RoleDisplay {
		s.input.ReleaseLocal()
	}
}

func (s *Session[S]) handleKey(msg room.Message) {
	if msg.Role != room.RoleDisplay {
		return
	}

	var ev room.KeyEvent
	if err := decode(msg, &ev); err != nil {
		return
	}

	s.input.SetLocalKey(ev.Key, ev.Pressed)
}

func (s *Session[S]) handleReset(room.Message) {
	s.resetRequested.Store(true)
}

func (s *Session[S]) handleUsername(msg room.Message) {
	name := strings.TrimSpace(msg.Text())
	if name == "" {
		return
	}
	if r := []rune(name); len(r) > maxUsername {
		name = string(r[:maxUsername])
	}

	s.username.Store(name)

	s.cfg.Logf("GAMES: Player %q is playing in room %s", name, s.room.Code)

	if err := s.room.Call(room.MsgUsername, name, room.ScopeDisplays); err != nil && !errors.Is(err, room.ErrClosed) {
		s.cfg.Logf("ERROR: Announcing username in room %s: %v", s.room.Code, err)
	}
}

// handleSubmit records the finished game's score at most once per game, and
// only after the game has ended.
func (s *Session[S]) handleSubmit(msg room.Message) {
	email := strings.TrimSpace(msg.Text())

	s.mu.Lock()
	switch {
	case !s.over:
		s.mu.Unlock()
		s.reply(msg.From, room.MsgSubmitFailed, SubmitResult{Error: "the game is still running"})
		return
	case s.submitted || s.submitting:
		score := s.finalScore
		s.mu.Unlock()
		s.reply(msg.From, room.MsgSubmitFailed, SubmitResult{Score: score, Error: "this score was already submitted"})
		return
	}
	s.submitting = true
	score := s.finalScore
	game := s.game
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SubmitTimeout)
	_, err := s.scores.Submit(ctx, email, score)
	cancel()

	s.mu.Lock()
	s.submitting = false
	if err == nil && s.game == game {
		s.submitted = true
	}
	s.mu.Unlock()

	if err != nil {
		s.cfg.Logf("SCORE: Submission of %d in room %s failed: %v", score, s.room.Code, err)
		s.reply(msg.From, room.MsgSubmitFailed, SubmitResult{Score: score, Error: err.Error(), Retry: true})
		return
	}

	s.cfg.Logf("SCORE: Recorded %d in room %s", score, s.room.Code)

	if err := s.room.Call(room.MsgSubmitOK, SubmitResult{Score: score}, room.ScopeAll); err != nil && !errors.Is(err, room.ErrClosed) {
		s.cfg.Logf("ERROR: Announcing submission in room %s: %v", s.room.Code, err)
	}
}

func (s *Session[S]) reply(memberID, name string, payload any) {
	if memberID == "" {
		return
	}
	if err := s.room.Send(memberID, name, payload); err != nil && !errors.Is(err, room.ErrClosed) {
		s.cfg.Logf("ERROR: Replying to %s in room %s: %v", memberID, s.room.Code, err)
	}
}
