package scores

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedClock(start time.Time) func() time.Time {
	t := start
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestSubmitThenTopOne(t *testing.T) {
	s, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := s.Submit(context.Background(), "a@b.com", 42); err != nil {
		t.Fatalf("submit: %v", err)
	}

	top, err := s.Top(context.Background(), 1)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("top returned %d entries, want 1", len(top))
	}
	if top[0].Score != 42 || top[0].Email != "a@b.com" {
		t.Fatalf("unexpected entry %+v", top[0])
	}
}

func TestTopOrdering(t *testing.T) {
	s, _ := Open("")
	s.now = fixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	submissions := []struct {
		email string
		score int
	}{
		{"first@x.io", 5},
		{"second@x.io", 9},
		{"third@x.io", 5},
		{"fourth@x.io", 1},
	}
	for _, sub := range submissions {
		if _, err := s.Submit(ctx, sub.email, sub.score); err != nil {
			t.Fatalf("submit %s: %v", sub.email, err)
		}
	}

	top, _ := s.Top(ctx, 10)
	want := []string{"second@x.io", "first@x.io", "third@x.io", "fourth@x.io"}
	if len(top) != len(want) {
		t.Fatalf("top returned %d entries, want %d", len(top), len(want))
	}
	for i, email := range want {
		if top[i].Email != email {
			t.Fatalf("rank %d = %s, want %s", i+1, top[i].Email, email)
		}
	}

	three, _ := s.Top(ctx, 3)
	if len(three) != 3 {
		t.Fatalf("top(3) returned %d", len(three))
	}
	if none, _ := s.Top(ctx, 0); len(none) != 0 {
		t.Fatalf("top(0) returned %d", len(none))
	}
}

func TestSubmitValidation(t *testing.T) {
	s, _ := Open("")
	ctx := context.Background()

	tests := []struct {
		email string
		score int
		want  error
	}{
		{"", 1, ErrInvalidEmail},
		{"not-an-email", 1, ErrInvalidEmail},
		{"Ada <ada@x.io>", 1, ErrInvalidEmail},
		{"ada@x.io", -1, ErrNegativeScore},
	}
	for _, tt := range tests {
		if _, err := s.Submit(ctx, tt.email, tt.score); !errors.Is(err, tt.want) {
			t.Errorf("Submit(%q, %d) err = %v, want %v", tt.email, tt.score, err, tt.want)
		}
	}
	if s.Len() != 0 {
		t.Fatalf("invalid submissions were stored")
	}

	e, err := s.Submit(ctx, "  Ada@X.io ", 0)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if e.Email != "ada@x.io" {
		t.Fatalf("email = %q, want normalised", e.Email)
	}
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores", "highscores.msgpack")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	first, err := s.Submit(ctx, "a@b.com", 7)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(ctx, "c@d.com", 3); err != nil {
		t.Fatalf("submit: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	top, _ := reopened.Top(ctx, 10)
	if len(top) != 2 {
		t.Fatalf("reloaded %d entries, want 2", len(top))
	}
	if top[0].ID != first.ID || !top[0].CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("reloaded %+v, want %+v", top[0], first)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.msgpack")
	if err := os.WriteFile(path, []byte{0xc1}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCancelledContext(t *testing.T) {
	s, _ := Open("")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Submit(ctx, "a@b.com", 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("submit err = %v, want context.Canceled", err)
	}
}
