package room

import (
	"context"
	"testing"
	"time"
)

func TestManagerCreateAndGet(t *testing.T) {
	created := 0
	m := NewManager(time.Minute, func(*Room) { created++ }, nil)

	r := m.Create()
	if !ValidCode(r.Code) {
		t.Fatalf("generated code %q is not valid", r.Code)
	}
	if got, ok := m.Get(r.Code); !ok || got != r {
		t.Fatalf("Get(%q) did not return the created room", r.Code)
	}
	if again := m.GetOrCreate(r.Code); again != r {
		t.Fatalf("GetOrCreate made a second room for %q", r.Code)
	}
	if m.GetOrCreate("") != nil {
		t.Fatalf("empty code should not create a room")
	}
	if created != 1 {
		t.Fatalf("onCreate ran %d times, want 1", created)
	}
}

func TestManagerReapsIdleRooms(t *testing.T) {
	m := NewManager(time.Minute, nil, nil)

	r := m.Create()
	closed := make(chan struct{})
	r.OnClose(func() { close(closed) })

	if n := m.Reap(time.Now()); n != 0 {
		t.Fatalf("reaped %d fresh rooms", n)
	}
	if n := m.Reap(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Fatalf("reaped %d rooms, want 1", n)
	}

	select {
	case <-closed:
	default:
		t.Fatalf("close hook did not run before Reap returned")
	}
	if m.Len() != 0 {
		t.Fatalf("rooms = %d, want 0", m.Len())
	}
}

func TestManagerRunClosesEverythingOnCancel(t *testing.T) {
	m := NewManager(0, nil, nil)
	a := m.Create()
	b := m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}

	if !a.Closed() || !b.Closed() {
		t.Fatalf("rooms left open after Run returned")
	}
}

func TestValidCode(t *testing.T) {
	tests := map[string]bool{
		"ABC234": true,
		"abc234": false,
		"ABC23":  false,
		"ABC10O": false,
	}
	for code, want := range tests {
		if got := ValidCode(code); got != want {
			t.Errorf("ValidCode(%q) = %v, want %v", code, got, want)
		}
	}
}
