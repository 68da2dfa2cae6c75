/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package input merges keyboard edges from the display and remote controller
// commands into a single requested direction.
package input

import (
	"strings"
	"sync"

	"github.com/Seednode/arcadebox/games/engine"
)

var keyDirections = map[string]engine.Direction{
	"ArrowUp":    engine.Up,
	"w":          engine.Up,
	"ArrowDown":  engine.Down,
	"s":          engine.Down,
	"ArrowLeft":  engine.Left,
	"a":          engine.Left,
	"ArrowRight": engine.Right,
	"d":          engine.Right,
}

// normalizeKey folds single letters to lower case, so a key pressed with
// Shift and released without it is the same key.
func normalizeKey(key string) string {
	if len(key) == 1 {
		return strings.ToLower(key)
	}
	return key
}

// KeyDirection reports which direction a keyboard key maps to.
func KeyDirection(key string) (engine.Direction, bool) {
	d, ok := keyDirections[normalizeKey(key)]
	return d, ok
}

// Aggregator holds the held state of every input source. All flags are
// last-writer-wins; there is no command queue. Remote flags are kept per
// source so one controller going away releases only what it held.
type Aggregator struct {
	mu     sync.Mutex
	keys   map[string]bool
	remote map[string]map[engine.Direction]bool
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		keys:   make(map[string]bool),
		remote: make(map[string]map[engine.Direction]bool),
	}
}

// SetLocalKey records a key edge. Unrecognized keys are ignored and
// reported as false.
func (a *Aggregator) SetLocalKey(key string, pressed bool) bool {
	key = normalizeKey(key)
	if _, ok := keyDirections[key]; !ok {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if pressed {
		a.keys[key] = true
	} else {
		delete(a.keys, key)
	}

	return true
}

// SetRemote sets source's flag for d. Repeating a start is a no-op, as is
// stopping a direction that was never started.
func (a *Aggregator) SetRemote(source string, d engine.Direction, held bool) {
	if !d.Valid() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	flags := a.remote[source]
	if held {
		if flags == nil {
			flags = make(map[engine.Direction]bool, 4)
			a.remote[source] = flags
		}
		flags[d] = true
		return
	}

	delete(flags, d)
	if len(flags) == 0 {
		delete(a.remote, source)
	}
}

// Remote reports whether any source holds d.
func (a *Aggregator) Remote(d engine.Direction) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, flags := range a.remote {
		if flags[d] {
			return true
		}
	}
	return false
}

// ReleaseRemote drops every flag held by source.
func (a *Aggregator) ReleaseRemote(source string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.remote, source)
}

// ReleaseLocal drops every held keyboard key.
func (a *Aggregator) ReleaseLocal() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.keys)
}

// Clear releases every held key and remote flag.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.keys)
	clear(a.remote)
}

// CurrentIntent takes one snapshot of all sources and resolves it against the
// last committed heading. Sources are OR-ed per direction and reduced per axis.
// When both axes are active the one perpendicular to committed wins. A result
// that is empty or reverses committed yields committed.
func (a *Aggregator) CurrentIntent(committed engine.Direction) engine.Direction {
	a.mu.Lock()
	held := make(map[engine.Direction]bool, 4)
	for key := range a.keys {
		held[keyDirections[key]] = true
	}
	for _, flags := range a.remote {
		for d := range flags {
			held[d] = true
		}
	}
	a.mu.Unlock()

	dx := flag(held[engine.Right]) - flag(held[engine.Left])
	dy := flag(held[engine.Down]) - flag(held[engine.Up])

	var requested engine.Direction
	switch {
	case dx != 0 && dy != 0:
		if committed.Horizontal() {
			requested = engine.Direction{DY: dy}
		} else {
			requested = engine.Direction{DX: dx}
		}
	case dx != 0:
		requested = engine.Direction{DX: dx}
	case dy != 0:
		requested = engine.Direction{DY: dy}
	default:
		return committed
	}

	if requested.IsOpposite(committed) {
		return committed
	}

	return requested
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}
