/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"errors"
	"slices"
	"sync"
)

// DefaultRoundCount applies when a directory is built without WithRoundCount.
const DefaultRoundCount = 5

// ErrRoomNotFound is returned by Join for an unknown code.
var ErrRoomNotFound = errors.New("room not found")

type Option func(*Directory)

// WithRoundCount sets the round count given to newly created rooms.
func WithRoundCount(n int) Option {
	return func(d *Directory) {
		if n > 0 {
			d.roundCount = n
		}
	}
}

// WithIdempotentJoin makes Join a no-op for ids already in the room. By
// default a repeated join adds a second entry with the same id.
func WithIdempotentJoin(enabled bool) Option {
	return func(d *Directory) {
		d.idempotentJoin = enabled
	}
}

// Directory maps room codes to rooms. Entries only appear and disappear
// through Create and Remove.
type Directory struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	roundCount     int
	idempotentJoin bool
}

func NewDirectory(opts ...Option) *Directory {
	d := &Directory{
		rooms:      make(map[string]*Room),
		roundCount: DefaultRoundCount,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Create puts a fresh lobby at code, replacing any room already there.
func (d *Directory) Create(code string, host Player) *Room {
	r := &Room{
		Code:         code,
		Players:      []Player{host},
		HostID:       host.ID,
		PromptIDs:    clonePrompts(nil),
		RoundCount:   d.roundCount,
		CurrentRound: 1,
		Status:       StatusLobby,
	}

	d.mu.Lock()
	d.rooms[code] = r
	d.mu.Unlock()

	return r
}

// Join appends p to the room at code.
func (d *Directory) Join(code string, p Player) (*Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	if d.idempotentJoin && slices.ContainsFunc(r.Players, func(existing Player) bool { return existing.ID == p.ID }) {
		return r, nil
	}

	r.Players = append(r.Players, p)

	return r, nil
}

func (d *Directory) Get(code string) (*Room, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.rooms[code]

	return r, ok
}

// Remove deletes the room at code, if any.
func (d *Directory) Remove(code string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.rooms, code)
}

// Codes lists active room codes in sorted order.
func (d *Directory) Codes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	codes := make([]string, 0, len(d.rooms))
	for code := range d.rooms {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	return codes
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.rooms)
}
