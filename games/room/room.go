/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package room holds the game state: players, rooms, and the directory
// mapping room codes to rooms. Nothing here knows about transports.
package room

import (
	"encoding/json"
	"slices"
)

type Status string

const (
	StatusLobby   Status = "lobby"
	StatusPlaying Status = "playing"
	StatusIntro   Status = "intro"
)

// Outcome names what an operation did. Callers outside the package treat
// everything except Applied as "nothing happens".
type Outcome int

const (
	Applied Outcome = iota
	RoomMissing
	PlayerMissing
	Invalid
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case RoomMissing:
		return "room_missing"
	case PlayerMissing:
		return "player_missing"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Room is one game session. It is not safe for concurrent use; the
// directory's owner serializes access.
type Room struct {
	Code         string
	Players      []Player
	HostID       string
	PromptIDs    []json.RawMessage
	PromptGen    json.RawMessage
	RoundCount   int
	CurrentRound int
	Status       Status
}

// StartOptions configures a new round sequence. Zero values for RoundCount
// and HostID keep the room's current settings.
type StartOptions struct {
	PromptIDs  []json.RawMessage
	PromptGen  json.RawMessage
	RoundCount int
	HostID     string
}

// Snapshot is a copy of a room safe to hand to other goroutines.
type Snapshot struct {
	Code         string            `json:"code"`
	Players      []Player          `json:"players"`
	HostID       string            `json:"hostId"`
	PromptIDs    []json.RawMessage `json:"promptIds"`
	PromptGen    json.RawMessage   `json:"promptGen,omitempty"`
	RoundCount   int               `json:"roundCount"`
	CurrentRound int               `json:"currentRound"`
	Status       Status            `json:"status"`
}

// RoundResult is what AdvanceRound produced.
type RoundResult struct {
	Tally        map[string]int
	Players      []Player
	CurrentRound int
	IsGameOver   bool
}

// Start begins a round sequence. The length of PromptIDs is not checked
// against the round count.
func (r *Room) Start(opts StartOptions) {
	r.Status = StatusPlaying
	r.PromptIDs = clonePrompts(opts.PromptIDs)
	r.PromptGen = opts.PromptGen
	if opts.RoundCount > 0 {
		r.RoundCount = opts.RoundCount
	}
	if opts.HostID != "" {
		r.HostID = opts.HostID
	}
	r.CurrentRound = 1
}

// Vote records a vote for the first player with the given id and reports
// whether every player has now voted. Unknown ids leave the room unchanged
// but allVoted is still computed.
func (r *Room) Vote(playerID string, v Vote) (Outcome, bool) {
	outcome := PlayerMissing

	i := slices.IndexFunc(r.Players, func(p Player) bool { return p.ID == playerID })
	if i >= 0 {
		r.Players[i].Vote = v
		r.Players[i].HasVoted = true
		outcome = Applied
	}

	return outcome, r.AllVoted()
}

func (r *Room) AllVoted() bool {
	for _, p := range r.Players {
		if !p.HasVoted {
			return false
		}
	}

	return true
}

// AdvanceRound scores the current votes, clears them, and moves to the next
// round. Game over is reported but not enforced.
func (r *Room) AdvanceRound() RoundResult {
	counts := Tally(r.Players)

	r.Players = score(r.Players, counts)
	r.CurrentRound++

	return RoundResult{
		Tally:        counts,
		Players:      clonePlayers(r.Players),
		CurrentRound: r.CurrentRound,
		IsGameOver:   r.IsGameOver(),
	}
}

func (r *Room) IsGameOver() bool {
	return r.CurrentRound > r.RoundCount
}

// Restart swaps in the caller's players and prompts as given.
func (r *Room) Restart(players []Player, promptIDs []json.RawMessage) {
	r.Players = clonePlayers(players)
	r.PromptIDs = clonePrompts(promptIDs)
	r.CurrentRound = 1
	r.Status = StatusIntro
}

func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		Code:         r.Code,
		Players:      clonePlayers(r.Players),
		HostID:       r.HostID,
		PromptIDs:    clonePrompts(r.PromptIDs),
		PromptGen:    r.PromptGen,
		RoundCount:   r.RoundCount,
		CurrentRound: r.CurrentRound,
		Status:       r.Status,
	}
}

func (r *Room) PlayerList() []Player {
	return clonePlayers(r.Players)
}

func clonePrompts(ids []json.RawMessage) []json.RawMessage {
	if ids == nil {
		return []json.RawMessage{}
	}

	return slices.Clone(ids)
}
