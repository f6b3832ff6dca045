/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Seednode/oddball/games/room"
)

// Inbound event types.
const (
	EventCreateGame  = "create-game"
	EventJoinGame    = "join-game"
	EventStartGame   = "start-game"
	EventSubmitVote  = "submit-vote"
	EventNextRound   = "next-round"
	EventRestartGame = "restart-game"
	EventEndGame     = "end-game"
)

// Outbound broadcast types. restart-game and end-game reuse the inbound names.
const (
	EventPlayerList  = "player-list"
	EventGameStarted = "game-started"
	EventPlayerVoted = "player-voted"
	EventAllVoted    = "all-voted"
	EventRoundData   = "round-data"
	EventAck         = "ack"
)

// GameNotFound is the message clients get when joining an unknown code.
const GameNotFound = "Game not found"

var ErrInvalidEvent = errors.New("invalid event")

// Envelope is the part of every client frame read before routing.
type Envelope struct {
	Type string          `json:"type"`
	Ack  json.RawMessage `json:"ack,omitempty"`
}

type CreateGame struct {
	Player   room.Player `json:"player"`
	GameCode string      `json:"gameCode"`
}

func (e CreateGame) Validate() error {
	return validateMembership(e.GameCode, e.Player)
}

type JoinGame struct {
	Player   room.Player `json:"player"`
	GameCode string      `json:"gameCode"`
}

func (e JoinGame) Validate() error {
	return validateMembership(e.GameCode, e.Player)
}

type StartGame struct {
	GameCode   string            `json:"gameCode"`
	PromptIDs  []json.RawMessage `json:"promptIds"`
	PromptGen  json.RawMessage   `json:"promptGen,omitempty"`
	RoundCount int               `json:"roundCount,omitempty"`
	HostID     room.ID           `json:"hostId,omitempty"`
}

func (e StartGame) Validate() error {
	if e.RoundCount < 0 {
		return fmt.Errorf("%w: negative round count %d", ErrInvalidEvent, e.RoundCount)
	}

	return validateCode(e.GameCode)
}

type SubmitVote struct {
	GameCode string    `json:"gameCode"`
	PlayerID room.ID   `json:"playerId"`
	Vote     room.Vote `json:"vote"`
}

func (e SubmitVote) Validate() error {
	return validateCode(e.GameCode)
}

type NextRound struct {
	GameCode string `json:"gameCode"`
}

func (e NextRound) Validate() error {
	return validateCode(e.GameCode)
}

type RestartGame struct {
	GameCode       string            `json:"gameCode"`
	UpdatedPlayers []room.Player     `json:"updatedPlayers"`
	PromptIDs      []json.RawMessage `json:"promptIds"`
}

func (e RestartGame) Validate() error {
	return validateCode(e.GameCode)
}

type EndGame struct {
	GameCode string `json:"gameCode"`
}

func (e EndGame) Validate() error {
	return validateCode(e.GameCode)
}

// GameStarted is broadcast after start-game. Status is always "intro" here,
// whatever the room stores.
type GameStarted struct {
	PromptIDs    []json.RawMessage `json:"promptIds"`
	PromptGen    json.RawMessage   `json:"promptGen,omitempty"`
	RoundCount   int               `json:"roundCount"`
	CurrentRound int               `json:"currentRound"`
	Status       room.Status       `json:"status"`
	HostID       string            `json:"hostId"`
}

type RoundData struct {
	UpdatedPlayers []room.Player     `json:"updatedPlayers"`
	CurrentRound   int               `json:"currentRound"`
	IsGameOver     bool              `json:"isGameOver"`
	PromptIDs      []json.RawMessage `json:"promptIds"`
	PromptGen      json.RawMessage   `json:"promptGen,omitempty"`
	RoundCount     int               `json:"roundCount"`
	Status         room.Status       `json:"status"`
	HostID         string            `json:"hostId"`
}

type Restarted struct {
	UpdatedPlayers []room.Player     `json:"updatedPlayers"`
	PromptIDs      []json.RawMessage `json:"promptIds"`
}

// Ack is the direct reply to create-game and join-game.
type Ack struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Ack     json.RawMessage `json:"ack,omitempty"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
}

func validateCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: missing game code", ErrInvalidEvent)
	}

	return nil
}

func validateMembership(code string, p room.Player) error {
	if err := validateCode(code); err != nil {
		return err
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	return nil
}
