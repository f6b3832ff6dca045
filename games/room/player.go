/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"encoding/json"
	"errors"
	"maps"
)

// ErrMissingPlayerID is returned when a player payload has no id.
var ErrMissingPlayerID = errors.New("player id is required")

// Player is one participant in a room. Fields holds every other attribute the
// client sent (name, avatar, ...), re-emitted as-is.
type Player struct {
	ID       string
	Vote     Vote
	HasVoted bool
	Score    int
	Fields   map[string]json.RawMessage
}

// reserved keys are owned by the engine and never copied into Fields.
var reserved = []string{"id", "vote", "hasVoted", "score"}

func NewPlayer(id string) Player {
	return Player{ID: id, Vote: NoVote}
}

// Name returns the "name" field, if the client sent one as a string.
func (p Player) Name() string {
	var name string
	if raw, ok := p.Fields["name"]; ok {
		_ = json.Unmarshal(raw, &name)
	}

	return name
}

// clearVote prepares a player for the next round, keeping identity and score.
func (p Player) clearVote() Player {
	p.Vote = NoVote
	p.HasVoted = false

	return p
}

func (p Player) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Fields)+len(reserved))
	for k, v := range p.Fields {
		out[k] = v
	}

	out["id"] = p.ID
	out["vote"] = p.Vote
	out["hasVoted"] = p.HasVoted
	out["score"] = p.Score

	return json.Marshal(out)
}

func (p *Player) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var decoded Player

	if raw, ok := fields["id"]; ok {
		id, err := decodeID(raw)
		if err != nil {
			return err
		}
		decoded.ID = id
	}

	decoded.Vote = NoVote
	if raw, ok := fields["vote"]; ok {
		decoded.Vote = NewVote(raw)
	}

	if raw, ok := fields["hasVoted"]; ok {
		if err := json.Unmarshal(raw, &decoded.HasVoted); err != nil {
			return err
		}
	}

	if raw, ok := fields["score"]; ok && string(raw) != "null" {
		if err := json.Unmarshal(raw, &decoded.Score); err != nil {
			return err
		}
	}

	for _, k := range reserved {
		delete(fields, k)
	}
	if len(fields) > 0 {
		decoded.Fields = fields
	}

	*p = decoded

	return nil
}

// Validate checks the fields the engine relies on.
func (p Player) Validate() error {
	if p.ID == "" {
		return ErrMissingPlayerID
	}

	return nil
}

// ID is a player id as clients send it, either a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = ID(s)

	return nil
}

// decodeID accepts ids sent either as JSON strings or numbers.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}

	return n.String(), nil
}

// clonePlayers copies a player slice so broadcasts never alias room state.
// Fields maps are cloned too.
func clonePlayers(players []Player) []Player {
	if players == nil {
		return []Player{}
	}

	out := make([]Player, len(players))
	for i, p := range players {
		p.Fields = maps.Clone(p.Fields)
		out[i] = p
	}

	return out
}
