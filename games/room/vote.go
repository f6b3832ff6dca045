/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"bytes"
	"encoding/json"
)

// Vote is an opaque, equality-comparable choice. It keeps the raw JSON the
// client sent so it can be echoed back unchanged.
type Vote struct {
	raw json.RawMessage
}

// NoVote is the unset sentinel, encoded as 0 on the wire.
var NoVote = Vote{raw: json.RawMessage("0")}

// NewVote wraps a raw JSON value. Empty input yields NoVote.
func NewVote(raw json.RawMessage) Vote {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoVote
	}

	return Vote{raw: append(json.RawMessage(nil), raw...)}
}

// StringVote is shorthand for a vote holding a JSON string.
func StringVote(s string) Vote {
	raw, _ := json.Marshal(s)

	return Vote{raw: raw}
}

// Key is the tally key. JSON strings compare by content and every other value
// by its literal text, so 1 and "1" are the same vote.
func (v Vote) Key() string {
	if len(v.raw) == 0 {
		return "0"
	}

	if v.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(v.raw, &s); err == nil {
			return s
		}
	}

	return string(v.raw)
}

func (v Vote) IsSet() bool {
	return v.Key() != NoVote.Key()
}

func (v Vote) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("0"), nil
	}

	return v.raw, nil
}

func (v *Vote) UnmarshalJSON(data []byte) error {
	*v = NewVote(data)

	return nil
}
