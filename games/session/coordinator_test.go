/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Seednode/oddball/games/room"
)

type recorder struct {
	id string

	mu     sync.Mutex
	frames []any
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(frame any) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = append(r.frames, frame)

	return true
}

// types lists the type of every broadcast received, and "ack" for replies.
func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.frames))
	for _, f := range r.frames {
		switch m := f.(type) {
		case Message:
			out = append(out, m.Type)
		case Ack:
			out = append(out, EventAck)
		}
	}

	return out
}

func (r *recorder) last() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return nil
	}

	return r.frames[len(r.frames)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.frames = nil
}

func newCoordinator(t *testing.T, opts ...Option) (*Coordinator, *room.Directory, *Bus) {
	t.Helper()

	rooms := room.NewDirectory()
	bus := NewBus()

	return NewCoordinator(rooms, bus, opts...), rooms, bus
}

func frame(t *testing.T, v map[string]any) []byte {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}

	return b
}

func player(id string) map[string]any {
	return map[string]any{"id": id, "name": "name-" + id}
}

func equalTypes(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}

	return true
}

// setupRoom creates ABCD with p1 and joins p2, p3, each on its own connection.
func setupRoom(t *testing.T, c *Coordinator) []*recorder {
	t.Helper()

	ctx := context.Background()
	conns := []*recorder{{id: "c1"}, {id: "c2"}, {id: "c3"}}

	res := c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventCreateGame, "gameCode": "ABCD", "player": player("p1")}))
	if res.Err != nil {
		t.Fatalf("create: %v", res.Err)
	}
	for i, id := range []string{"p2", "p3"} {
		res := c.Dispatch(ctx, conns[i+1], frame(t, map[string]any{"type": EventJoinGame, "gameCode": "ABCD", "player": player(id)}))
		if res.Err != nil {
			t.Fatalf("join %s: %v", id, res.Err)
		}
	}

	for _, conn := range conns {
		conn.reset()
	}

	return conns
}

func TestCreateGame_AcksAndBroadcasts(t *testing.T) {
	c, rooms, bus := newCoordinator(t)
	conn := &recorder{id: "c1"}

	res := c.Dispatch(context.Background(), conn, frame(t, map[string]any{
		"type": EventCreateGame, "ack": 7, "gameCode": "ABCD", "player": player("p1"),
	}))
	if res.Outcome != room.Applied || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}

	if got := conn.types(); !equalTypes(got, EventPlayerList, EventAck) {
		t.Fatalf("frames = %v", got)
	}
	ack, ok := conn.last().(Ack)
	if !ok || !ack.Success || string(ack.Ack) != "7" || ack.Event != EventCreateGame {
		t.Fatalf("unexpected ack: %+v", conn.last())
	}

	if _, ok := rooms.Get("ABCD"); !ok {
		t.Fatalf("room not created")
	}
	if bus.Subscribers("ABCD") != 1 {
		t.Fatalf("creator not subscribed")
	}
}

func TestCreateGame_InvalidPayload(t *testing.T) {
	c, rooms, _ := newCoordinator(t)
	conn := &recorder{id: "c1"}

	res := c.Dispatch(context.Background(), conn, frame(t, map[string]any{
		"type": EventCreateGame, "gameCode": "ABCD", "player": map[string]any{"name": "no id"},
	}))
	if !errors.Is(res.Err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", res.Err)
	}

	if got := conn.types(); !equalTypes(got, EventAck) {
		t.Fatalf("frames = %v", got)
	}
	if ack := conn.last().(Ack); ack.Success {
		t.Fatalf("expected failed ack")
	}
	if rooms.Len() != 0 {
		t.Fatalf("room should not exist")
	}
}

func TestJoinGame_UnknownCode(t *testing.T) {
	c, _, bus := newCoordinator(t)
	conn := &recorder{id: "c1"}
	watcher := &recorder{id: "w"}
	bus.Subscribe("ZZZZ", watcher)

	res := c.Dispatch(context.Background(), conn, frame(t, map[string]any{
		"type": EventJoinGame, "gameCode": "ZZZZ", "player": player("p1"),
	}))
	if res.Outcome != room.RoomMissing || !errors.Is(res.Err, room.ErrRoomNotFound) {
		t.Fatalf("unexpected result: %+v", res)
	}

	ack, ok := conn.last().(Ack)
	if !ok || ack.Success || ack.Message != GameNotFound {
		t.Fatalf("unexpected ack: %+v", conn.last())
	}
	if len(watcher.types()) != 0 {
		t.Fatalf("nothing should be broadcast, got %v", watcher.types())
	}
	if bus.Subscribers("ZZZZ") != 1 {
		t.Fatalf("joiner should not be subscribed")
	}
}

func TestStartGame_BroadcastsIntro(t *testing.T) {
	c, rooms, _ := newCoordinator(t)
	conns := setupRoom(t, c)

	res := c.Dispatch(context.Background(), conns[1], frame(t, map[string]any{
		"type": EventStartGame, "gameCode": "ABCD", "promptIds": []any{3, 1, "x"},
		"promptGen": "spicy", "roundCount": 2, "hostId": "p1",
	}))
	if res.Outcome != room.Applied {
		t.Fatalf("unexpected result: %+v", res)
	}

	for _, conn := range conns {
		msg, ok := conn.last().(Message)
		if !ok || msg.Type != EventGameStarted {
			t.Fatalf("%s got %v", conn.id, conn.types())
		}
		started := msg.Data.(GameStarted)
		if started.Status != room.StatusIntro || started.RoundCount != 2 || started.CurrentRound != 1 || len(started.PromptIDs) != 3 {
			t.Fatalf("unexpected payload: %+v", started)
		}
		if string(started.PromptGen) != `"spicy"` || started.HostID != "p1" {
			t.Fatalf("unexpected passthrough: %+v", started)
		}
	}

	r, _ := rooms.Get("ABCD")
	if r.Status != room.StatusPlaying {
		t.Fatalf("stored status = %s", r.Status)
	}
}

func TestSubmitVote_AllVotedRepeats(t *testing.T) {
	c, _, _ := newCoordinator(t)
	conns := setupRoom(t, c)
	ctx := context.Background()

	vote := func(id, v string) {
		c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventSubmitVote, "gameCode": "ABCD", "playerId": id, "vote": v}))
	}

	vote("p1", "a")
	vote("p2", "a")
	if got := conns[2].types(); !equalTypes(got, EventPlayerVoted, EventPlayerVoted) {
		t.Fatalf("before last vote: %v", got)
	}

	conns[2].reset()
	vote("p3", "b")
	if got := conns[2].types(); !equalTypes(got, EventPlayerVoted, EventAllVoted) {
		t.Fatalf("last vote: %v", got)
	}

	conns[2].reset()
	vote("p3", "c")
	if got := conns[2].types(); !equalTypes(got, EventPlayerVoted, EventAllVoted) {
		t.Fatalf("repeated vote: %v", got)
	}

	// A dropped vote still rebroadcasts.
	conns[2].reset()
	vote("ghost", "z")
	if got := conns[2].types(); !equalTypes(got, EventPlayerVoted, EventAllVoted) {
		t.Fatalf("unknown player vote: %v", got)
	}
}

func TestNextRound_Scenario(t *testing.T) {
	c, _, _ := newCoordinator(t)
	conns := setupRoom(t, c)
	ctx := context.Background()

	c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventStartGame, "gameCode": "ABCD", "promptIds": []any{1, 2}, "roundCount": 2}))
	for id, v := range map[string]string{"p1": "a", "p2": "a", "p3": "b"} {
		c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventSubmitVote, "gameCode": "ABCD", "playerId": id, "vote": v}))
	}

	res := c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventNextRound, "gameCode": "ABCD"}))
	if res.Outcome != room.Applied {
		t.Fatalf("unexpected result: %+v", res)
	}

	msg := conns[1].last().(Message)
	if msg.Type != EventRoundData {
		t.Fatalf("last frame = %s", msg.Type)
	}
	data := msg.Data.(RoundData)
	if data.CurrentRound != 2 || data.IsGameOver || data.RoundCount != 2 || data.Status != room.StatusPlaying {
		t.Fatalf("unexpected round data: %+v", data)
	}

	want := map[string]int{"p1": 0, "p2": 0, "p3": 1}
	for _, p := range data.UpdatedPlayers {
		if p.Score != want[p.ID] {
			t.Fatalf("%s score = %d, want %d", p.ID, p.Score, want[p.ID])
		}
		if p.HasVoted || p.Name() != "name-"+p.ID {
			t.Fatalf("unexpected player: %+v", p)
		}
	}

	// Second advance with no votes is well defined and ends the game.
	c.Dispatch(ctx, conns[0], frame(t, map[string]any{"type": EventNextRound, "gameCode": "ABCD"}))
	data = conns[1].last().(Message).Data.(RoundData)
	if data.CurrentRound != 3 || !data.IsGameOver {
		t.Fatalf("unexpected round data: %+v", data)
	}
}

func TestRestartGame(t *testing.T) {
	c, rooms, _ := newCoordinator(t)
	conns := setupRoom(t, c)

	c.Dispatch(context.Background(), conns[0], frame(t, map[string]any{
		"type":           EventRestartGame,
		"gameCode":       "ABCD",
		"updatedPlayers": []any{map[string]any{"id": "p1", "score": 0}, map[string]any{"id": "p2", "score": 0}},
		"promptIds":      []any{"n1", "n2"},
	}))

	r, _ := rooms.Get("ABCD")
	if r.CurrentRound != 1 || r.Status != room.StatusIntro || len(r.Players) != 2 || len(r.PromptIDs) != 2 {
		t.Fatalf("unexpected room: %+v", r)
	}

	msg := conns[2].last().(Message)
	if msg.Type != EventRestartGame {
		t.Fatalf("last frame = %s", msg.Type)
	}
	if data := msg.Data.(Restarted); len(data.UpdatedPlayers) != 2 || string(data.PromptIDs[1]) != `"n2"` {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestEndGame(t *testing.T) {
	c, rooms, _ := newCoordinator(t)
	conns := setupRoom(t, c)

	c.Dispatch(context.Background(), conns[0], frame(t, map[string]any{"type": EventEndGame, "gameCode": "ABCD"}))

	if _, ok := rooms.Get("ABCD"); ok {
		t.Fatalf("room still present")
	}
	for _, conn := range conns {
		if got := conn.types(); !equalTypes(got, EventEndGame) {
			t.Fatalf("%s frames = %v", conn.id, got)
		}
	}
}

func TestUnknownRoom_SilentNoop(t *testing.T) {
	c, _, bus := newCoordinator(t)
	watcher := &recorder{id: "w"}
	bus.Subscribe("NOPE", watcher)
	ctx := context.Background()

	events := []map[string]any{
		{"type": EventStartGame, "gameCode": "NOPE", "promptIds": []any{}},
		{"type": EventSubmitVote, "gameCode": "NOPE", "playerId": "p1", "vote": 1},
		{"type": EventNextRound, "gameCode": "NOPE"},
		{"type": EventRestartGame, "gameCode": "NOPE", "updatedPlayers": []any{}, "promptIds": []any{}},
	}

	for _, ev := range events {
		res := c.Dispatch(ctx, watcher, frame(t, ev))
		if res.Outcome != room.RoomMissing || res.Err != nil {
			t.Fatalf("%s: unexpected result %+v", ev["type"], res)
		}
	}

	if got := watcher.types(); len(got) != 0 {
		t.Fatalf("expected no frames, got %v", got)
	}
}

func TestDispatch_IgnoresUnknownAndMalformed(t *testing.T) {
	c, _, _ := newCoordinator(t)
	conn := &recorder{id: "c1"}

	if res := c.Dispatch(context.Background(), conn, []byte(`{"type":"dance"}`)); res.Outcome != room.Invalid {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res := c.Dispatch(context.Background(), conn, []byte(`not json`)); !errors.Is(res.Err, ErrInvalidEvent) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res := c.Dispatch(context.Background(), conn, []byte(`{"type":"next-round"}`)); !errors.Is(res.Err, ErrInvalidEvent) {
		t.Fatalf("missing code should be invalid: %+v", res)
	}
	if len(conn.types()) != 0 {
		t.Fatalf("expected no frames, got %v", conn.types())
	}
}

func TestCoordinator_TracesEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	c, _, _ := newCoordinator(t, WithTracerProvider(tp))
	conn := &recorder{id: "c1"}

	c.Dispatch(context.Background(), conn, frame(t, map[string]any{"type": EventJoinGame, "gameCode": "ZZZZ", "player": player("p1")}))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name() != "session."+EventJoinGame {
		t.Fatalf("span name = %s", spans[0].Name())
	}

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["room.code"] != "ZZZZ" || attrs["outcome"] != room.RoomMissing.String() {
		t.Fatalf("attributes = %v", attrs)
	}
}
