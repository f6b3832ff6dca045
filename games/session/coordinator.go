/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session routes client events to rooms and decides which
// broadcasts go to which room's subscribers.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Seednode/oddball/games/room"
)

const tracerName = "github.com/Seednode/oddball/games/session"

// Publisher is the broadcast capability the coordinator holds.
type Publisher interface {
	Subscribe(topic string, sub Subscriber)
	Publish(topic, event string, payload any) int
}

// Result describes how one inbound event was handled.
type Result struct {
	Event   string
	Code    string
	Outcome room.Outcome
	Err     error
}

type Option func(*Coordinator)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Coordinator) {
		c.tracer = tp.Tracer(tracerName)
	}
}

func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Coordinator) {
		c.logf = logf
	}
}

// Coordinator handles one event at a time against the directory.
type Coordinator struct {
	mu     sync.Mutex
	rooms  *room.Directory
	pub    Publisher
	tracer trace.Tracer
	logf   func(format string, args ...any)
}

func NewCoordinator(rooms *room.Directory, pub Publisher, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:  rooms,
		pub:    pub,
		tracer: otel.Tracer(tracerName),
		logf:   func(string, ...any) {},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Dispatch decodes one client frame and handles it. Only create-game and
// join-game reply to from; unknown types are ignored.
func (c *Coordinator) Dispatch(ctx context.Context, from Subscriber, frame []byte) Result {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Result{Outcome: room.Invalid, Err: fmt.Errorf("%w: %w", ErrInvalidEvent, err)}
	}

	switch env.Type {
	case EventCreateGame:
		var ev CreateGame
		res := decode(frame, &ev, env.Type)
		if res.Err == nil {
			res = c.CreateGame(ctx, from, ev)
		}
		c.ack(from, env, res)

		return res
	case EventJoinGame:
		var ev JoinGame
		res := decode(frame, &ev, env.Type)
		if res.Err == nil {
			res = c.JoinGame(ctx, from, ev)
		}
		c.ack(from, env, res)

		return res
	case EventStartGame:
		var ev StartGame
		if res := decode(frame, &ev, env.Type); res.Err != nil {
			return c.dropped(res)
		}

		return c.StartGame(ctx, ev)
	case EventSubmitVote:
		var ev SubmitVote
		if res := decode(frame, &ev, env.Type); res.Err != nil {
			return c.dropped(res)
		}

		return c.SubmitVote(ctx, ev)
	case EventNextRound:
		var ev NextRound
		if res := decode(frame, &ev, env.Type); res.Err != nil {
			return c.dropped(res)
		}

		return c.NextRound(ctx, ev)
	case EventRestartGame:
		var ev RestartGame
		if res := decode(frame, &ev, env.Type); res.Err != nil {
			return c.dropped(res)
		}

		return c.RestartGame(ctx, ev)
	case EventEndGame:
		var ev EndGame
		if res := decode(frame, &ev, env.Type); res.Err != nil {
			return c.dropped(res)
		}

		return c.EndGame(ctx, ev)
	default:
		return Result{Event: env.Type, Outcome: room.Invalid}
	}
}

func (c *Coordinator) CreateGame(ctx context.Context, from Subscriber, ev CreateGame) Result {
	if err := ev.Validate(); err != nil {
		return Result{Event: EventCreateGame, Code: ev.GameCode, Outcome: room.Invalid, Err: err}
	}

	return c.handle(ctx, EventCreateGame, ev.GameCode, func() (room.Outcome, error) {
		r := c.rooms.Create(ev.GameCode, ev.Player)
		c.pub.Subscribe(ev.GameCode, from)
		c.logf("ROOMS: Player %s created %s", ev.Player.ID, ev.GameCode)
		c.pub.Publish(ev.GameCode, EventPlayerList, r.PlayerList())

		return room.Applied, nil
	})
}

func (c *Coordinator) JoinGame(ctx context.Context, from Subscriber, ev JoinGame) Result {
	if err := ev.Validate(); err != nil {
		return Result{Event: EventJoinGame, Code: ev.GameCode, Outcome: room.Invalid, Err: err}
	}

	return c.handle(ctx, EventJoinGame, ev.GameCode, func() (room.Outcome, error) {
		r, err := c.rooms.Join(ev.GameCode, ev.Player)
		if err != nil {
			return room.RoomMissing, err
		}

		c.pub.Subscribe(ev.GameCode, from)
		c.logf("ROOMS: Player %s joined %s", ev.Player.ID, ev.GameCode)
		c.pub.Publish(ev.GameCode, EventPlayerList, r.PlayerList())

		return room.Applied, nil
	})
}

func (c *Coordinator) StartGame(ctx context.Context, ev StartGame) Result {
	if err := ev.Validate(); err != nil {
		return c.dropped(Result{Event: EventStartGame, Code: ev.GameCode, Outcome: room.Invalid, Err: err})
	}

	return c.withRoom(ctx, EventStartGame, ev.GameCode, func(r *room.Room) room.Outcome {
		r.Start(room.StartOptions{
			PromptIDs:  ev.PromptIDs,
			PromptGen:  ev.PromptGen,
			RoundCount: ev.RoundCount,
			HostID:     string(ev.HostID),
		})

		c.logf("ROOMS: Started %s with %d rounds", r.Code, r.RoundCount)
		c.pub.Publish(r.Code, EventGameStarted, GameStarted{
			PromptIDs:    r.Snapshot().PromptIDs,
			PromptGen:    r.PromptGen,
			RoundCount:   r.RoundCount,
			CurrentRound: r.CurrentRound,
			Status:       room.StatusIntro,
			HostID:       r.HostID,
		})

		return room.Applied
	})
}

// SubmitVote always rebroadcasts the player list, and all-voted too for as
// long as every player has voted, even when this vote was dropped.
func (c *Coordinator) SubmitVote(ctx context.Context, ev SubmitVote) Result {
	if err := ev.Validate(); err != nil {
		return c.dropped(Result{Event: EventSubmitVote, Code: ev.GameCode, Outcome: room.Invalid, Err: err})
	}

	return c.withRoom(ctx, EventSubmitVote, ev.GameCode, func(r *room.Room) room.Outcome {
		outcome, allVoted := r.Vote(string(ev.PlayerID), ev.Vote)
		if outcome != room.Applied {
			c.logf("VOTES: Dropped vote from unknown player %s in %s", ev.PlayerID, r.Code)
		}

		players := r.PlayerList()
		c.pub.Publish(r.Code, EventPlayerVoted, players)
		if allVoted {
			c.pub.Publish(r.Code, EventAllVoted, players)
		}

		return outcome
	})
}

func (c *Coordinator) NextRound(ctx context.Context, ev NextRound) Result {
	if err := ev.Validate(); err != nil {
		return c.dropped(Result{Event: EventNextRound, Code: ev.GameCode, Outcome: room.Invalid, Err: err})
	}

	return c.withRoom(ctx, EventNextRound, ev.GameCode, func(r *room.Room) room.Outcome {
		res := r.AdvanceRound()

		c.logf("VOTES: Scored round %d of %d in %s (%d distinct votes)", res.CurrentRound-1, r.RoundCount, r.Code, len(res.Tally))
		c.pub.Publish(r.Code, EventRoundData, RoundData{
			UpdatedPlayers: res.Players,
			CurrentRound:   res.CurrentRound,
			IsGameOver:     res.IsGameOver,
			PromptIDs:      r.Snapshot().PromptIDs,
			PromptGen:      r.PromptGen,
			RoundCount:     r.RoundCount,
			Status:         r.Status,
			HostID:         r.HostID,
		})

		return room.Applied
	})
}

func (c *Coordinator) RestartGame(ctx context.Context, ev RestartGame) Result {
	if err := ev.Validate(); err != nil {
		return c.dropped(Result{Event: EventRestartGame, Code: ev.GameCode, Outcome: room.Invalid, Err: err})
	}

	return c.withRoom(ctx, EventRestartGame, ev.GameCode, func(r *room.Room) room.Outcome {
		r.Restart(ev.UpdatedPlayers, ev.PromptIDs)

		c.logf("ROOMS: Restarted %s with %d players", r.Code, len(r.Players))
		snap := r.Snapshot()
		c.pub.Publish(r.Code, EventRestartGame, Restarted{
			UpdatedPlayers: snap.Players,
			PromptIDs:      snap.PromptIDs,
		})

		return room.Applied
	})
}

// EndGame removes the room, then tells its subscribers.
func (c *Coordinator) EndGame(ctx context.Context, ev EndGame) Result {
	if err := ev.Validate(); err != nil {
		return c.dropped(Result{Event: EventEndGame, Code: ev.GameCode, Outcome: room.Invalid, Err: err})
	}

	return c.handle(ctx, EventEndGame, ev.GameCode, func() (room.Outcome, error) {
		c.rooms.Remove(ev.GameCode)
		c.logf("ROOMS: Ended %s", ev.GameCode)
		c.pub.Publish(ev.GameCode, EventEndGame, nil)

		return room.Applied, nil
	})
}

// Snapshot copies the room at code between events.
func (c *Coordinator) Snapshot(code string) (room.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rooms.Get(code)
	if !ok {
		return room.Snapshot{}, false
	}

	return r.Snapshot(), true
}

// withRoom runs fn against the room at code, or does nothing if it is gone.
func (c *Coordinator) withRoom(ctx context.Context, event, code string, fn func(r *room.Room) room.Outcome) Result {
	return c.handle(ctx, event, code, func() (room.Outcome, error) {
		r, ok := c.rooms.Get(code)
		if !ok {
			c.logf("ROOMS: Ignored %s for unknown room %s", event, code)

			return room.RoomMissing, nil
		}

		return fn(r), nil
	})
}

func (c *Coordinator) handle(ctx context.Context, event, code string, fn func() (room.Outcome, error)) Result {
	_, span := c.tracer.Start(ctx, "session."+event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("room.code", code)),
	)
	defer span.End()

	c.mu.Lock()
	outcome, err := fn()
	c.mu.Unlock()

	span.SetAttributes(attribute.String("outcome", outcome.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return Result{Event: event, Code: code, Outcome: outcome, Err: err}
}

func (c *Coordinator) ack(to Subscriber, env Envelope, res Result) {
	if to == nil {
		return
	}

	reply := Ack{Type: EventAck, Event: env.Type, Ack: env.Ack, Success: res.Err == nil}
	switch {
	case errors.Is(res.Err, room.ErrRoomNotFound):
		reply.Message = GameNotFound
	case res.Err != nil:
		reply.Message = res.Err.Error()
	}

	to.Send(reply)
}

func (c *Coordinator) dropped(res Result) Result {
	c.logf("ROOMS: Ignored %s: %v", res.Event, res.Err)

	return res
}

func decode(frame []byte, into any, event string) Result {
	if err := json.Unmarshal(frame, into); err != nil {
		return Result{Event: event, Outcome: room.Invalid, Err: fmt.Errorf("%w: %w", ErrInvalidEvent, err)}
	}

	return Result{Event: event, Outcome: room.Applied}
}
