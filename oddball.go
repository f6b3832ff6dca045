/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Oddball
//
// Players join a room by code and vote on a prompt each round. A vote nobody
// else picked scores a point; ties score nothing. The host starts the game,
// advances rounds, and can restart or end it.
//
// Features:
// - One WebSocket per connection at /ws; rooms are addressed by code in each frame
// - Broadcasts fan out to every connection subscribed to a room code
// - All events are handled on a single hub loop
// - Room snapshots at /rooms/:code and share QR codes at /rooms/:code/qr

package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/oddball/games/room"
	"github.com/Seednode/oddball/games/session"
)

const maxMessageSize = 64 << 10

// Client is one WebSocket connection. It may be subscribed to several rooms.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan any, buffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send queues a frame without blocking.
func (c *Client) Send(frame any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// close stops the write pump, which then closes the connection.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

type inboundFrame struct {
	client *Client
	data   []byte
}

// Hub owns the coordinator and feeds it one frame at a time.
type Hub struct {
	cfg   *Config
	rooms *room.Directory
	bus   *session.Bus
	coord *session.Coordinator

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundFrame
	done     chan struct{}
}

func newHub(cfg *Config) *Hub {
	rooms := room.NewDirectory(
		room.WithRoundCount(cfg.roundCount),
		room.WithIdempotentJoin(cfg.idempotentJoin),
	)
	bus := session.NewBus()

	h := &Hub{
		cfg:      cfg,
		rooms:    rooms,
		bus:      bus,
		coord:    session.NewCoordinator(rooms, bus, session.WithLogf(logger(cfg))),
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		inbound:  make(chan inboundFrame),
		done:     make(chan struct{}),
	}

	bus.Dropped = func(sub session.Subscriber) {
		logf(cfg, "CONNS: Dropped slow connection %s", sub.ID())
		if c, ok := sub.(*Client); ok {
			c.close()
		}
	}

	return h
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				c.close()
			}
			logf(h.cfg, "ROOMS: Shut down with %d open rooms %v", h.rooms.Len(), h.rooms.Codes())

			return

		case c := <-h.register:
			h.clients[c] = true
			logf(h.cfg, "CONNS: Opened %s (%d connected)", c.id, len(h.clients))

		case c := <-h.unreg:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.bus.UnsubscribeAll(c.id)
				c.close()
				logf(h.cfg, "CONNS: Closed %s (%d connected)", c.id, len(h.clients))
			}

		case in := <-h.inbound:
			res := h.coord.Dispatch(ctx, in.client, in.data)
			if res.Err != nil {
				logf(h.cfg, "ERROR: %s from %s: %v", res.Event, in.client.id, res.Err)
			}
		}
	}
}

// submit hands v to the hub loop unless it has stopped.
func submit[T any](h *Hub, ch chan T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrade from %s: %v", realIP(r), err)
			return
		}

		client := newClient(conn, cfg.sendBuffer)
		if !submit(h, h.register, client) {
			_ = conn.Close()
			return
		}

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		submit(h, h.unreg, c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !submit(h, h.inbound, inboundFrame{client: c, data: data}) {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func registerGame(ctx context.Context, cfg *Config, mux *httprouter.Router) *Hub {
	h := newHub(cfg)
	go h.run(ctx)

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, h))
	mux.GET(cfg.prefix+"/rooms/:code", serveRoom(cfg, h))
	mux.GET(cfg.prefix+"/rooms/:code/qr", serveQR(cfg))

	return h
}
