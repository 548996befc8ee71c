package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roomrelay/domain"
)

const verifyTimeout = 5 * time.Second

type state int

const (
	stateUnauthenticated state = iota
	stateAuthenticated
	stateClosed
)

// session is the per-connection protocol state. Only the goroutine reading
// from the connection touches its fields.
type session struct {
	state  state
	orgID  string
	userID string
}

// Handler enforces the authenticate-then-subscribe contract for every
// connection and applies the result to the registry.
type Handler struct {
	registry domain.Registry
	verifier domain.Verifier

	sessions map[string]*session
	mu       sync.Mutex
}

func NewHandler(r domain.Registry, v domain.Verifier) *Handler {
	return &Handler{
		registry: r,
		verifier: v,
		sessions: make(map[string]*session),
	}
}

// Connect starts an unauthenticated session and greets the client.
func (h *Handler) Connect(conn domain.Connection) {
	h.mu.Lock()
	h.sessions[conn.ID()] = &session{}
	h.mu.Unlock()

	h.reply(conn, domain.Welcome{Type: domain.TypeWelcome, V: domain.ProtocolVersion})
}

// Disconnect ends the session and drops the connection from the registry.
func (h *Handler) Disconnect(conn domain.Connection) {
	h.mu.Lock()
	s, exists := h.sessions[conn.ID()]
	if exists {
		s.state = stateClosed
		delete(h.sessions, conn.ID())
	}
	h.mu.Unlock()

	h.registry.Unregister(conn)
}

func (h *Handler) session(conn domain.Connection) *session {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, exists := h.sessions[conn.ID()]
	if !exists {
		s = &session{}
		h.sessions[conn.ID()] = s
	}
	return s
}

func (h *Handler) Handle(conn domain.Connection, data []byte) {
	s := h.session(conn)
	if s.state == stateClosed {
		return
	}

	msg, err := Decode(data)
	if err != nil {
		slog.Warn("invalid message", "clientId", conn.ID(), "error", err)
		h.reply(conn, domain.ErrorReply{Error: errorText(err)})
		return
	}

	switch m := msg.(type) {
	case domain.Hello:
		h.hello(conn, s, m)
	case domain.SubscribeRoom:
		h.subscribe(conn, s, m)
	case domain.UnsubscribeRoom:
		h.unsubscribe(conn, s, m)
	default:
		panic(fmt.Sprintf("protocol: unhandled message %T", msg))
	}
}

func (h *Handler) hello(conn domain.Connection, s *session, m domain.Hello) {
	if s.state == stateAuthenticated {
		h.reply(conn, domain.ErrorReply{Error: "Already authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
	defer cancel()

	identity, err := h.verifier.Verify(ctx, m.Token)
	if err != nil {
		slog.Warn("authentication failed", "clientId", conn.ID(), "error", err)
		h.close(conn, s, domain.CloseReasonInvalidToken)
		return
	}

	s.state = stateAuthenticated
	s.orgID = identity.OrgID
	s.userID = identity.UserID
	h.registry.Register(conn, identity.OrgID)

	h.reply(conn, domain.Connected{Type: domain.TypeConnected, UserID: identity.UserID})
}

func (h *Handler) subscribe(conn domain.Connection, s *session, m domain.SubscribeRoom) {
	if s.state != stateAuthenticated {
		h.close(conn, s, domain.CloseReasonNotAuthenticated)
		return
	}

	if !h.registry.Subscribe(conn, m.RoomID) {
		h.reply(conn, domain.ErrorReply{Error: "Failed to subscribe to room"})
		return
	}

	h.reply(conn, domain.Subscribed{
		Type:   domain.TypeSubscribed,
		RoomID: m.RoomID,
		Count:  h.registry.Count(s.orgID, m.RoomID),
	})
}

func (h *Handler) unsubscribe(conn domain.Connection, s *session, m domain.UnsubscribeRoom) {
	if s.state != stateAuthenticated {
		h.close(conn, s, domain.CloseReasonNotAuthenticated)
		return
	}

	h.registry.Unsubscribe(conn, m.RoomID)
	h.reply(conn, domain.Unsubscribed{Type: domain.TypeUnsubscribed, RoomID: m.RoomID})
}

func (h *Handler) close(conn domain.Connection, s *session, reason string) {
	s.state = stateClosed
	if err := conn.Close(domain.CloseCodePolicyViolation, reason); err != nil {
		slog.Debug("close error", "clientId", conn.ID(), "error", err)
	}
}

func (h *Handler) reply(conn domain.Connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("marshal error", "clientId", conn.ID(), "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("reply dropped", "clientId", conn.ID(), "error", err)
	}
}

func errorText(err error) string {
	if errors.Is(err, domain.ErrUnknownMessageType) {
		return "Unknown message type"
	}
	return "Invalid message format"
}
