package domain

import (
	"context"
	"errors"
)

// ProtocolVersion is the handshake version both sides must agree on.
const ProtocolVersion = 1

// Close codes and reasons sent when a session is terminated for a policy
// violation. 1008 is the websocket "policy violation" status.
const (
	CloseCodePolicyViolation = 1008

	CloseReasonInvalidToken     = "invalid token"
	CloseReasonNotAuthenticated = "not authenticated"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidMessage     = errors.New("invalid message format")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrInvalidEnvelope    = errors.New("invalid event envelope")
)

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID string `json:"userId"`
	OrgID  string `json:"orgId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Verifier turns a bearer token into an Identity. Implementations return an
// error wrapping ErrInvalidToken for any token they refuse.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Connection is a live bidirectional session. Send never blocks: it returns
// an error when the transport cannot take more data right now.
type Connection interface {
	ID() string
	Send(data []byte) error
	Close(code int, reason string) error
}

// Registry tracks authenticated connections and their room subscriptions.
type Registry interface {
	Register(conn Connection, orgID string)
	Unregister(conn Connection)
	Subscribe(conn Connection, roomID string) bool
	Unsubscribe(conn Connection, roomID string)
	Count(orgID, roomID string) int
	Broadcast(orgID, roomID string, data []byte)
	Stats() (connections, subscriptions int)
}

// MessageHandler drives one connection through the protocol. Connect and
// Disconnect bracket every Handle call for the same connection.
type MessageHandler interface {
	Connect(conn Connection)
	Handle(conn Connection, data []byte)
	Disconnect(conn Connection)
}
