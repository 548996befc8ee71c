package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
)

type EventType string

const (
	EventRoomMessageCreated  EventType = "ROOM_MESSAGE_CREATED"
	EventArtifactCreated     EventType = "ARTIFACT_CREATED"
	EventOutputCreated       EventType = "OUTPUT_CREATED"
	EventOutputStatusChanged EventType = "OUTPUT_STATUS_CHANGED"
	EventSeatCreated         EventType = "SEAT_CREATED"
	EventSeatAssigned        EventType = "SEAT_ASSIGNED"
	EventPresenceJoin        EventType = "PRESENCE_JOIN"
	EventPresenceLeave       EventType = "PRESENCE_LEAVE"
)

var eventTypes = map[EventType]struct{}{
	EventRoomMessageCreated:  {},
	EventArtifactCreated:     {},
	EventOutputCreated:       {},
	EventOutputStatusChanged: {},
	EventSeatCreated:         {},
	EventSeatAssigned:        {},
	EventPresenceJoin:        {},
	EventPresenceLeave:       {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

type Actor struct {
	UserID string `json:"userId,omitempty"`
	SeatID string `json:"seatId,omitempty"`
}

// Envelope is the canonical event record published on the broker channel.
// A nil RoomID marks an org-wide event; those are never relayed.
type Envelope struct {
	ID      string          `json:"id"`
	Type    EventType       `json:"type"`
	OrgID   string          `json:"orgId"`
	RoomID  *string         `json:"roomId"`
	Actor   Actor           `json:"actor"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ts      int64           `json:"ts"`
}

func (e Envelope) Validate() error {
	if !IsUUID(e.ID) {
		return fmt.Errorf("%w: id must be a uuid", ErrInvalidEnvelope)
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEnvelope, e.Type)
	}
	if !IsUUID(e.OrgID) {
		return fmt.Errorf("%w: orgId must be a uuid", ErrInvalidEnvelope)
	}
	if e.RoomID != nil && !IsUUID(*e.RoomID) {
		return fmt.Errorf("%w: roomId must be a uuid or null", ErrInvalidEnvelope)
	}
	if e.Actor.UserID != "" && !IsUUID(e.Actor.UserID) {
		return fmt.Errorf("%w: actor.userId must be a uuid", ErrInvalidEnvelope)
	}
	if e.Actor.SeatID != "" && !IsUUID(e.Actor.SeatID) {
		return fmt.Errorf("%w: actor.seatId must be a uuid", ErrInvalidEnvelope)
	}
	return nil
}

type wireActor struct {
	UserID *string `json:"userId"`
	SeatID *string `json:"seatId"`
}

type wireEnvelope struct {
	ID      *string         `json:"id"`
	Type    *string         `json:"type"`
	OrgID   *string         `json:"orgId"`
	RoomID  json.RawMessage `json:"roomId"`
	Actor   *wireActor      `json:"actor"`
	Payload json.RawMessage `json:"payload"`
	Ts      json.RawMessage `json:"ts"`
}

var jsonNull = []byte("null")

// ParseEnvelope decodes and validates a broker payload. roomId must be
// present but may be null; ts must be an integral JSON number.
func ParseEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if w.ID == nil || w.Type == nil || w.OrgID == nil || w.Actor == nil {
		return Envelope{}, fmt.Errorf("%w: missing required field", ErrInvalidEnvelope)
	}

	env := Envelope{
		ID:      *w.ID,
		Type:    EventType(*w.Type),
		OrgID:   *w.OrgID,
		Payload: w.Payload,
	}

	switch {
	case len(w.RoomID) == 0:
		return Envelope{}, fmt.Errorf("%w: missing roomId", ErrInvalidEnvelope)
	case bytes.Equal(w.RoomID, jsonNull):
	default:
		var room string
		if err := json.Unmarshal(w.RoomID, &room); err != nil {
			return Envelope{}, fmt.Errorf("%w: roomId: %v", ErrInvalidEnvelope, err)
		}
		env.RoomID = &room
	}

	if w.Actor.UserID != nil {
		env.Actor.UserID = *w.Actor.UserID
		if env.Actor.UserID == "" {
			return Envelope{}, fmt.Errorf("%w: actor.userId must be a uuid", ErrInvalidEnvelope)
		}
	}
	if w.Actor.SeatID != nil {
		env.Actor.SeatID = *w.Actor.SeatID
		if env.Actor.SeatID == "" {
			return Envelope{}, fmt.Errorf("%w: actor.seatId must be a uuid", ErrInvalidEnvelope)
		}
	}

	ts, err := parseTimestamp(w.Ts)
	if err != nil {
		return Envelope{}, err
	}
	env.Ts = ts

	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) || raw[0] == '"' {
		return 0, fmt.Errorf("%w: ts must be an integer", ErrInvalidEnvelope)
	}
	s := string(raw)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: ts must be an integer", ErrInvalidEnvelope)
	}
	return int64(f), nil
}

// IsUUID reports whether s is a uuid in canonical 36-character form.
func IsUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
