package protocol

import (
	"encoding/json"
	"fmt"

	"roomrelay/domain"
)

type header struct {
	Type *string `json:"type"`
}

type helloFields struct {
	V     *int    `json:"v"`
	Token *string `json:"token"`
}

type roomFields struct {
	RoomID *string `json:"roomId"`
}

// Decode parses one inbound frame. It returns an error wrapping
// domain.ErrUnknownMessageType for a well-formed frame with an unrecognised
// type and domain.ErrInvalidMessage for everything else that fails.
func Decode(data []byte) (domain.ClientMessage, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
	}
	if h.Type == nil {
		return nil, fmt.Errorf("%w: missing type", domain.ErrInvalidMessage)
	}

	switch *h.Type {
	case domain.TypeHello:
		var f helloFields
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
		}
		if f.V == nil || *f.V != domain.ProtocolVersion {
			return nil, fmt.Errorf("%w: unsupported protocol version", domain.ErrInvalidMessage)
		}
		if f.Token == nil {
			return nil, fmt.Errorf("%w: missing token", domain.ErrInvalidMessage)
		}
		return domain.Hello{V: *f.V, Token: *f.Token}, nil

	case domain.TypeSubscribeRoom, domain.TypeUnsubscribeRoom:
		var f roomFields
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMessage, err)
		}
		if f.RoomID == nil || !domain.IsUUID(*f.RoomID) {
			return nil, fmt.Errorf("%w: roomId must be a uuid", domain.ErrInvalidMessage)
		}
		if *h.Type == domain.TypeSubscribeRoom {
			return domain.SubscribeRoom{RoomID: *f.RoomID}, nil
		}
		return domain.UnsubscribeRoom{RoomID: *f.RoomID}, nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMessageType, *h.Type)
	}
}
