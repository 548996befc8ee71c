package domain

// Client message types.
const (
	TypeHello           = "HELLO"
	TypeSubscribeRoom   = "SUBSCRIBE_ROOM"
	TypeUnsubscribeRoom = "UNSUBSCRIBE_ROOM"
)

// Server message types.
const (
	TypeWelcome      = "WELCOME"
	TypeConnected    = "CONNECTED"
	TypeSubscribed   = "SUBSCRIBED"
	TypeUnsubscribed = "UNSUBSCRIBED"
)

// ClientMessage is one of Hello, SubscribeRoom or UnsubscribeRoom.
type ClientMessage interface {
	clientMessage()
}

type Hello struct {
	V     int
	Token string
}

type SubscribeRoom struct {
	RoomID string
}

type UnsubscribeRoom struct {
	RoomID string
}

func (Hello) clientMessage()           {}
func (SubscribeRoom) clientMessage()   {}
func (UnsubscribeRoom) clientMessage() {}

type Welcome struct {
	Type string `json:"type"`
	V    int    `json:"v"`
}

type Connected struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Subscribed struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

type Unsubscribed struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// ErrorReply is the ad-hoc, non-fatal error acknowledgement. It has no type.
type ErrorReply struct {
	Error string `json:"error"`
}
