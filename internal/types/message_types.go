package types

import "encoding/json"

type EventName string

const (
	EventJoin          EventName = "join"
	EventChatMessage   EventName = "chatMessage"
	EventMessage       EventName = "message"
	EventMatchInvite   EventName = "matchInvite"
	EventInviteDecline EventName = "matchInviteDecline"
)

// BroadcastTarget is the receiver used for the global room.
const BroadcastTarget = "All"

// Envelope is the frame exchanged with the event server.
type Envelope struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// ChatMessagePayload is emitted by the client.
type ChatMessagePayload struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Message  string `json:"message"`
}

// MessageEvent is delivered by the server for every routed chat line.
type MessageEvent struct {
	Sender   string `json:"sender"`
	Message  string `json:"message"`
	Receiver string `json:"receiver"`
}

type MatchInviteEvent struct {
	InviteID  string `json:"inviteId,omitempty"`
	From      string `json:"from"`
	BaseMs    int64  `json:"baseMs"`
	IncMs     int64  `json:"incMs"`
	ColorPref string `json:"colorPref,omitempty"`
}

// InviteDeclinePayload carries exactly one of the two keys.
type InviteDeclinePayload struct {
	InviteID     string `json:"inviteId,omitempty"`
	FromUsername string `json:"fromUsername,omitempty"`
}
