// Package protocol defines the JSON frames exchanged with WebSocket clients.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrMalformedFrame = errors.New("protocol: malformed frame")

type Kind string

const (
	KindNotification Kind = "notification"
	KindChatMessage  Kind = "chat_message"
)

// Frame is an immutable outbound envelope.
type Frame interface {
	Kind() Kind
}

// Notification is sent on the notifications stream.
type Notification struct {
	Message string `json:"message"`
}

func (Notification) Kind() Kind { return KindNotification }

// ChatMessage is broadcast to a community room.
type ChatMessage struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"` // HH:MM
}

func (ChatMessage) Kind() Kind { return KindChatMessage }

// Encode serializes a frame into its wire form.
func Encode(f Frame) ([]byte, error) {
	switch f.(type) {
	case Notification, *Notification, ChatMessage, *ChatMessage:
		return json.Marshal(f)
	default:
		return nil, fmt.Errorf("protocol: unknown frame type %T", f)
	}
}

// NotificationInbound is what a client may post on the notifications stream.
type NotificationInbound struct {
	Message    string
	HasMessage bool
}

// ParseNotificationInbound extracts the optional message field. A message
// that is present but not a string is rejected.
func ParseNotificationInbound(data []byte) (NotificationInbound, error) {
	if err := validateObject(data); err != nil {
		return NotificationInbound{}, err
	}
	msg := gjson.GetBytes(data, "message")
	if !msg.Exists() || msg.Type == gjson.Null {
		return NotificationInbound{}, nil
	}
	if msg.Type != gjson.String {
		return NotificationInbound{}, fmt.Errorf("%w: message must be a string", ErrMalformedFrame)
	}
	return NotificationInbound{Message: msg.Str, HasMessage: true}, nil
}

// ChatInbound is a chat frame posted by a room member.
type ChatInbound struct {
	Message   string
	Username  string
	UserID    int64
	HasUserID bool
}

// Blank reports whether the message has no visible content.
func (c ChatInbound) Blank() bool {
	return strings.TrimSpace(c.Message) == ""
}

// ParseChatInbound validates a chat frame. A missing message parses as
// blank; a non-string message is malformed. A username that is not a
// string is dropped. user_id is only taken when it is a JSON integer.
func ParseChatInbound(data []byte) (ChatInbound, error) {
	if err := validateObject(data); err != nil {
		return ChatInbound{}, err
	}
	fields := gjson.GetManyBytes(data, "message", "username", "user_id")
	msg, username, userID := fields[0], fields[1], fields[2]

	var in ChatInbound
	switch msg.Type {
	case gjson.String:
		in.Message = msg.Str
	case gjson.Null:
	default:
		return ChatInbound{}, fmt.Errorf("%w: message must be a string", ErrMalformedFrame)
	}
	if username.Type == gjson.String {
		in.Username = strings.TrimSpace(username.Str)
	}
	if id, ok := integer(userID); ok {
		in.UserID = id
		in.HasUserID = true
	}
	return in, nil
}

func validateObject(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("%w: invalid json", ErrMalformedFrame)
	}
	if !gjson.ParseBytes(data).IsObject() {
		return fmt.Errorf("%w: expected a json object", ErrMalformedFrame)
	}
	return nil
}

func integer(r gjson.Result) (int64, bool) {
	if r.Type != gjson.Number {
		return 0, false
	}
	if strings.ContainsAny(r.Raw, ".eE") {
		return 0, false
	}
	return r.Int(), true
}
