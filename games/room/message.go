/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package room

import (
	"encoding/json"
)

// Command names understood by a game session.
const (
	CmdMoveLeft    = "move-left"
	CmdMoveRight   = "move-right"
	CmdMoveUp      = "move-up"
	CmdMoveDown    = "move-down"
	CmdStopLeft    = "stop-left"
	CmdStopRight   = "stop-right"
	CmdStopUp      = "stop-up"
	CmdStopDown    = "stop-down"
	CmdReset       = "reset"
	CmdSetUsername = "set-username"
	CmdSubmitEmail = "submit-email"
	CmdKey         = "key"
)

// Notices sent from a session to room members.
const (
	MsgSession      = "session"
	MsgFrame        = "frame"
	MsgGameOver     = "game-over"
	MsgSubmitOK     = "submit-ok"
	MsgSubmitFailed = "submit-failed"
	MsgUsername     = "username"
	MsgNotice       = "notice"
)

// Message is the envelope carried over the room channel in both directions.
type Message struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	From    string          `json:"from,omitempty"`
	Role    Role            `json:"role,omitempty"`
}

// NewMessage encodes payload as JSON. A nil payload is omitted.
func NewMessage(name string, payload any) (Message, error) {
	msg := Message{Name: name}
	if payload == nil {
		return msg, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	msg.Payload = b

	return msg, nil
}

// Text returns the payload as a string, or "" if it is not a JSON string.
func (m Message) Text() string {
	if len(m.Payload) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Payload, &s); err != nil {
		return ""
	}

	return s
}

// KeyEvent is the payload of a CmdKey message.
type KeyEvent struct {
	Key     string `json:"key"`
	Pressed bool   `json:"pressed"`
}

// SessionInfo is sent to a member right after it joins.
type SessionInfo struct {
	Room     string `json:"room"`
	Role     Role   `json:"role"`
	MemberID string `json:"member_id"`
	Variant  string `json:"variant,omitempty"`
	JoinURL  string `json:"join_url,omitempty"`
}
