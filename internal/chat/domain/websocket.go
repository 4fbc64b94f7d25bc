package domain

import (
	"encoding/json"

	errprocess "secure_chat_service/pkg/err"
)

// Action websocket event name
type Action string

const (
	// JoinConversation client joins a room
	JoinConversation Action = "join_conversation"
	// LeaveConversation client leaves a room
	LeaveConversation Action = "leave_conversation"
	// SendMessage client submits an encrypted message
	SendMessage Action = "send_message"
	// Typing client is typing
	Typing Action = "typing"
	// StopTyping client stopped typing
	StopTyping Action = "stop_typing"
	// PresenceOnline client announces itself online
	PresenceOnline Action = "presence:online"
	// MessageDelivered client received a message
	MessageDelivered Action = "message_delivered"
	// MessageRead client showed messages to the user
	MessageRead Action = "message_read"

	// AckAction reply to a single call
	AckAction Action = "ack"
	// NewMessage server broadcast of a persisted message
	NewMessage Action = "message"
	// MessageStatusChanged server broadcast of a status transition
	MessageStatusChanged Action = "message_status"
	// UserTyping server broadcast of typing
	UserTyping Action = "user_typing"
	// UserStoppedTyping server broadcast of stop typing
	UserStoppedTyping Action = "user_stopped_typing"
	// PresenceUpdate server broadcast of presence
	PresenceUpdate Action = "presence:update"
	// ConversationDeleted server broadcast after cascade delete
	ConversationDeleted Action = "conversation_deleted"
	// ErrorAction server reply to an undecodable frame
	ErrorAction Action = "error"
)

// WSRequest websocket Request
type WSRequest struct {
	Action Action          `json:"action"`
	AckID  string          `json:"ack_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// WSResponse websocket Response, either an ack or a broadcast event
type WSResponse struct {
	Action Action      `json:"action"`
	AckID  string      `json:"ack_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

// Ack per call acknowledgement
type Ack struct {
	OK  bool            `json:"ok"`
	ID  string          `json:"id,omitempty"`
	Err errprocess.Code `json:"err,omitempty"`
}

// AckOK positive ack
func AckOK(id string) Ack {
	return Ack{OK: true, ID: id}
}

// AckErr negative ack, untagged errors are reported as save_failed
func AckErr(err error) Ack {
	code, ok := errprocess.CodeOf(err)
	if !ok {
		code = errprocess.SaveFailed
	}
	return Ack{OK: false, Err: code}
}

// RoomRequest payload of join_conversation / leave_conversation
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

// ConversationRef payload carrying a conversation id
type ConversationRef struct {
	ConversationID string `json:"conversationId"`
}

// DeliveredRequest payload of message_delivered
type DeliveredRequest struct {
	MessageID string `json:"messageId"`
}

// ReadRequest payload of message_read
type ReadRequest struct {
	MessageIDs     []string `json:"messageIds"`
	ConversationID string   `json:"conversationId"`
}

// PresenceStatus online / offline
type PresenceStatus string

const (
	// PresenceStatusOnline connection announced online
	PresenceStatusOnline PresenceStatus = "online"
	// PresenceStatusOffline connection dropped
	PresenceStatusOffline PresenceStatus = "offline"
)

// PresenceEvent payload of presence:update
type PresenceEvent struct {
	UserID string         `json:"userId"`
	Email  string         `json:"email"`
	Status PresenceStatus `json:"status"`
}

// TypingEvent payload of user_typing / user_stopped_typing
type TypingEvent struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	Email          string `json:"email"`
}
