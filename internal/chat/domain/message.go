package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	errprocess "secure_chat_service/pkg/err"
)

// MessageStatus message lifecycle state
type MessageStatus string

const (
	// StatusSent persisted by the ingest pipeline
	StatusSent MessageStatus = "sent"
	// StatusDelivered a non-sender connection received it
	StatusDelivered MessageStatus = "delivered"
	// StatusRead a non-sender showed it to the user, terminal
	StatusRead MessageStatus = "read"
)

// Rank sent=0 < delivered=1 < read=2, unknown status is -1
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 0
	case StatusDelivered:
		return 1
	case StatusRead:
		return 2
	}
	return -1
}

// Valid report whether s is a known status
func (s MessageStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanAdvanceTo only strictly higher ranks are transitions
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.Valid() && next.Rank() > s.Rank()
}

// StatusesBelow all statuses ranked lower than s, used as a store filter
func StatusesBelow(s MessageStatus) []MessageStatus {
	var out []MessageStatus
	for _, st := range []MessageStatus{StatusSent, StatusDelivered, StatusRead} {
		if st.Rank() < s.Rank() {
			out = append(out, st)
		}
	}
	return out
}

// Attachment 附件描述
type Attachment struct {
	URL      string `bson:"url" json:"url"`
	Filename string `bson:"filename" json:"filename"`
	Mime     string `bson:"mime,omitempty" json:"mime,omitempty"`
	Size     int64  `bson:"size,omitempty" json:"size,omitempty"`
}

// Message 表示一則加密聊天訊息
type Message struct {
	ID             string        `bson:"_id" json:"id"`
	ConversationID string        `bson:"conversation_id" json:"conversationId"`
	FromUserID     string        `bson:"from_user_id" json:"fromUserId"`
	FromEmail      string        `bson:"from_email" json:"fromEmail"`
	Ciphertext     string        `bson:"ciphertext" json:"ciphertext"`
	IV             string        `bson:"iv" json:"iv"`
	Tag            string        `bson:"tag,omitempty" json:"tag,omitempty"`
	Attachments    []Attachment  `bson:"attachments,omitempty" json:"attachments,omitempty"`
	Timestamp      time.Time     `bson:"ts" json:"ts"`
	Status         MessageStatus `bson:"status" json:"status"`
}

// LooseString accepts any JSON scalar and keeps its string form, null becomes empty
type LooseString string

// UnmarshalJSON implements json.Unmarshaler
func (l *LooseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LooseString(s)
		return nil
	}
	*l = LooseString(b)
	return nil
}

// SendMessageRequest payload of send_message
type SendMessageRequest struct {
	RoomID      LooseString  `json:"roomId"`
	Ciphertext  LooseString  `json:"ciphertext"`
	IV          LooseString  `json:"iv"`
	Tag         LooseString  `json:"tag,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Validate check the request before anything is written
func (r SendMessageRequest) Validate(maxAttachmentSize int64) error {
	if strings.TrimSpace(string(r.RoomID)) == "" {
		return errprocess.New(errprocess.RoomIDMissing, nil)
	}
	if r.Ciphertext == "" || r.IV == "" {
		return errprocess.New(errprocess.CiphertextOrIVMissing, nil)
	}
	for _, a := range r.Attachments {
		if a.URL == "" || a.Filename == "" || a.Size < 0 {
			return errprocess.New(errprocess.InvalidPayload, nil)
		}
		if maxAttachmentSize > 0 && a.Size > maxAttachmentSize {
			return errprocess.New(errprocess.InvalidPayload, nil)
		}
	}
	return nil
}

// StatusChange payload of message_status
type StatusChange struct {
	MessageID      string        `json:"messageId"`
	Status         MessageStatus `json:"status"`
	ConversationID string        `json:"conversationId"`
}
