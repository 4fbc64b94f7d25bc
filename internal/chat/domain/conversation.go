package domain

import (
	"errors"
	"time"

	"secure_chat_service/pkg"
)

// ErrNotFound record does not exist in the store
var ErrNotFound = errors.New("not found")

// Session authenticated identity of a connection or request
type Session struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// Conversation multi participant room
type Conversation struct {
	ID           string    `bson:"_id" json:"id"`
	Title        string    `bson:"title" json:"title"`
	Participants []string  `bson:"participants" json:"participants"`
	CreatedBy    string    `bson:"created_by" json:"createdBy"`
	ChatKey      string    `bson:"chat_key" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsParticipant check identity membership
func (c *Conversation) IsParticipant(userID string) bool {
	return pkg.Contains(c.Participants, userID)
}

// CreateConversationRequest body of POST /conversations
type CreateConversationRequest struct {
	Title             string   `json:"title"`
	ParticipantEmails []string `json:"participantEmails"`
}

// HistoryQuery GET /messages parameters
type HistoryQuery struct {
	ConversationID string
	Limit          int
	Before         time.Time
}

// AttachmentUploadRequest body of POST /attachments/signed-url
type AttachmentUploadRequest struct {
	ConversationID string `json:"conversationId"`
	Filename       string `json:"filename"`
	ContentType    string `json:"contentType"`
	Size           int64  `json:"size"`
}

// AttachmentUpload signed upload target
type AttachmentUpload struct {
	UploadURL string `json:"uploadUrl"`
	PublicURL string `json:"publicUrl"`
	FileID    string `json:"fileId"`
	Key       string `json:"key"`
	ExpiresIn int    `json:"expiresIn"`
}

// ConversationKey cached projection used by the key endpoint
type ConversationKey struct {
	ConversationID string   `json:"conversationId"`
	ChatKey        string   `json:"chatKey"`
	Participants   []string `json:"participants"`
}

// IsParticipant check identity membership
func (k *ConversationKey) IsParticipant(userID string) bool {
	return pkg.Contains(k.Participants, userID)
}
