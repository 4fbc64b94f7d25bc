package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"

	"github.com/google/uuid"
)

const publicURLExpiry = 7 * 24 * time.Hour

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// ObjectStorage presign capability of the object store
type ObjectStorage interface {
	PresignPutURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// AttachmentUseCase hands out signed upload targets for encrypted attachments
type AttachmentUseCase struct {
	conversations *ConversationUseCase
	storage       ObjectStorage
	maxSize       int64
	allowedTypes  []string
	expiry        time.Duration
}

// NewAttachmentUseCase create AttachmentUseCase
func NewAttachmentUseCase(conversations *ConversationUseCase, storage ObjectStorage, maxSize int64, allowedTypes []string, expiry time.Duration) *AttachmentUseCase {
	return &AttachmentUseCase{
		conversations: conversations,
		storage:       storage,
		maxSize:       maxSize,
		allowedTypes:  allowedTypes,
		expiry:        expiry,
	}
}

// SignedUpload validate the file and presign a PUT under conversations/{id}/
func (uc *AttachmentUseCase) SignedUpload(ctx context.Context, session domain.Session, req domain.AttachmentUploadRequest) (*domain.AttachmentUpload, error) {
	if req.Filename == "" || req.ContentType == "" || req.ConversationID == "" {
		return nil, errprocess.New(errprocess.InvalidPayload, fmt.Errorf("filename, contentType and conversationId required"))
	}
	if req.Size < 0 || req.Size > uc.maxSize {
		return nil, errprocess.New(errprocess.InvalidPayload, fmt.Errorf("file size exceeds %d bytes", uc.maxSize))
	}
	if !uc.allowed(req.ContentType) {
		return nil, errprocess.New(errprocess.InvalidPayload, fmt.Errorf("file type %q not allowed", req.ContentType))
	}
	if _, err := uc.conversations.Get(ctx, session, req.ConversationID); err != nil {
		return nil, err
	}

	fileID := strings.ReplaceAll(uuid.NewString(), "-", "")
	key := fmt.Sprintf("conversations/%s/%s-%s", req.ConversationID, fileID, SanitizeFilename(req.Filename))

	uploadURL, err := uc.storage.PresignPutURL(ctx, key, uc.expiry)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}
	publicURL, err := uc.storage.PresignGetURL(ctx, key, publicURLExpiry)
	if err != nil {
		return nil, errprocess.New(errprocess.StoreUnavailable, err)
	}

	return &domain.AttachmentUpload{
		UploadURL: uploadURL,
		PublicURL: publicURL,
		FileID:    fileID,
		Key:       key,
		ExpiresIn: int(uc.expiry.Seconds()),
	}, nil
}

func (uc *AttachmentUseCase) allowed(contentType string) bool {
	for _, t := range uc.allowedTypes {
		if strings.HasPrefix(contentType, t) {
			return true
		}
	}
	return false
}

// SanitizeFilename keep letters, digits, dot and dash
func SanitizeFilename(name string) string {
	return unsafeFilename.ReplaceAllString(name, "_")
}
