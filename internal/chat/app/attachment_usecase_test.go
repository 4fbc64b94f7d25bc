package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAttachmentUseCase() (*AttachmentUseCase, conversationMocks, *MockObjectStorage) {
	convUC, m := newTestConversationUseCase()
	storage := new(MockObjectStorage)
	uc := NewAttachmentUseCase(convUC, storage, 10*1024*1024, []string{"image/", "application/pdf"}, 5*time.Minute)
	return uc, m, storage
}

func TestAttachmentUseCase_SignedUpload(t *testing.T) {
	ctx := context.Background()
	uc, m, storage := newTestAttachmentUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
	storage.On("PresignPutURL", ctx, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "conversations/r1/") && strings.HasSuffix(key, "-my_photo__1_.png")
	}), 5*time.Minute).Return("http://minio/put", nil)
	storage.On("PresignGetURL", ctx, mock.Anything, 7*24*time.Hour).Return("http://minio/get", nil)

	up, err := uc.SignedUpload(ctx, bob, domain.AttachmentUploadRequest{
		ConversationID: "r1",
		Filename:       "my photo (1).png",
		ContentType:    "image/png",
		Size:           2048,
	})

	require.NoError(t, err)
	assert.Equal(t, "http://minio/put", up.UploadURL)
	assert.Equal(t, "http://minio/get", up.PublicURL)
	assert.Equal(t, 300, up.ExpiresIn)
	assert.Len(t, up.FileID, 32)
	assert.Contains(t, up.Key, up.FileID)
	storage.AssertExpectations(t)
}

func TestAttachmentUseCase_SignedUpload_Rejects(t *testing.T) {
	ctx := context.Background()

	cases := map[string]domain.AttachmentUploadRequest{
		"missing filename": {ConversationID: "r1", ContentType: "image/png", Size: 1},
		"too large":        {ConversationID: "r1", Filename: "a.png", ContentType: "image/png", Size: 11 * 1024 * 1024},
		"type not allowed": {ConversationID: "r1", Filename: "a.exe", ContentType: "application/x-msdownload", Size: 1},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			uc, _, storage := newTestAttachmentUseCase()
			_, err := uc.SignedUpload(ctx, bob, req)
			assert.True(t, errprocess.Is(err, errprocess.InvalidPayload))
			storage.AssertNotCalled(t, "PresignPutURL", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAttachmentUseCase_SignedUpload_NotParticipant(t *testing.T) {
	ctx := context.Background()
	uc, m, storage := newTestAttachmentUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)

	_, err := uc.SignedUpload(ctx, domain.Session{UserID: "u-eve"}, domain.AttachmentUploadRequest{
		ConversationID: "r1", Filename: "a.pdf", ContentType: "application/pdf", Size: 1,
	})
	assert.True(t, errprocess.Is(err, errprocess.Forbidden))
	storage.AssertNotCalled(t, "PresignPutURL", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachmentUseCase_SignedUpload_StorageDown(t *testing.T) {
	ctx := context.Background()
	uc, m, storage := newTestAttachmentUseCase()
	m.conv.On("FindByID", ctx, "r1").Return(testConversation("k"), nil)
	storage.On("PresignPutURL", ctx, mock.Anything, mock.Anything).Return("", errors.New("minio down"))

	_, err := uc.SignedUpload(ctx, bob, domain.AttachmentUploadRequest{
		ConversationID: "r1", Filename: "a.pdf", ContentType: "application/pdf", Size: 1,
	})
	assert.True(t, errprocess.Is(err, errprocess.StoreUnavailable))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report-2025.pdf", SanitizeFilename("report-2025.pdf"))
	assert.Equal(t, ".._etc_passwd", SanitizeFilename("../etc/passwd"))
	assert.Equal(t, "a_b_c.txt", SanitizeFilename("a b/c.txt"))
}
