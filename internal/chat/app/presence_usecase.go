package app

import (
	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
)

// PresenceUseCase ephemeral presence and typing signals, nothing is persisted
type PresenceUseCase struct {
	registry Registry
}

// NewPresenceUseCase create PresenceUseCase
func NewPresenceUseCase(registry Registry) *PresenceUseCase {
	return &PresenceUseCase{registry: registry}
}

// Online broadcast online to every room the connection joined
func (uc *PresenceUseCase) Online(session domain.Session, connID string) {
	uc.announce(session, uc.registry.RoomsOf(connID), domain.PresenceStatusOnline)
}

// Offline broadcast offline to the rooms a dropped connection was part of
func (uc *PresenceUseCase) Offline(session domain.Session, rooms []string) {
	uc.announce(session, rooms, domain.PresenceStatusOffline)
}

func (uc *PresenceUseCase) announce(session domain.Session, rooms []string, status domain.PresenceStatus) {
	ev := domain.PresenceEvent{UserID: session.UserID, Email: session.Email, Status: status}
	for _, r := range rooms {
		uc.registry.Broadcast(r, domain.PresenceUpdate, ev)
	}
}

// Typing relay typing / stop typing to the other members of the room
func (uc *PresenceUseCase) Typing(session domain.Session, connID, conversationID string, typing bool) error {
	if conversationID == "" {
		return errprocess.New(errprocess.RoomIDMissing, nil)
	}
	action := domain.UserStoppedTyping
	if typing {
		action = domain.UserTyping
	}
	uc.registry.BroadcastExcept(conversationID, connID, action, domain.TypingEvent{
		ConversationID: conversationID,
		UserID:         session.UserID,
		Email:          session.Email,
	})
	return nil
}
