package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"secure_chat_service/internal/chat/domain"
	errprocess "secure_chat_service/pkg/err"
	"secure_chat_service/pkg/logger"
	"secure_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 1 << 20
)

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	hub        *Hub
	messageUC  *MessageUseCase
	statusUC   *StatusUseCase
	presenceUC *PresenceUseCase
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(hub *Hub, messageUC *MessageUseCase, statusUC *StatusUseCase, presenceUC *PresenceUseCase) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		hub:        hub,
		messageUC:  messageUC,
		statusUC:   statusUC,
		presenceUC: presenceUC,
	}
}

// wsPeer websocket connection, writes are serialized
type wsPeer struct {
	id      string
	session domain.Session
	conn    *websocket.Conn
	mu      sync.Mutex
}

func (p *wsPeer) ID() string              { return p.id }
func (p *wsPeer) Session() domain.Session { return p.session }

func (p *wsPeer) Write(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, frame)
}

func (p *wsPeer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, email, ok := middlewares.MemberFromLocals(func(k string) interface{} { return conn.Locals(k) })
	if !ok {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(errprocess.Unauthenticated)))
		conn.Close()
		return
	}

	peer := &wsPeer{
		id:      uuid.NewString(),
		session: domain.Session{UserID: memberID, Email: email},
		conn:    conn,
	}
	h.hub.Register(peer)
	logger.Log.Info("websocket open", zap.String("userID", memberID), zap.String("connID", peer.id))

	ctxClose, cancel := context.WithCancel(ctx)
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		cancel()
		// 斷線: 離開所有房間並通知 offline
		rooms := h.hub.Unregister(peer.id)
		h.presenceUC.Offline(peer.session, rooms)
		conn.Close()
		logger.Log.Info("websocket close", zap.String("userID", memberID), zap.String("connID", peer.id), zap.Int("rooms", len(rooms)))
	}()

	conn.SetReadLimit(maxFrameSize)
	conn.SetPongHandler(func(string) error {
		logger.Log.Debug("pong", zap.String("connID", peer.id))
		return nil
	})

	// 定期發送 Ping
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := peer.ping(); err != nil {
					logger.Log.Warn("ping failed", zap.String("connID", peer.id), zap.Error(err))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Info("connection closed", zap.String("connID", peer.id))
			} else {
				logger.Log.Warn("websocket read error", zap.String("connID", peer.id), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(peer, errprocess.InvalidPayload)
			continue
		}
		h.textMessageAction(ctxClose, peer, message)
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, peer *wsPeer, msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Warn("websocket frame decode", zap.String("connID", peer.id), zap.Error(err))
		h.sendError(peer, errprocess.InvalidPayload)
		return
	}

	ack, always := h.dispatch(ctx, peer, req)
	if !ack.OK && ack.Err != "" {
		logger.Log.Warn("websocket action failed",
			zap.String("userID", peer.session.UserID),
			zap.String("action", string(req.Action)),
			zap.String("err", string(ack.Err)),
		)
	}
	if req.AckID != "" || always {
		h.sendResponse(peer, domain.WSResponse{Action: domain.AckAction, AckID: req.AckID, Data: ack})
	}
}

// dispatch run the action, always reports whether an ack is owed without an ack id
func (h *ChatWebsocketHandler) dispatch(ctx context.Context, peer *wsPeer, req domain.WSRequest) (domain.Ack, bool) {
	switch req.Action {
	case domain.JoinConversation:
		var r domain.RoomRequest
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), true
		}
		if r.RoomID == "" {
			return domain.AckErr(errprocess.New(errprocess.RoomIDMissing, nil)), true
		}
		h.hub.Join(peer.id, r.RoomID)
		return domain.AckOK(""), true

	case domain.LeaveConversation:
		var r domain.RoomRequest
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), true
		}
		if r.RoomID == "" {
			return domain.AckErr(errprocess.New(errprocess.RoomIDMissing, nil)), true
		}
		h.hub.Leave(peer.id, r.RoomID)
		return domain.AckOK(""), true

	//message都會寫入db,並傳訊給聊天室內的人
	case domain.SendMessage:
		var r domain.SendMessageRequest
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), true
		}
		m, err := h.messageUC.Send(ctx, peer.session, r)
		if err != nil {
			return domain.AckErr(err), true
		}
		return domain.AckOK(m.ID), true

	case domain.Typing, domain.StopTyping:
		var r domain.ConversationRef
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), false
		}
		if err := h.presenceUC.Typing(peer.session, peer.id, r.ConversationID, req.Action == domain.Typing); err != nil {
			return domain.AckErr(err), false
		}
		return domain.AckOK(""), false

	case domain.PresenceOnline:
		h.presenceUC.Online(peer.session, peer.id)
		return domain.AckOK(""), false

	case domain.MessageDelivered:
		var r domain.DeliveredRequest
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), false
		}
		if err := h.statusUC.MarkDelivered(ctx, peer.session, r.MessageID); err != nil {
			return domain.AckErr(err), false
		}
		return domain.AckOK(r.MessageID), false

	case domain.MessageRead:
		var r domain.ReadRequest
		if err := decode(req.Data, &r); err != nil {
			return domain.AckErr(err), false
		}
		if _, err := h.statusUC.MarkRead(ctx, peer.session, r.ConversationID, r.MessageIDs); err != nil {
			return domain.AckErr(err), false
		}
		return domain.AckOK(""), false
	}

	return domain.AckErr(errprocess.New(errprocess.InvalidPayload, nil)), false
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errprocess.New(errprocess.InvalidPayload, err)
	}
	return nil
}

// sendResponse - 發送 JSON 給前端
func (h *ChatWebsocketHandler) sendResponse(peer *wsPeer, resp domain.WSResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Error("marshal response", zap.Error(err))
		return
	}
	if err := peer.Write(b); err != nil {
		logger.Log.Warn("write message error", zap.String("connID", peer.id), zap.Error(err))
	}
}

func (h *ChatWebsocketHandler) sendError(peer *wsPeer, code errprocess.Code) {
	h.sendResponse(peer, domain.WSResponse{
		Action: domain.ErrorAction,
		Data:   domain.Ack{OK: false, Err: code},
	})
}
