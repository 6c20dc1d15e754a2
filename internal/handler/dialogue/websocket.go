package dialogue

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/model/media"
	dialogueservice "github.com/yangruichen/cinechat/backend/internal/service/dialogue"
)

// WebSocketHandler WebSocket会话处理器：接收用户轮次并实时推送逐字回复
type WebSocketHandler struct {
	dialogueSvc *dialogueservice.Service
	logger      *zap.Logger
	upgrader    websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(dialogueSvc *dialogueservice.Service, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		dialogueSvc: dialogueSvc,
		logger:      logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/dialogue/ws/{userID}", h.handleWebSocket)
}

type inboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type outboundFrame struct {
	Type      string            `json:"type"`
	Text      string            `json:"text,omitempty"`
	Media     []media.Candidate `json:"media,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

func frame(frameType string) outboundFrame {
	return outboundFrame{Type: frameType, Timestamp: time.Now().UnixMilli()}
}

func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		http.Error(w, "userID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe, err := h.dialogueSvc.Subscribe(userID)
	if err != nil {
		h.logger.Warn("websocket subscribe failed", zap.Error(err))
		return
	}
	defer unsubscribe()

	// Single writer goroutine; gorilla connections do not allow concurrent
	// writes. The channel is never closed, senders race-free; quit tears
	// everything down.
	outbound := make(chan outboundFrame, 64)
	quit := make(chan struct{})
	defer close(quit)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-outbound:
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("websocket write failed", zap.Error(err))
					return
				}
			case <-quit:
				return
			}
		}
	}()

	// Forward reveal events until the subscription closes.
	go func() {
		for event := range events {
			msg := frame(string(event.Type))
			msg.Text = event.Text
			msg.Media = event.Media
			select {
			case outbound <- msg:
			case <-writerDone:
				return
			case <-quit:
				return
			}
		}
	}()

	h.logger.Info("websocket dialogue opened", zap.String("user_id", userID))

	for {
		var inbound inboundFrame
		if err := conn.ReadJSON(&inbound); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.Error(err))
			}
			break
		}

		switch inbound.Type {
		case "turn":
			text := strings.TrimSpace(inbound.Text)
			if text == "" {
				msg := frame("error")
				msg.Error = "text is required"
				h.trySend(outbound, writerDone, msg)
				continue
			}
			go func() {
				if _, err := h.dialogueSvc.SubmitTurn(r.Context(), userID, text); err != nil {
					msg := frame("error")
					msg.Error = err.Error()
					h.trySend(outbound, writerDone, msg)
				}
			}()
		case "ping":
			h.trySend(outbound, writerDone, frame("pong"))
		default:
			msg := frame("error")
			msg.Error = "unknown frame type: " + inbound.Type
			h.trySend(outbound, writerDone, msg)
		}
	}

	h.logger.Info("websocket dialogue closed", zap.String("user_id", userID))
}

func (h *WebSocketHandler) trySend(outbound chan<- outboundFrame, writerDone <-chan struct{}, msg outboundFrame) {
	select {
	case outbound <- msg:
	case <-writerDone:
	}
}
