package dialogue

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/service/feedback"

	dialogueservice "github.com/yangruichen/cinechat/backend/internal/service/dialogue"
	"github.com/yangruichen/cinechat/backend/pkg/utils"
)

// Handler 会话服务的HTTP处理器
type Handler struct {
	dialogueSvc *dialogueservice.Service
	feedbackSvc *feedback.Store
	logger      *zap.Logger
}

// New 创建会话处理器
func New(dialogueSvc *dialogueservice.Service, feedbackSvc *feedback.Store, logger *zap.Logger) *Handler {
	return &Handler{
		dialogueSvc: dialogueSvc,
		feedbackSvc: feedbackSvc,
		logger:      logger,
	}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/dialogue", h.handleTurn)
	r.Get("/dialogue/{userID}/history", h.handleHistory)
	r.Get("/dialogue/{userID}/stream", h.handleStream)
	r.Delete("/dialogue/{userID}", h.handleClear)
}

// userID accepts both the string and numeric forms clients send.
type userID string

func (u *userID) UnmarshalJSON(raw []byte) error {
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		*u = userID(strings.TrimSpace(asString))
		return nil
	}

	var asNumber int64
	if err := json.Unmarshal(raw, &asNumber); err != nil {
		return err
	}
	*u = userID(strconv.FormatInt(asNumber, 10))
	return nil
}

type turnRequest struct {
	UserInput string `json:"userInput"`
	UserID    userID `json:"userId"`
}

// handleTurn 处理一轮用户对话
func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	var payload turnRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := strings.TrimSpace(payload.UserInput)
	if input == "" || payload.UserID == "" {
		utils.RespondError(w, http.StatusBadRequest, "userInput and userId are required")
		return
	}

	result, err := h.dialogueSvc.SubmitTurn(r.Context(), string(payload.UserID), input)
	if err != nil {
		h.respondTurnError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"message": result.Message,
		"media":   result.Media,
	})
}

func (h *Handler) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dialogueservice.ErrEmptyInput):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dialogueservice.ErrTurnInFlight):
		utils.RespondError(w, http.StatusConflict, "a reply is already being composed for this session")
	case errors.Is(err, dialogueservice.ErrTurnCancelled):
		utils.RespondError(w, http.StatusConflict, "the session was cleared while replying")
	default:
		h.logger.Error("dialogue turn failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "dialogue turn failed")
	}
}

// handleHistory 返回会话记录与当前推荐结果
func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	session, err := h.dialogueSvc.GetSession(id)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}

	// Session bootstrap is the one place stored sentiment is read; it only
	// decorates rendering and never blocks the turn pipeline.
	if stored, err := h.feedbackSvc.List(r.Context(), id); err != nil {
		h.logger.Warn("failed to load feedback for session bootstrap",
			zap.String("user_id", id), zap.Error(err))
	} else {
		feedback.Annotate(session.Results, stored)
	}

	utils.RespondJSON(w, http.StatusOK, session)
}

// handleClear 清空会话并取消进行中的逐字回复
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	if err := h.dialogueSvc.ClearSession(id); err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStream 以SSE推送一轮回复的逐字渲染
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	id := chi.URLParam(r, "userID")
	message := strings.TrimSpace(r.URL.Query().Get("message"))
	if message == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	events, unsubscribe, err := h.dialogueSvc.Subscribe(id)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer unsubscribe()

	utils.SetupSSEHeaders(w)
	utils.SendSSEEvent(w, flusher, "start", map[string]string{"userId": id})

	turnErr := make(chan error, 1)
	go func() {
		_, err := h.dialogueSvc.SubmitTurn(r.Context(), id, message)
		turnErr <- err
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-turnErr:
			if err != nil {
				utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
				return
			}
			// Success: keep draining buffered events until done.
		case event, open := <-events:
			if !open {
				return
			}
			switch event.Type {
			case dialogueservice.EventChunk:
				utils.SendSSEEvent(w, flusher, "chunk", map[string]string{"text": event.Text})
			case dialogueservice.EventMedia:
				utils.SendSSEEvent(w, flusher, "media", map[string]interface{}{"media": event.Media})
			case dialogueservice.EventDone:
				utils.SendSSEEvent(w, flusher, "end", map[string]bool{"finished": true})
				return
			case dialogueservice.EventCancelled:
				utils.SendSSEEvent(w, flusher, "cancelled", map[string]bool{"finished": false})
				return
			}
		}
	}
}
