package feedback

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/yangruichen/cinechat/backend/internal/model/media"
	feedbackservice "github.com/yangruichen/cinechat/backend/internal/service/feedback"
	"github.com/yangruichen/cinechat/backend/pkg/utils"
)

// Handler 点赞/点踩的HTTP处理器
type Handler struct {
	store  *feedbackservice.Store
	logger *zap.Logger
}

// New 创建反馈处理器
func New(store *feedbackservice.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// RegisterRoutes 注册反馈相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/feedback", h.handleRecord)
	r.Get("/feedback/{userID}", h.handleList)
}

type recordRequest struct {
	UserID    string         `json:"userId"`
	MediaID   int64          `json:"mediaId"`
	MediaType media.Type     `json:"mediaType"`
	Value     media.Feedback `json:"value"`
}

// handleRecord 记录一条用户对媒体条目的好恶
func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var payload recordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	payload.UserID = strings.TrimSpace(payload.UserID)
	if payload.UserID == "" || payload.MediaID == 0 {
		utils.RespondError(w, http.StatusBadRequest, "userId and mediaId are required")
		return
	}
	if !payload.MediaType.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "mediaType must be movie, tv or person")
		return
	}
	if !payload.Value.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "value must be 0 or 1")
		return
	}

	err := h.store.Record(r.Context(), payload.UserID, payload.MediaID, payload.MediaType, payload.Value)
	if err != nil {
		if errors.Is(err, feedbackservice.ErrInvalidKey) || errors.Is(err, feedbackservice.ErrInvalidValue) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to record feedback", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to record feedback")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleList 返回用户全部反馈，按媒体ID索引
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")

	stored, err := h.store.List(r.Context(), id)
	if err != nil {
		if errors.Is(err, feedbackservice.ErrInvalidKey) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to list feedback", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"feedback": stored})
}
