package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	dialogueHandler "github.com/yangruichen/cinechat/backend/internal/handler/dialogue"
	feedbackHandler "github.com/yangruichen/cinechat/backend/internal/handler/feedback"
	middlewarePkg "github.com/yangruichen/cinechat/backend/internal/middleware"
	dialogueService "github.com/yangruichen/cinechat/backend/internal/service/dialogue"
	feedbackService "github.com/yangruichen/cinechat/backend/internal/service/feedback"
	"github.com/yangruichen/cinechat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(dialogueSvc *dialogueService.Service, feedbackSvc *feedbackService.Store, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	dlgHandler := dialogueHandler.New(dialogueSvc, feedbackSvc, logger)
	wsHandler := dialogueHandler.NewWebSocketHandler(dialogueSvc, logger)
	fbHandler := feedbackHandler.New(feedbackSvc, logger)

	r.Route("/api", func(api chi.Router) {
		dlgHandler.RegisterRoutes(api)
		wsHandler.RegisterWebSocketRoutes(api)
		fbHandler.RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
