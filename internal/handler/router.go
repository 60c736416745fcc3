package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/novatos-ai/assistant/backend/internal/handler/chat"
	"github.com/novatos-ai/assistant/backend/internal/handler/profile"
	"github.com/novatos-ai/assistant/backend/internal/handler/stream"
	"github.com/novatos-ai/assistant/backend/internal/handler/ws"
	middlewarePkg "github.com/novatos-ai/assistant/backend/internal/middleware"
	profileModel "github.com/novatos-ai/assistant/backend/internal/model/profile"
	chatService "github.com/novatos-ai/assistant/backend/internal/service/chat"
	"github.com/novatos-ai/assistant/backend/pkg/utils"
)

// Dependencies are the services the HTTP layer exposes.
type Dependencies struct {
	Chat              *chatService.Service
	Profile           profileModel.Profile
	CorpusSize        int
	GenerationEnabled bool
	AllowedOrigins    []string
	Logger            *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	profileHandler := profile.New(deps.Profile)
	chatHandler := chat.New(deps.Chat, logger)
	streamHandler := stream.New(deps.Chat, logger)
	wsHandler := ws.New(deps.Chat, logger, deps.AllowedOrigins)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":   "ok",
				"chunks":   deps.CorpusSize,
				"ai":       deps.GenerationEnabled,
				"sessions": deps.Chat.Count(),
			})
		})

		profileHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
	})

	return r
}
