// Package httpapi exposes the dialogue engine over HTTP: a server-sent
// event chat endpoint, a WebSocket chat endpoint and read endpoints for a
// learner's conversations.
package httpapi

import (
	"context"
	"iter"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abhisek/storyteller/internal/dialogue"
	"github.com/abhisek/storyteller/internal/identity"
	"github.com/abhisek/storyteller/internal/logger"
	"github.com/abhisek/storyteller/internal/observability"
	"github.com/abhisek/storyteller/internal/store"
)

// TurnHandler runs chat turns.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req dialogue.TurnRequest) iter.Seq[dialogue.Event]
}

// Deps are the collaborators of the router.
type Deps struct {
	Engine        TurnHandler
	Conversations store.ConversationRepo
	Verifier      *identity.Verifier
	Metrics       *observability.Metrics
	Log           *logger.Logger

	CORSOrigins  []string
	MaxBodyBytes int64
}

type handler struct {
	engine        TurnHandler
	conversations store.ConversationRepo
	metrics       *observability.Metrics
	log           *logger.Logger
	origins       []string
	maxBody       int64
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(deps Deps) http.Handler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 64 * 1024
	}
	h := &handler{
		engine:        deps.Engine,
		conversations: deps.Conversations,
		metrics:       deps.Metrics,
		log:           log.With("component", "httpapi"),
		origins:       deps.CORSOrigins,
		maxBody:       maxBody,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(identity.Middleware(deps.Verifier))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/student", func(r chi.Router) {
		r.Use(identity.RequireUser)
		r.Post("/chat", h.chat)
		r.Get("/conversations", h.listConversations)
		r.Get("/conversations/{id}/turns", h.turns)
		r.Get("/conversations/{id}/performance", h.performance)
	})
	r.With(identity.RequireUser).Get("/ws/chat", h.chatWS)

	return r
}

// requestLogger logs one line per request through the service logger.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				log.Info("http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", chiMiddleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
