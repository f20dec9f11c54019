// Package webservice provides the HTTP server that exposes the TaskBox API:
// account management, todo CRUD, and the chat assistant.
package webservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskbox/taskbox/internal/auth"
	"github.com/taskbox/taskbox/internal/chat"
	"github.com/taskbox/taskbox/internal/config"
	"github.com/taskbox/taskbox/internal/constants"
	"github.com/taskbox/taskbox/internal/database"
	"github.com/taskbox/taskbox/internal/models"
	"github.com/taskbox/taskbox/internal/webservice/handlers"
	"github.com/taskbox/taskbox/internal/webservice/metrics"
	"github.com/taskbox/taskbox/internal/webservice/middleware"

	"github.com/google/uuid"
)

// Server is a struct that holds the HTTP server and its configuration.
type Server struct {
	httpServer    *http.Server
	metricsServer MetricsServer
	cm            dConfigManager

	// This context is used to interrupt any action.
	// It must be the parent of gracefulCtx.
	ctx    context.Context
	cancel context.CancelFunc

	// This context waits until the next blocking Recv to interrupt.
	gracefulCtx    context.Context
	gracefulCancel context.CancelFunc
}

// StaticConfig holds the static configuration for the server.
type StaticConfig struct {
	ConfigPath  string
	PersonaPath string

	JWTSecret         string
	TokenExpiry       time.Duration
	MinPasswordLength int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int

	ListenHost string
	ListenPort int
}

type dConfigManager interface {
	Load() error
	Watch(context.Context) (<-chan struct{}, <-chan error, error)
	OriginAllowed(string) bool
	AuthLimit(string) config.RateLimit
}

// MetricsServer is an interface that defines the methods for a metrics server.
type MetricsServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
	Close() error
}

// Store is the persistence surface the web service needs. It is satisfied by
// database.Manager.
type Store interface {
	CreateUser(ctx context.Context, email, passwordHash string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)

	BlacklistToken(ctx context.Context, token string, expiresAt time.Time) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	CreateTodo(ctx context.Context, userID uuid.UUID, t database.NewTodo) (models.Todo, error)
	TodoByID(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error)
	TodosByUser(ctx context.Context, userID uuid.UUID, filter database.TodoFilter) ([]models.Todo, error)
	CountTodos(ctx context.Context, userID uuid.UUID) (int, error)
	UpdateTodo(ctx context.Context, todoID, userID uuid.UUID, u database.TodoUpdate) (models.Todo, error)
	ToggleTodo(ctx context.Context, todoID, userID uuid.UUID) (models.Todo, error)
	DeleteTodo(ctx context.Context, todoID, userID uuid.UUID) error

	CreateChatSession(ctx context.Context, userID uuid.UUID) (models.ChatSession, error)
	ChatSessionByID(ctx context.Context, sessionID uuid.UUID) (models.ChatSession, error)
	EndChatSession(ctx context.Context, sessionID, userID uuid.UUID) error
	AppendChatRecord(ctx context.Context, record models.ChatRecord) error
	ChatHistoryByUser(ctx context.Context, userID uuid.UUID) ([]models.ChatRecord, error)
}

// New creates a new Server instance serving the API backed by the given store.
//
// metricsServer may be nil to disable the metrics endpoint.
func New(ctx context.Context, cm dConfigManager, store Store, registry prometheus.Registerer, metricsServer MetricsServer, sc StaticConfig) (*Server, error) {
	if err := cm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	if sc.JWTSecret == "" {
		return nil, errors.New("JWT secret must be set")
	}

	persona := chat.DefaultPersona()
	if sc.PersonaPath != "" {
		var err error
		persona, err = chat.LoadPersona(sc.PersonaPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load persona: %v", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	gCtx, gCancel := context.WithCancel(ctx)

	s := Server{
		cm:            cm,
		metricsServer: metricsServer,
		ctx:           ctx,
		cancel:        cancel,

		gracefulCtx:    gCtx,
		gracefulCancel: gCancel}

	tokens := auth.NewTokenManager(sc.JWTSecret, sc.TokenExpiry)
	assistant := chat.NewService(store, persona)

	authn := middleware.NewAuthenticator(tokens, store)
	limiter := middleware.NewIPLimiter(cm)
	mm := metrics.New(registry)

	authHandlers := handlers.NewAuth(store, tokens, sc.MinPasswordLength)
	todoHandlers := handlers.NewTodos(store, constants.DefaultPageSize, constants.MaxPageSize)
	chatHandlers := handlers.NewChat(store, assistant)

	mux := http.NewServeMux()
	handle := func(pattern, name string, handler http.Handler) {
		mux.Handle(pattern, mm.Monitor(name, metrics.HandlerApplyLabels(handler)))
	}

	handle("GET /{$}", "root", http.HandlerFunc(handlers.RootHandler))
	handle("GET /version", "version", http.HandlerFunc(handlers.VersionHandler))

	handle("POST /auth/register", "auth_register", limiter.Limit("register", http.HandlerFunc(authHandlers.Register)))
	handle("POST /auth/login", "auth_login", limiter.Limit("login", http.HandlerFunc(authHandlers.Login)))
	handle("POST /auth/logout", "auth_logout", limiter.Limit("logout", authn.Require(http.HandlerFunc(authHandlers.Logout))))
	handle("GET /auth/profile", "auth_profile", authn.Require(http.HandlerFunc(authHandlers.Profile)))
	handle("POST /auth/validate-token", "auth_validate_token", limiter.Limit("validate-token", authn.Require(http.HandlerFunc(authHandlers.ValidateToken))))

	handle("POST /todos", "todos_create", authn.Require(http.HandlerFunc(todoHandlers.Create)))
	handle("GET /todos", "todos_list", authn.Require(http.HandlerFunc(todoHandlers.List)))
	handle("GET /todos/{todo_id}", "todos_get", authn.Require(http.HandlerFunc(todoHandlers.Get)))
	handle("PUT /todos/{todo_id}", "todos_update", authn.Require(http.HandlerFunc(todoHandlers.Update)))
	handle("PATCH /todos/{todo_id}/toggle", "todos_toggle", authn.Require(http.HandlerFunc(todoHandlers.Toggle)))
	handle("DELETE /todos/{todo_id}", "todos_delete", authn.Require(http.HandlerFunc(todoHandlers.Delete)))

	handle("POST /chat", "chat_message", authn.Require(http.HandlerFunc(chatHandlers.Message)))
	handle("GET /chat/history/{user_id}", "chat_history", authn.Require(http.HandlerFunc(chatHandlers.History)))
	handle("POST /chat/session", "chat_session_start", authn.Require(http.HandlerFunc(chatHandlers.StartSession)))
	handle("DELETE /chat/session/{session_id}", "chat_session_end", authn.Require(http.HandlerFunc(chatHandlers.EndSession)))

	muxMetrics := metrics.NewMuxMiddleware(registry)
	handler := middleware.CORS(cm)(muxMetrics.Wrap("api", mux))
	handler = middleware.SecurityHeaders(handler)
	handler = middleware.RequestLogger(handler)

	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%d", sc.ListenHost, sc.ListenPort),
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		Handler:        http.TimeoutHandler(handler, sc.RequestTimeout, ""),
		MaxHeaderBytes: sc.MaxHeaderBytes,
	}

	return &s, nil
}

// Run starts the HTTP server and listens for incoming requests.
func (s *Server) Run() error {
	slog.Info("Starting server", "addr", s.httpServer.Addr)

	// already asked to quit?
	select {
	case <-s.gracefulCtx.Done():
		return errors.New("server is already shutting down")
	default:
	}

	_, watchErr, err := s.cm.Watch(s.gracefulCtx)
	if err != nil {
		return fmt.Errorf("failed to start watching configuration: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	metricsErr := make(chan error, 1)
	if s.metricsServer != nil {
		go func() {
			if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
		}()
	}

	select {
	case <-s.gracefulCtx.Done():
		slog.Info("Graceful shutdown initiated")
		// use parent ctx so if you call s.cancel() elsewhere it unblocks Shutdown immediately
		if err := s.httpServer.Shutdown(s.ctx); err != nil {
			slog.Error("Graceful shutdown failed", "err", err)
			return err
		}
		if s.metricsServer != nil {
			if err := s.metricsServer.Shutdown(s.ctx); err != nil {
				slog.Error("Metrics server shutdown failed", "err", err)
			}
		}
		slog.Info("Server shut down gracefully")
		// now kill everything else (watchers, handlers, etc.)
		s.cancel()
		return nil

	case err := <-serverErr:
		if err != nil {
			slog.Error("Server encountered error", "err", err)
			s.cancel()
			return err
		}
		// unlikely: ListenAndServe returned nil
		s.cancel()
		return nil
	case err := <-metricsErr:
		slog.Error("Metrics server encountered error", "err", err)
		errC := s.httpServer.Close()
		s.cancel()

		return errors.Join(err, errC)
	case err := <-watchErr:
		if err != nil {
			slog.Error("Config watcher encountered unrecoverable error", "err", err)
		}
		errC := s.httpServer.Close()
		s.cancel()

		return errors.Join(err, errC)
	}
}

// Quit shuts down the HTTP server gracefully.
func (s *Server) Quit(force bool) {
	defer s.cancel()

	if force {
		s.httpServer.Close()
		if s.metricsServer != nil {
			s.metricsServer.Close()
		}
		s.cancel()
	} else {
		s.gracefulCancel()
	}
	slog.Info("Server quit")
}
