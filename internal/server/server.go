package server

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/auth"
	"github.com/Tomlord1122/task-backend/internal/config"
	"github.com/Tomlord1122/task-backend/internal/database"
	"github.com/Tomlord1122/task-backend/internal/realtime"
	"github.com/Tomlord1122/task-backend/internal/service"
)

// Dependencies are the collaborators the HTTP layer is wired to. DB is nil
// when the server runs on the in-memory store.
type Dependencies struct {
	Tasks    service.TaskService
	Auth     service.AuthService
	Verifier auth.Verifier
	Hub      *realtime.Hub
	DB       database.Service
	Log      *zap.Logger
}

type Server struct {
	cfg         config.Config
	taskService service.TaskService
	authService service.AuthService
	verifier    auth.Verifier
	hub         *realtime.Hub
	db          database.Service
	log         *zap.Logger
}

func New(cfg config.Config, deps Dependencies) *Server {
	return &Server{
		cfg:         cfg,
		taskService: deps.Tasks,
		authService: deps.Auth,
		verifier:    deps.Verifier,
		hub:         deps.Hub,
		db:          deps.DB,
		log:         deps.Log,
	}
}

// NewServer builds the *http.Server listening on cfg.Port.
func NewServer(cfg config.Config, deps Dependencies) *http.Server {
	appServer := New(cfg, deps)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      appServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorLog:     zap.NewStdLog(deps.Log.Named("http")),
	}
}
