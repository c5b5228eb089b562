package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/Tomlord1122/task-backend/internal/auth"
	"github.com/Tomlord1122/task-backend/internal/errs"
	"github.com/Tomlord1122/task-backend/internal/service"
)

const maxBodyBytes = 1 << 20

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", s.HelloWorldHandler)

	r.Get("/health", s.healthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.registerHandler)
		r.Post("/login", s.loginHandler)
		r.Post("/logout", s.logoutHandler)
		r.With(s.requireAuth).Get("/me", s.meHandler)
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/", s.listTasksHandler)
		r.Post("/", s.createTaskHandler)
		r.Get("/stats", s.taskStatsHandler)
		r.Get("/{id}", s.getTaskHandler)
		r.Put("/{id}", s.updateTaskHandler)
		r.Patch("/{id}", s.updateTaskHandler)
		r.Delete("/{id}", s.deleteTaskHandler)
	})

	// The socket authenticates its own handshake.
	r.Handle("/socket", s.hub.Handler(s.verifier))

	return r
}

func (s *Server) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Hello World from Task Backend!"})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "up", "message": "In-memory store"})
		return
	}
	healthStats := s.db.Health()
	if status, ok := healthStats["status"]; ok && status == "down" {
		respondWithJSON(w, http.StatusServiceUnavailable, healthStats)
		return
	}
	respondWithJSON(w, http.StatusOK, healthStats)
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.authService.Register(r.Context(), req)
	if err != nil {
		s.respondWithServiceError(w, r, err, "register")
		return
	}

	auth.SetTokenCookie(w, resp.Token, s.cfg.IsProduction())
	respondWithJSON(w, http.StatusCreated, map[string]any{
		"message":   "User registered successfully",
		"user":      resp.User,
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
	})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	resp, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		s.respondWithServiceError(w, r, err, "login")
		return
	}

	auth.SetTokenCookie(w, resp.Token, s.cfg.IsProduction())
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message":   "Login successful",
		"user":      resp.User,
		"token":     resp.Token,
		"expiresAt": resp.ExpiresAt,
	})
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, s.cfg.IsProduction())
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user, err := s.authService.Me(r.Context(), owner(r))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		s.respondWithServiceError(w, r, err, "me")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "User data retrieved successfully",
		"user":    user,
	})
}

func (s *Server) listTasksHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.taskService.ListTasks(r.Context(), owner(r), service.ListTasksRequest{
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	})
	if err != nil {
		s.respondWithServiceError(w, r, err, "list tasks")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Tasks retrieved successfully",
		"tasks":   tasks,
	})
}

func (s *Server) taskStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := s.taskService.Stats(r.Context(), owner(r))
	if err != nil {
		s.respondWithServiceError(w, r, err, "task stats")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Task statistics retrieved successfully",
		"stats":   stats,
	})
}

func (s *Server) createTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	task, err := s.taskService.CreateTask(r.Context(), owner(r), req)
	if err != nil {
		s.respondWithServiceError(w, r, err, "create task")
		return
	}

	respondWithJSON(w, http.StatusCreated, map[string]any{
		"message": "Task created successfully",
		"task":    task,
	})
}

func (s *Server) getTaskHandler(w http.ResponseWriter, r *http.Request) {
	task, err := s.taskService.GetTask(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithServiceError(w, r, err, "get task")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Task retrieved successfully",
		"task":    task,
	})
}

func (s *Server) updateTaskHandler(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateTaskRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	task, err := s.taskService.UpdateTask(r.Context(), owner(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.respondWithServiceError(w, r, err, "update task")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Task updated successfully",
		"task":    task,
	})
}

func (s *Server) deleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, err := s.taskService.DeleteTask(r.Context(), owner(r), chi.URLParam(r, "id"))
	if err != nil {
		s.respondWithServiceError(w, r, err, "delete task")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": "Task deleted successfully",
		"taskId":  id,
	})
}

// owner returns the authenticated user id; only valid behind requireAuth.
func owner(r *http.Request) uuid.UUID {
	claims, _ := auth.ClaimsFromCtx(r.Context())
	return claims.Owner()
}

// decodeJSON decodes the request body into dst and answers malformed input
// with 400. It reports whether the handler should continue.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Unknown fields are ignored; clients echo whole task objects back.
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil {
		return true
	}

	var syntaxError *json.SyntaxError
	var unmarshalTypeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	switch {
	case errors.As(err, &syntaxError):
		msg := fmt.Sprintf("Request body contains badly-formed JSON (at position %d)", syntaxError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.ErrUnexpectedEOF):
		respondWithError(w, http.StatusBadRequest, "Request body contains badly-formed JSON")
	case errors.As(err, &unmarshalTypeError):
		msg := fmt.Sprintf("Request body contains an invalid value for the %q field (at position %d)", unmarshalTypeError.Field, unmarshalTypeError.Offset)
		respondWithError(w, http.StatusBadRequest, msg)
	case errors.Is(err, io.EOF):
		respondWithError(w, http.StatusBadRequest, "Request body must not be empty")
	case errors.As(err, &maxBytesError):
		respondWithError(w, http.StatusRequestEntityTooLarge, "Request body is too large")
	default:
		s.log.Error("decode request body", zap.String("path", r.URL.Path), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Error processing request")
	}
	return false
}

// respondWithServiceError maps service errors to status codes. Unexpected
// errors are logged and reported generically.
func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var validation *errs.ValidationError
	switch {
	case errors.As(err, &validation):
		respondWithError(w, http.StatusBadRequest, validation.Message)
	case errors.Is(err, errs.ErrInvalidID):
		respondWithError(w, http.StatusBadRequest, "Invalid task ID")
	case errors.Is(err, errs.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, errs.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, errs.ErrAlreadyExists):
		respondWithError(w, http.StatusConflict, "User already exists")
	default:
		s.log.Error(op,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"message": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Internal server error preparing response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
