package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quickchat/internal/auth"
	"quickchat/internal/config"
	"quickchat/internal/delivery"
	"quickchat/internal/domain"
	"quickchat/internal/repository"
	"quickchat/internal/ws"

	"github.com/go-playground/validator/v10"
)

type Server struct {
	users       repository.UserStore
	messages    repository.MessageStore
	coordinator *delivery.Coordinator
	tokens      *auth.Tokens
	hub         *ws.Hub
	cfg         *config.Config
	log         *slog.Logger
	validate    *validator.Validate
}

func NewServer(users repository.UserStore, messages repository.MessageStore,
	coordinator *delivery.Coordinator, tokens *auth.Tokens, hub *ws.Hub,
	cfg *config.Config, log *slog.Logger) *Server {
	return &Server{
		users:       users,
		messages:    messages,
		coordinator: coordinator,
		tokens:      tokens,
		hub:         hub,
		cfg:         cfg,
		log:         log,
		validate:    validator.New(),
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.log.Error("failed to encode response", "error", err)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	var validationErr *domain.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case errors.As(err, &maxBytesErr):
		s.respond(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body exceeds size limit"})
	case errors.As(err, &validationErr), errors.As(err, &fieldErrs):
		s.respond(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidCredentials):
		s.respond(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials"})
	case errors.Is(err, domain.ErrNotFound):
		s.respond(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, domain.ErrEmailTaken):
		s.respond(w, http.StatusConflict, errorResponse{Error: "email already registered"})
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrStoreUnavailable):
		s.log.Error("delivery failed", "error", err)
		s.respond(w, http.StatusServiceUnavailable, errorResponse{Error: "delivery failed"})
	default:
		s.log.Error("internal error", "error", err)
		s.respond(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) decode(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
