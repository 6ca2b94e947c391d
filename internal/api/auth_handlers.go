package api

import (
	"errors"
	"net/http"
	"time"

	"quickchat/internal/auth"
	"quickchat/internal/domain"

	"github.com/google/uuid"
)

type signupRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Bio      string `json:"bio"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.respondError(w, err)
		return
	}

	user := &domain.User{
		ID:        uuid.New(),
		Email:     req.Email,
		FullName:  req.FullName,
		Bio:       req.Bio,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(r.Context(), user, hash); err != nil {
		s.respondError(w, err)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, err)
		return
	}

	user, hash, err := s.users.ByEmail(r.Context(), req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		s.respondError(w, domain.ErrInvalidCredentials)
		return
	}
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !auth.CheckPassword(hash, req.Password) {
		s.respondError(w, domain.ErrInvalidCredentials)
		return
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.ByID(r.Context(), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"user": user})
}

type updateProfileRequest struct {
	FullName   string `json:"full_name" validate:"required"`
	Bio        string `json:"bio"`
	ProfilePic string `json:"profile_pic"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, err)
		return
	}

	user, err := s.users.ByID(r.Context(), userID(r.Context()))
	if err != nil {
		s.respondError(w, err)
		return
	}
	user.FullName = req.FullName
	user.Bio = req.Bio
	if req.ProfilePic != "" {
		user.ProfilePic = req.ProfilePic
	}
	if err := s.users.UpdateProfile(r.Context(), user); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"user": user})
}
