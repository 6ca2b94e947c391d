package api

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"quickchat/internal/delivery"
	"quickchat/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type sidebarUser struct {
	*domain.User
	Unseen int `json:"unseen"`
}

func (s *Server) handleSidebarUsers(w http.ResponseWriter, r *http.Request) {
	me := userID(r.Context())
	users, err := s.users.ListOthers(r.Context(), me)
	if err != nil {
		s.respondError(w, err)
		return
	}
	counts, err := s.messages.UnseenCounts(r.Context(), me)
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := lo.Map(users, func(u *domain.User, _ int) sidebarUser {
		return sidebarUser{User: u, Unseen: counts[u.ID]}
	})
	s.respond(w, http.StatusOK, map[string]interface{}{"users": out})
}

type conversationResponse struct {
	Messages   []*domain.Message `json:"messages"`
	NextCursor int64             `json:"next_cursor"`
}

// handleConversation returns a history page with the selected user and marks
// their messages to the caller as seen, matching what reading a chat means.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	other, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, domain.Invalid("id", "not a valid user id"))
		return
	}

	cursor, _ := strconv.ParseInt(r.URL.Query().Get("cursor"), 10, 64)
	limit := s.cfg.HistoryPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= s.cfg.HistoryPageLimit {
			limit = n
		}
	}

	me := userID(r.Context())
	messages, next, err := s.messages.History(r.Context(), me, other, cursor, limit)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.messages.MarkConversationSeen(r.Context(), me, other); err != nil {
		// The page itself is already correct; seen flags catch up on the next read.
		s.log.Warn("failed to mark conversation seen", "error", err)
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	s.respond(w, http.StatusOK, conversationResponse{Messages: messages, NextCursor: next})
}

type sendRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	receiver, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, domain.Invalid("id", "not a valid user id"))
		return
	}

	var req sendRequest
	if err := s.decode(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	body := delivery.Body{Text: req.Text}
	if req.Image != "" {
		image, err := decodeImage(req.Image)
		if err != nil {
			s.respondError(w, domain.Invalid("image", "not valid base64"))
			return
		}
		body.Image = image
	}

	msg, err := s.coordinator.Send(r.Context(), userID(r.Context()), receiver, body)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]interface{}{"message": msg})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, domain.Invalid("id", "not a valid message id"))
		return
	}
	if err := s.messages.MarkSeen(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]interface{}{"success": true})
}

// decodeImage accepts a raw base64 string or a data URL.
func decodeImage(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		if idx := strings.Index(raw, ","); idx >= 0 {
			raw = raw[idx+1:]
		}
	}
	return base64.StdEncoding.DecodeString(raw)
}
