package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"promptcal.io/prompt-calibrate/internal/core"
	"promptcal.io/prompt-calibrate/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

type APIHandler struct {
	userService *core.UserService
	chatService *core.ChatService
}

func NewAPIHandler(us *core.UserService, cs *core.ChatService) *APIHandler {
	return &APIHandler{userService: us, chatService: cs}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// All error responses carry a human-readable detail string.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeServiceError maps the service error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, core.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, core.ErrUpstream):
		log.Printf("Upstream gateway error: %v", err)
		writeError(w, http.StatusBadGateway, "Upstream model gateway unavailable")
	case errors.Is(err, core.ErrCalibrationParse):
		log.Printf("Calibration parse error: %v", err)
		writeError(w, http.StatusInternalServerError, "Calibration response was malformed")
	default:
		log.Printf("Internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		user, err := h.userService.Authenticate(r.Context(), tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *store.User {
	return r.Context().Value(userContextKey).(*store.User)
}

// User routes

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Name, email and password are required")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		UserID: user.ID,
		Name:   user.Name,
		Email:  user.Email,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	token, user, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged in successfully!",
		"user_id": user.ID,
		"token":   token,
	})
}

// Token invalidation is the client's job (drop the token); the endpoint only
// confirms who was logged out.
func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Logged out",
		"user_id": user.ID,
	})
}

// Chat routes

type CreateSessionRequest struct {
	UserID      string `json:"user_id"`
	SessionName string `json:"session_name"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req CreateSessionRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	// Ownership comes from the token, never from the body.
	session, err := h.chatService.CreateSession(r.Context(), user.ID, req.SessionName)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"session_id":   session.ID,
		"session_name": session.SessionName,
	})
}

func (h *APIHandler) SessionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	sessions, err := h.chatService.GetSessionHistory(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if sessions == nil {
		sessions = []store.Session{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.Session{"history": sessions})
}

func (h *APIHandler) ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	chats, err := h.chatService.GetChatHistory(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if chats == nil {
		chats = []store.Chat{}
	}
	writeJSON(w, http.StatusOK, map[string][]store.Chat{"history": chats})
}

type SendMessageRequest struct {
	UserPrompt       string `json:"user_prompt"`
	Model            string `json:"model"`
	BaseSystemPrompt string `json:"base_system_prompt"`
}

type SendMessageResponse struct {
	Message string `json:"message"`
	ChatID  string `json:"chat_id"`
}

func (h *APIHandler) SendMessageHandler(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.UserPrompt == "" {
		writeError(w, http.StatusBadRequest, "User prompt cannot be empty")
		return
	}

	assistantMessage, chatID, err := h.chatService.SendMessage(r.Context(), sessionID, req.UserPrompt, req.Model, req.BaseSystemPrompt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SendMessageResponse{
		Message: assistantMessage,
		ChatID:  chatID,
	})
}

type FeedbackRequest struct {
	Rating           int    `json:"rating"`
	Feedback         string `json:"feedback"`
	Action           string `json:"action"`
	BaseSystemPrompt string `json:"base_system_prompt"`
}

func (h *APIHandler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	action := core.ActionNoActionNeeded
	if req.Action != "" {
		var err error
		action, err = core.ParseFeedbackAction(req.Action)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := h.chatService.SubmitFeedback(r.Context(), chatID, req.Rating, req.Feedback, action, req.BaseSystemPrompt)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
