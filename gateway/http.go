package gateway

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"chat-relay/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// API is the HTTP companion of the WebSocket gateway: credential issuance
// plus the message operations that don't need a live connection (history,
// edit, delete).
type API struct {
	log    *slog.Logger
	auth   services.IAuthService
	tokens *auth.TokenService
	users  repositories.IUserRepository
	chats  repositories.IChatRepository
	fanout services.IFanoutService
}

func NewAPI(log *slog.Logger, authService services.IAuthService, tokens *auth.TokenService,
	users repositories.IUserRepository, chats repositories.IChatRepository,
	fanout services.IFanoutService) *API {
	return &API{log: log, auth: authService, tokens: tokens, users: users, chats: chats, fanout: fanout}
}

// Mount registers all routes on the mux, including the WebSocket endpoint.
func (a *API) Mount(mux *http.ServeMux, ws *Gateway) {
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/chats/{chatId}/messages", a.requireUser(a.handleHistory))
	mux.HandleFunc("PATCH /api/messages/{messageId}", a.requireUser(a.handleEdit))
	mux.HandleFunc("DELETE /api/messages/{messageId}", a.requireUser(a.handleDelete))
	mux.HandleFunc("DELETE /api/account", a.requireUser(a.handleDeactivate))
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageView struct {
	MessageID string  `json:"messageId"`
	ChatID    string  `json:"chatId"`
	Sender    string  `json:"sender"`
	Receiver  string  `json:"receiver"`
	Content   string  `json:"content"`
	Type      string  `json:"type"`
	IsRead    bool    `json:"isRead"`
	Edited    bool    `json:"edited"`
	Timestamp string  `json:"timestamp"`
	ReadAt    *string `json:"readAt,omitempty"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.ErrInvalidPayload)
		return
	}
	token, err := a.auth.Register(req.Username, req.Email, req.Password)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": string(token)})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.ErrInvalidPayload)
		return
	}
	token, user, err := a.auth.Login(req.Email, req.Password)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": string(token),
		"user": map[string]any{
			"userId":   user.ID,
			"username": user.Username,
			"status":   string(user.Status),
			"lastSeen": user.LastSeen,
		},
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request, user domain.User) {
	chatID := r.PathValue("chatId")

	// Same capability rule as the live join: only participants may read.
	chat, err := a.chats.GetChat(chatID)
	if err != nil || !chat.HasParticipant(user.ID) {
		a.writeError(w, http.StatusNotFound, errors.ErrChatNotFoundOrForbidden)
		return
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}
	messages, next, err := a.fanout.History(chatID, cursor)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": lo.Map(messages, func(m domain.Message, _ int) messageView {
			return toMessageView(m)
		}),
		"cursor": next,
	})
}

func (a *API) handleEdit(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, http.StatusBadRequest, errors.ErrInvalidPayload)
		return
	}
	updated, err := a.fanout.Edit(r.Context(), user.ID, r.PathValue("messageId"), req.Content)
	if err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageView(updated))
}

func (a *API) handleDelete(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := a.fanout.Delete(r.Context(), user.ID, r.PathValue("messageId")); err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDeactivate soft-disables the calling account. The record and its
// message history survive; every later credential check fails.
func (a *API) handleDeactivate(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := a.users.SetActive(user.ID, false); err != nil {
		a.writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser resolves the bearer token into the calling user and passes
// the explicit record to the handler.
func (a *API) requireUser(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			a.writeError(w, http.StatusUnauthorized, errors.ErrAuthFailed)
			return
		}
		claims, err := a.tokens.Verify(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, errors.ErrAuthFailed)
			return
		}
		stored, err := a.users.GetUserByID(claims.UserID)
		if err != nil || !stored.Active {
			a.writeError(w, http.StatusUnauthorized, errors.ErrAuthFailed)
			return
		}
		next(w, r, stored.ToDomain())
	}
}

func toMessageView(m domain.Message) messageView {
	view := messageView{
		MessageID: m.ID,
		ChatID:    m.ChatID,
		Sender:    m.SenderID,
		Receiver:  m.ReceiverID,
		Content:   m.Content,
		Type:      string(m.Type),
		IsRead:    m.Read,
		Edited:    m.Edited,
		Timestamp: m.SentAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if m.ReadAt != nil {
		readAt := m.ReadAt.Format("2006-01-02T15:04:05.000Z07:00")
		view.ReadAt = &readAt
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", "code", errors.CodeOf(err), "error", err)
	}
	writeJSON(w, status, map[string]string{
		"code":    errors.CodeOf(err),
		"message": err.Error(),
	})
}

func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case "USER_ALREADY_EXISTS":
		return http.StatusConflict
	case "INVALID_CREDENTIALS", "AUTH_FAILED", "ACCOUNT_DEACTIVATED":
		return http.StatusUnauthorized
	case "NOT_FOUND_OR_FORBIDDEN", "CHAT_NOT_FOUND_OR_FORBIDDEN", "RECIPIENT_NOT_FOUND":
		return http.StatusNotFound
	case "EDIT_WINDOW_EXPIRED", "INVALID_PAYLOAD", "INVALID_PASSWORD", "SELF_MESSAGE":
		return http.StatusBadRequest
	case "PERSISTENCE_FAILURE":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
