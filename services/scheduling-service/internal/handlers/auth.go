package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/smartbook-ai/smartbook/libs/auth"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/model"
	"github.com/smartbook-ai/smartbook/services/scheduling-service/internal/storage"
)

const SessionCookie = "smartbook_session"

type ctxKey struct{}

func userFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(model.User)
	return u, ok
}

// Sessions issues and verifies HS256 session tokens and resolves them to users.
type Sessions struct {
	users  storage.Users
	secret string
	ttl    time.Duration
	secure bool
	logger *slog.Logger
}

func NewSessions(users storage.Users, secret string, ttl time.Duration, secureCookie bool, logger *slog.Logger) *Sessions {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Sessions{users: users, secret: secret, ttl: ttl, secure: secureCookie, logger: logger}
}

func (s *Sessions) issue(u model.User) (string, error) {
	return auth.SignHS256(auth.NewClaims(u.ID, u.Username, string(u.Role), s.ttl), s.secret)
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// current resolves the request's session to a stored user.
func (s *Sessions) current(r *http.Request) (model.User, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		return model.User{}, false
	}
	claims, err := auth.ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return model.User{}, false
	}
	u, err := s.users.GetUser(r.Context(), claims.UserID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.ErrorContext(r.Context(), "session user lookup failed", "user_id", claims.UserID, "err", err)
		}
		return model.User{}, false
	}
	return u, true
}

// Authenticated rejects requests without a valid session with 401.
func (s *Sessions) Authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.current(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	}
}

// Admin allows only admins and answers 403 otherwise.
func (s *Sessions) Admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.current(r)
		if !ok || u.Role != model.RoleAdmin {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	}
}

type AuthHandler struct {
	sessions *Sessions
	users    storage.Users
	logger   *slog.Logger
}

func NewAuthHandler(sessions *Sessions, users storage.Users, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{sessions: sessions, users: users, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     model.Role `json:"role"`
}

type loginResponse struct {
	sessionUser
	Token string `json:"token"`
}

type sessionResponse struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	User            *sessionUser `json:"user,omitempty"`
}

func toSessionUser(u model.User) sessionUser {
	return sessionUser{ID: u.ID, Username: u.Username, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUserByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		h.logger.ErrorContext(ctx, "login lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}
	if err != nil || verifyPassword(u.PasswordHash, req.Password) != nil {
		h.logger.InfoContext(ctx, "login rejected", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	token, err := h.sessions.issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.InfoContext(ctx, "login succeeded", "user_id", u.ID, "role", string(u.Role))
	writeJSON(w, http.StatusOK, loginResponse{sessionUser: toSessionUser(u), Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	u, ok := h.sessions.current(r)
	if !ok {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	su := toSessionUser(u)
	writeJSON(w, http.StatusOK, sessionResponse{IsAuthenticated: true, User: &su})
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
