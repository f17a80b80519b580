package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pdfchat-backend/internal/models"
	"pdfchat-backend/internal/repository"
)

type contextKey string

const SessionIDKey contextKey = "session_id"

// SessionCookie holds the signed session token.
const SessionCookie = "pdfchat_session"

var ErrInvalidToken = errors.New("invalid session token")

type SessionStore interface {
	Create(ctx context.Context) (*models.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// SessionAuth binds each browser to a session through a signed cookie.
// Unknown or expired sessions are replaced by a fresh one.
type SessionAuth struct {
	Secret []byte
	TTL    time.Duration
	Secure bool
	store  SessionStore
}

func NewSessionAuth(secret string, ttl time.Duration, secure bool, store SessionStore) *SessionAuth {
	return &SessionAuth{Secret: []byte(secret), TTL: ttl, Secure: secure, store: store}
}

// GenerateToken creates a JWT naming the session. The same token
// authenticates the websocket.
func (a *SessionAuth) GenerateToken(sessionID uuid.UUID) (string, error) {
	claims := jwt.MapClaims{
		"session_id": sessionID.String(),
		"exp":        time.Now().Add(a.TTL).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken validates a token and returns its session ID.
func (a *SessionAuth) ParseToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, ErrInvalidToken
	}

	idStr, ok := claims["session_id"].(string)
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

func tokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Middleware resolves the session and attaches session_id to the context,
// issuing a new cookie when the request carries no usable session.
func (a *SessionAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if tokenStr := tokenFromRequest(r); tokenStr != "" {
			if id, err := a.ParseToken(tokenStr); err == nil {
				_, err := a.store.Get(ctx, id)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, id)))
					return
				}
				if !errors.Is(err, repository.ErrSessionNotFound) {
					slog.Error("session lookup failed", "session_id", id, "error", err)
					writeError(w, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session store unavailable", r)
					return
				}
			}
		}

		session, err := a.store.Create(ctx)
		if err != nil {
			slog.Error("failed to create session", "error", err)
			writeError(w, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session store unavailable", r)
			return
		}
		if err := a.SetCookie(w, session.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue session", r)
			return
		}
		slog.Debug("session created", "session_id", session.ID)

		next.ServeHTTP(w, r.WithContext(WithSessionID(ctx, session.ID)))
	})
}

// SetCookie writes the session cookie for id.
func (a *SessionAuth) SetCookie(w http.ResponseWriter, id uuid.UUID) error {
	token, err := a.GenerateToken(id)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.TTL.Seconds()),
		HttpOnly: true,
		Secure:   a.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// GetSessionID extracts session_id from request context
func GetSessionID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(SessionIDKey).(uuid.UUID)
	return id
}

func WithSessionID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	})
}
