package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/session"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// RequestIDMiddleware exposes the request id (client supplied or chi's) on the
// response and in the context.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

const (
	DefaultCookieName = "storefront_session"
	sessionSaveTTL    = 2 * time.Second
)

// SessionMiddleware restores the visitor's session from the cookie and puts
// it in the request context. A changed session is saved right before the
// first byte of the response, so the cookie header still goes out. An
// unchanged one is saved again once half its ttl has passed.
func SessionMiddleware(store session.Store, cfg CookieConfig) func(http.Handler) http.Handler {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.TTL <= 0 {
		cfg.TTL = session.DefaultTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := loadSession(r, store, cfg.Name)

			sw := &sessionWriter{ResponseWriter: w}
			sw.commit = func() { saveSession(r.Context(), w, store, state, cfg) }

			next.ServeHTTP(sw, r.WithContext(session.NewContext(r.Context(), state)))
			sw.once.Do(sw.commit)
		})
	}
}

func loadSession(r *http.Request, store session.Store, name string) *session.State {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return session.New()
	}
	state, err := store.Load(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			slog.WarnContext(r.Context(), "session load failed", slog.Any("error", err))
		}
		return session.New()
	}
	return state
}

func saveSession(ctx context.Context, w http.ResponseWriter, store session.Store, state *session.State, cfg CookieConfig) {
	now := time.Now()
	if !state.Dirty() && !state.Stale(now, cfg.TTL) {
		return
	}
	state.Touch(now)
	// the request context may already be cancelled by the timeout middleware
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionSaveTTL)
	defer cancel()

	if err := store.Save(ctx, state); err != nil {
		slog.ErrorContext(ctx, "session save failed", slog.Any("error", err))
		return
	}
	if prev := state.PreviousID(); prev != "" {
		if err := store.Delete(ctx, prev); err != nil {
			slog.WarnContext(ctx, "stale session delete failed", slog.Any("error", err))
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Name,
		Value:    state.ID(),
		Path:     "/",
		MaxAge:   int(cfg.TTL.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

type sessionWriter struct {
	http.ResponseWriter
	once   sync.Once
	commit func()
}

func (s *sessionWriter) WriteHeader(code int) {
	s.once.Do(s.commit)
	s.ResponseWriter.WriteHeader(code)
}

func (s *sessionWriter) Write(b []byte) (int, error) {
	s.once.Do(s.commit)
	return s.ResponseWriter.Write(b)
}

func (s *sessionWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// RequireAuth rejects visitors who are not logged in.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireAuthenticated(stateFrom(r)); err != nil {
			handleServiceError(w, r, err, "/login")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireGuest keeps logged-in users away from login and registration.
func RequireGuest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := auth.RequireGuest(stateFrom(r)); err != nil {
			handleServiceError(w, r, err, "/")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := auth.RequireRole(stateFrom(r), role); err != nil {
				handleServiceError(w, r, err, "/")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
