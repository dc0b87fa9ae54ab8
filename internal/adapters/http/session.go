package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mmembroidery/tryon-studio/internal/core/domain"
)

const sessionCookieName = "MM_STUDIO_SESSION"

type sessionIDContextKey struct{}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey{}).(string)
	return id
}

// sessionMiddleware resolves the studio session behind the cookie, starting a
// fresh one when the cookie is missing or its session has expired.
func (rt *Router) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := rt.resolveSession(r)
		if err != nil {
			slog.Error("session_resolve_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		annotateLogEntry(r.Context(), id)
		if c, _ := r.Cookie(sessionCookieName); c == nil || c.Value != id {
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   rt.cfg.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDContextKey{}, id)))
	})
}

func (rt *Router) resolveSession(r *http.Request) (string, error) {
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		_, err := rt.studio.Session(r.Context(), c.Value)
		if err == nil {
			return c.Value, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return "", err
		}
	}
	s, err := rt.studio.NewSession(r.Context())
	if err != nil {
		return "", err
	}
	return s.ID, nil
}
