package annil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ProjectAnni/anni-go/internal/provider"
)

type ctxKey string

const ctxClaims ctxKey = "annil_claims"

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/info", s.handleInfo)

	r.Post("/admin/reload", s.handleAdminReload)
	r.Post("/admin/sign", s.handleAdminSign)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/albums", s.handleAlbums)
		r.Post("/share", s.handleShare)
		r.Get("/{album_id}/cover", s.handleCover)
		r.Get("/{album_id}/{disc_id}/cover", s.handleCover)
		r.Get("/{album_id}/{disc_id}/{track_id}", s.handleAudio)
	})

	return r
}

// authMiddleware verifies the request token and stores the claims in the
// context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			writeError(w, ErrUnauthorized)
			return
		}
		claims, err := s.keys.Verify(token)
		if err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxClaims, claims)))
	})
}

// claimsFromCtx returns the verified claims installed by authMiddleware.
func claimsFromCtx(ctx context.Context) *Claims {
	c, _ := ctx.Value(ctxClaims).(*Claims)
	return c
}

// requireAdmin checks the reload token on administrative endpoints.
func (s *Server) requireAdmin(r *http.Request) error {
	if tokenFromRequest(r) != s.keys.AdminToken {
		return ErrUnauthorized
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto status codes: 401 for missing or
// bad tokens, 403 for denied ACLs, 404 for unknown resources, 500 for the
// rest.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, provider.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		slog.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
