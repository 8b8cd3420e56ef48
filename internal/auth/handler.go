package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/care-payments/internal"
	"github.com/frahmantamala/care-payments/internal/transport"
	"github.com/frahmantamala/care-payments/pkg/logger"
)

type Handler struct {
	transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.BaseHandler{Logger: lg},
		Service:     svc,
	}
}

// Me handles GET /api/v1/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.HandleError(w, internal.NewUnauthorizedError("authentication required", internal.ErrCodeInvalidToken))
		return
	}
	h.WriteJSON(w, http.StatusOK, p)
}

// AuthMiddleware resolves the bearer token into a Principal and records it as the
// request actor.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.Logger.Warn("auth middleware: missing authorization token", "path", r.URL.Path)
			h.HandleError(w, internal.NewUnauthorizedError("missing authorization token", internal.ErrCodeInvalidToken))
			return
		}

		p, err := h.Service.Authenticate(token)
		if err != nil {
			h.Logger.Warn("auth middleware: token validation failed", "error", err, "path", r.URL.Path)
			code := internal.ErrCodeInvalidToken
			if errors.Is(err, ErrTokenExpired) {
				code = internal.ErrCodeTokenExpired
			}
			h.HandleError(w, internal.NewUnauthorizedError("invalid token", code))
			return
		}

		ctx := ContextWithPrincipal(r.Context(), p)
		ctx = internal.ContextWithActor(ctx, p.Subject)
		ctx = internal.ContextWithRole(ctx, string(p.Role))
		ctx = logger.With(ctx, "actor", p.Subject, "role", string(p.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
