package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
)

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the caller's actor identity.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor identity set by the Actor middleware,
// or an empty string.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}

// Actor resolves the caller's identity and stores it on the request context.
// When a verified JWT is present (see jwtauth.Verifier) the subject claim
// wins; otherwise the X-Actor header is accepted. Authorization decisions
// happen upstream of this engine; the actor string is only recorded in the
// audit trail, so requests without any identity are rejected here.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ""

		if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
			if sub, ok := claims["sub"].(string); ok {
				actor = sub
			}
		}
		if actor == "" {
			actor = r.Header.Get("X-Actor")
		}
		if actor == "" {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]interface{}{
				"error": map[string]interface{}{
					"code":    "unauthorized",
					"message": "actor identity required",
				},
			})
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}
