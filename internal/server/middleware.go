package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/boostd/internal/authorization"
	obscontext "github.com/smallbiznis/boostd/internal/observability/context"
)

const (
	HeaderActorID         = "X-Actor-ID"
	HeaderActorRole       = "X-Actor-Role"
	HeaderSchedulerSecret = "X-Scheduler-Secret"

	contextActorKey = "actor"
)

// ActorRequired reads the identity forwarded by the upstream gateway.
// Authentication happens there; this only rejects requests that carry none.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.TrimSpace(c.GetHeader(HeaderActorRole))
		if id == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := authorization.NewActor(id, role)
		c.Set(contextActorKey, actor)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), actor.Role, actor.ID))
		c.Next()
	}
}

// RequireRole must run after ActorRequired.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	if !ok || actor.IsZero() {
		return authorization.Actor{}, false
	}
	return actor, true
}
