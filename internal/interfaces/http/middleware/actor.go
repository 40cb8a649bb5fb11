package middleware

import (
	"net/http"

	"github.com/editdesk/backend/internal/domain/shared"
	"github.com/editdesk/backend/internal/infrastructure/logger"
	"github.com/editdesk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity headers asserted by the gateway in front of the service
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
	HeaderPartnerID = "X-Partner-ID"
)

// Gin context keys
const (
	ActorKey     = "actor"
	PartnerIDKey = "partner_id"
)

// Identity reads the caller from the gateway headers. Requests without a
// valid actor are rejected with 401. The partner header is optional here;
// RequirePartner enforces it on partner scoped routes.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := uuid.Parse(c.GetHeader(HeaderActorID))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing or invalid "+HeaderActorID+" header")
			return
		}
		role := shared.ActorRole(c.GetHeader(HeaderActorRole))
		if !role.IsValid() {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Missing or invalid "+HeaderActorRole+" header")
			return
		}
		actor := shared.NewActor(actorID, role)
		c.Set(ActorKey, actor)
		ctx := logger.WithActor(c.Request.Context(), actor)

		if raw := c.GetHeader(HeaderPartnerID); raw != "" {
			partnerID, err := uuid.Parse(raw)
			if err != nil {
				abortWithError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid "+HeaderPartnerID+" header")
				return
			}
			c.Set(PartnerIDKey, partnerID)
			ctx = logger.WithPartner(ctx, partnerID)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequirePartner rejects requests that do not name the partner they act on
func RequirePartner() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetPartnerID(c); !ok {
			abortWithError(c, http.StatusBadRequest, dto.ErrCodeBadRequest, HeaderPartnerID+" header is required")
			return
		}
		c.Next()
	}
}

// RequireRoles lets only the given actor roles through
func RequireRoles(roles ...shared.ActorRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Caller identity required")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, dto.ErrCodeForbidden, "Actor is not allowed to perform this action")
	}
}

// GetActor returns the caller set by Identity
func GetActor(c *gin.Context) (shared.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return shared.Actor{}, false
	}
	actor, ok := v.(shared.Actor)
	return actor, ok
}

// GetPartnerID returns the partner set by Identity
func GetPartnerID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get(PartnerIDKey)
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, dto.NewErrorResponseWithRequestID(code, message, GetRequestID(c)))
}
