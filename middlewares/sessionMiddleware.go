package middlewares

import (
	"context"
	"encoding/json"
	"net/http"

	"bitbucket.org/standupsync/tickets_backend/config"
	"bitbucket.org/standupsync/tickets_backend/utils"
	"github.com/gin-gonic/gin"
)

type sessionActor struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

// SessionMiddleware resolves the caller's session token against redis and puts
// the actor onto the request context so audit entries carry a real name.
// Requests without a token pass through; the pubsub push route and healthz do
// not authenticate.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		raw, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		// Session values are stored either as a bare username or as a JSON
		// actor object; accept both.
		actor := sessionActor{Name: raw}
		_ = json.Unmarshal([]byte(raw), &actor)

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyActorId, actor.Id)
		ctx = context.WithValue(ctx, utils.ContextKeyActorName, actor.Name)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
