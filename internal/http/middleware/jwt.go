package middleware

import (
	"net/http"
	"strings"

	"reflexduel/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ctxPlayerID   = "player_id"
	ctxPlayerName = "player_name"
)

// JWT requires a valid "Authorization: Bearer <token>" header and stores the
// player id and name in the context.
func JWT() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		claims, err := service.ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ctxPlayerID, claims.PlayerID)
		c.Set(ctxPlayerName, claims.Name)
		c.Next()
	}
}

func PlayerID(c *gin.Context) (string, bool) {
	id := c.GetString(ctxPlayerID)
	return id, id != ""
}

func PlayerName(c *gin.Context) string {
	return c.GetString(ctxPlayerName)
}
