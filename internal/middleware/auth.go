package middleware

import (
	"net/http"
	"strings"

	"stockwatch_backend/internal/auth"
	"stockwatch_backend/internal/config"
	"stockwatch_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware - middleware проверки JWT
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.ParseAccessToken(tokenStr, []byte(config.GetConfig().JWT.Secret))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		// Сохраняем claims в контекст. Tier здесь - снапшот на момент
		// выпуска токена; авторитетное значение отдает TierService.
		c.Set("userID", claims.UserID)
		c.Set("tier", claims.Tier)
		c.Next()
	}
}

// RequireTier - middleware ограничения по минимальному тарифу.
// Сравнивает снапшот из токена, без похода в БД: для операций, где
// важна точность на момент действия, проверку делает сервис.
func RequireTier(tiers ...models.Tier) gin.HandlerFunc {
	tierSet := make(map[models.Tier]bool)
	for _, t := range tiers {
		tierSet[t] = true
	}

	return func(c *gin.Context) {
		tierVal, exists := c.Get("tier")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: no tier"})
			return
		}

		tier, ok := tierVal.(models.Tier)
		if !ok {
			tierStr, isString := tierVal.(string)
			if !isString {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: invalid tier type"})
				return
			}
			tier = models.Tier(tierStr)
		}

		if !tierSet[tier] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: plan upgrade required"})
			return
		}

		c.Next()
	}
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get("userID")
	if !exists {
		return ""
	}

	id, ok := userID.(string)
	if !ok {
		return ""
	}

	return id
}
