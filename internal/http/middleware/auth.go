package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/mindfold/mindfold-backend/internal/platform/ctxutil"
	"github.com/mindfold/mindfold-backend/internal/platform/logger"
)

// AuthMiddleware validates the bearer token and attaches the tenant/user
// identity to the request context. A token without a tenant claim is
// rejected with 403: every graph operation requires tenant scoping.
type AuthMiddleware struct {
	log    *logger.Logger
	secret []byte
}

func NewAuthMiddleware(log *logger.Logger, secret string) *AuthMiddleware {
	return &AuthMiddleware{
		log:    log.With("middleware", "AuthMiddleware"),
		secret: []byte(secret),
	}
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "missing or invalid token", "code": "unauthorized"},
			})
			return
		}
		rd, err := am.parse(tokenString)
		if err != nil {
			am.log.Debug("token rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{"message": "invalid token", "code": "unauthorized"},
			})
			return
		}
		if strings.TrimSpace(rd.TenantID) == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{"message": "token has no tenant", "code": "forbidden"},
			})
			return
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		c.Next()
	}
}

func (am *AuthMiddleware) parse(tokenString string) (*ctxutil.RequestData, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return am.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid claims")
	}
	tenantID, _ := claims["tenant_id"].(string)
	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	return &ctxutil.RequestData{TenantID: tenantID, UserID: userID}, nil
}

func extractToken(c *gin.Context) string {
	if qToken := c.Query("token"); qToken != "" {
		return qToken
	}
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ""
}
