package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tripline/booking-backend/internal/services"
	"github.com/tripline/booking-backend/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// AuthMiddleware creates a middleware that validates JWT tokens
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Authorization header is required",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Invalid authorization header format. Expected: Bearer <token>",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			status := "invalid_token"
			if jwtService.IsExpired(parts[1]) {
				status = "token_expired"
			}
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   status,
				"message": "Access token is not valid",
			})
			c.Abort()
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Roles:  claims.Roles,
		})
		c.Next()
	}
}

// RequireRole creates a middleware that checks whether the user holds any of
// the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found",
			})
			c.Abort()
			return
		}

		for _, required := range roles {
			for _, role := range userCtx.Roles {
				if role == required {
					c.Next()
					return
				}
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Insufficient permissions",
		})
		c.Abort()
	}
}

// RequireCapability gates an endpoint on a capability check. It passes when
// any of the caller's roles grants the action.
func RequireCapability(checker services.CapabilityChecker, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found",
			})
			c.Abort()
			return
		}

		for _, role := range userCtx.Roles {
			if checker.Can(role, action) {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "Insufficient permissions for " + action,
		})
		c.Abort()
	}
}

// GetUserContext extracts the user context set by AuthMiddleware
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	userCtx, ok := value.(UserContext)
	return userCtx, ok
}

// RoleChecker adapts role-based authorization to the capability interface
// the services consume.
type RoleChecker struct {
	grants map[string][]string
}

// NewRoleChecker creates a RoleChecker from an action → roles table
func NewRoleChecker(grants map[string][]string) *RoleChecker {
	return &RoleChecker{grants: grants}
}

// Can reports whether the actor's role grants the action. The actor string
// is a role name here; handlers resolve it from the user context.
func (rc *RoleChecker) Can(actorRole, action string) bool {
	for _, role := range rc.grants[action] {
		if role == actorRole {
			return true
		}
	}
	return false
}
