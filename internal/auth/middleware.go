package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jilaboon/rafit-sub000/internal/api"
)

// Gin context keys set by AuthMiddleware.
const (
	ctxUserID   = "user_id"
	ctxTenantID = "tenant_id"
	ctxRole     = "user_role"
)

var (
	errMissingHeader = errors.New("authorization header required")
	errHeaderFormat  = errors.New("invalid authorization header format")
	errEmptyToken    = errors.New("token is empty")
)

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || strings.TrimSpace(scheme) != "Bearer" {
		return "", errHeaderFormat
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

func unauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: msg, Code: "unauthorized"})
}

// AuthMiddleware accepts access tokens signed with secret and stores the
// caller's principal on the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			unauthorized(c, err.Error())
			return
		}

		claims, err := ValidateToken(token, secret)
		switch {
		case errors.Is(err, ErrTokenExpired):
			unauthorized(c, "Token expired")
			return
		case err != nil:
			unauthorized(c, "Invalid or malformed token")
			return
		case claims.TokenType != "access":
			unauthorized(c, "Access token required")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxTenantID, claims.TenantID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequirePermission rejects callers whose role lacks perm in any scope.
// Ownership is checked later by the service that loads the resource.
func RequirePermission(perm Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			unauthorized(c, "User role not found")
			return
		}

		perms := PermissionsFor(p.Role)
		if !perms[perm] && !perms[anyOf(perm)] {
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{
				Error: "Insufficient permissions",
				Code:  "forbidden",
			})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) (int, bool) {
	id, ok := c.Get(ctxUserID)
	if !ok {
		return 0, false
	}
	userID, ok := id.(int)
	return userID, ok
}

// GetPrincipal reads what AuthMiddleware stored. A missing tenant means a
// token that is not scoped to a studio.
func GetPrincipal(c *gin.Context) (Principal, bool) {
	userID, ok := GetUserID(c)
	if !ok {
		return Principal{}, false
	}
	role, ok := c.Get(ctxRole)
	if !ok {
		return Principal{}, false
	}
	r, ok := role.(Role)
	if !ok {
		return Principal{}, false
	}

	tenantID, _ := c.Get(ctxTenantID)
	tid, _ := tenantID.(int)
	return Principal{UserID: userID, TenantID: tid, Role: r}, true
}
