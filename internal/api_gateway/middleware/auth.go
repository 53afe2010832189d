package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// OwnerIDKey holds the authenticated wallet owner
	OwnerIDKey = "owner_id"
	// RoleKey holds the role claim of the bearer token
	RoleKey = "role"

	RoleAdmin = "admin"
)

// Claims are the bearer token claims the gateway trusts. Subject is the owner id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig configures token verification
type AuthConfig struct {
	Secret string
	Issuer string // checked only when set
}

// Auth validates an HMAC signed bearer token and stores the owner id and role on the context
func Auth(cfg AuthConfig, logger *slog.Logger) gin.HandlerFunc {
	var options []jwt.ParserOption
	options = append(options, jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	}))
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	parser := jwt.NewParser(options...)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authorization header format must be Bearer {token}")
			return
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(cfg.Secret), nil
		})
		if err != nil || !token.Valid {
			msg := "Invalid token"
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				msg = "Token has expired"
			case errors.Is(err, jwt.ErrTokenNotValidYet):
				msg = "Token not valid yet"
			}
			logger.Warn("Rejected bearer token",
				"error", err,
				"path", c.Request.URL.Path,
				"correlation_id", GetCorrelationID(c),
			)
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", msg)
			return
		}

		ownerID, err := uuid.Parse(claims.Subject)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token claims")
			return
		}

		c.Set(OwnerIDKey, ownerID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose token does not carry role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != role {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// GetOwnerID returns the authenticated owner
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	if v, exists := c.Get(OwnerIDKey); exists {
		if id, ok := v.(uuid.UUID); ok {
			return id, true
		}
	}
	return uuid.Nil, false
}

func GetRole(c *gin.Context) string {
	return c.GetString(RoleKey)
}
