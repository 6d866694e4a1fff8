package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/timmy/timesheet/internal/logger"
)

const actorIDKey = "actor_id"

// Claims is the bearer token payload. The subject carries the actor ID.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token for actorID with the given role.
func GenerateToken(actorID uint, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(actorID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Auth validates the bearer token and requires requiredRole. The actor ID is
// stored on the gin context and on the request logger.
func Auth(secret, requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := authenticate(c.GetHeader("Authorization"), secret, requiredRole)
		if err != nil {
			logger.CtxWarn(c.Request.Context(), "Authentication failed: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(actorIDKey, actorID)
		c.Request = c.Request.WithContext(logger.SetActorID(c.Request.Context(), actorID))
		c.Next()
	}
}

func authenticate(header, secret, requiredRole string) (uint, error) {
	if header == "" {
		return 0, errors.New("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return 0, errors.New("invalid authorization header format")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, errors.New("invalid or expired token")
	}

	if claims.Role != requiredRole {
		return 0, errors.New("role " + claims.Role + " is not allowed")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("token subject is not an actor id")
	}
	return uint(id), nil
}

// ActorID returns the authenticated actor, or 0 outside Auth.
func ActorID(c *gin.Context) uint {
	if v, ok := c.Get(actorIDKey); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}
