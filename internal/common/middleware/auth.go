package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"mlm-compensation-backend/internal/common/errors"
)

const actorKey = "actor"

// Actor is the authenticated identity supplied by the external auth layer.
type Actor struct {
	MemberID string
	Role     string
}

type accessClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticate verifies the bearer token and stores the actor on the context.
// Tokens are minted elsewhere; this layer only validates them.
func Authenticate(secret string) gin.HandlerFunc {
	keyFunc := func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.Next()
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		claims := &accessClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, keyFunc,
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid || claims.Subject == "" {
			Respond(c, errors.New(errors.ErrCodeUnauthorized, "Invalid access token"))
			return
		}

		role := claims.Role
		if role == "" {
			role = "member"
		}
		c.Set(actorKey, Actor{MemberID: claims.Subject, Role: role})
		c.Next()
	}
}

// RequireAuth aborts requests that carry no authenticated actor.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetActor(c); !ok {
			Respond(c, errors.New(errors.ErrCodeUnauthorized, "Authentication required"))
			return
		}
		c.Next()
	}
}

// RequireAdmin aborts requests whose actor does not hold the admin role.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			Respond(c, errors.New(errors.ErrCodeUnauthorized, "Authentication required"))
			return
		}
		if actor.Role != "admin" {
			Respond(c, errors.New(errors.ErrCodeForbidden, "Admin access required"))
			return
		}
		c.Next()
	}
}

// GetActor returns the authenticated actor, if any.
func GetActor(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}
