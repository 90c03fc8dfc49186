package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/userhub/userhub/internal/auth"
	"github.com/userhub/userhub/internal/config"
	"github.com/userhub/userhub/internal/domain/user"
)

// Small interfaces so tests can fake both collaborators easily.

type TokenVerifier interface {
	VerifySessionToken(token string) (*auth.Claims, error)
}

type UserLoader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (user.User, error)
}

type AuthMiddleware struct {
	tokens TokenVerifier
	users  UserLoader
}

func NewAuthMiddleware(tokens TokenVerifier, users UserLoader) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// RequireAuth is the gate in front of every authenticated route. It
// checks the bearer token's signature, loads the user, and requires an
// exact match against the user's stored token sequence. On success the
// resolved user and the raw token land on the context; the token
// identity matters because logout pulls exactly that value. 401
// responses carry no body.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.VerifySessionToken(raw)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		id, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		cctx, cancel := config.WithTimeout(2 * time.Second)
		defer cancel()

		u, err := m.users.GetByID(cctx, id)
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		// A verified signature is not enough: the token must still be in
		// the user's live sequence, otherwise it was logged out.
		if !u.HasToken(raw) {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Set(CtxUser, u)
		c.Set(CtxToken, raw)

		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}

func TokenFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxToken)
	if !ok {
		return "", false
	}
	t, ok := v.(string)
	return t, ok
}
