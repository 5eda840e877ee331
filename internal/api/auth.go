package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userIDKey = "agora.user_id"

var errTokenSubject = errors.New("token has no subject")

// Authenticator verifies HS256 bearer tokens whose subject is the user id
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator creates an authenticator. An empty secret rejects every token.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify returns the user id carried by a signed token
func (a *Authenticator) Verify(token string) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("authentication is not configured")
	}

	var claims jwt.RegisteredClaims
	if _, err := a.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}); err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if claims.Subject == "" {
		return "", errTokenSubject
	}
	return claims.Subject, nil
}

// Sign issues a token for userID that expires after ttl
func (a *Authenticator) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Middleware attaches the caller's user id when a bearer token is present.
// A malformed or invalid token is rejected; a missing one leaves the request anonymous.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "malformed authorization header")
			return
		}

		userID, err := a.Verify(strings.TrimSpace(token))
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, JSONRPCResponse{
		JSONRPC: "2.0",
		Error: &JSONRPCError{
			Code:    ErrPermission,
			Message: message,
			Data:    &errorData{Code: "invalid_token"},
		},
	})
}

// UserID returns the authenticated caller, or "" for anonymous requests
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
