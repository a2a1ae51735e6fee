package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"image-enhancer/internal/domain"
)

const currentUserKey = "current_user"

var (
	// ErrMissingCredential is returned when the request carries no bearer token.
	ErrMissingCredential = errors.New("missing bearer token")
	// ErrUnauthenticated covers every other authorization failure.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// UserLookup resolves a token subject to an identity.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Authorizer resolves the identity behind a request's bearer token.
type Authorizer struct {
	tokens TokenValidator
	users  UserLookup
	logger logrus.FieldLogger
}

func NewAuthorizer(tokens TokenValidator, users UserLookup, logger logrus.FieldLogger) *Authorizer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Authorizer{tokens: tokens, users: users, logger: logger}
}

// Authorize returns the identity for r or ErrMissingCredential / ErrUnauthenticated.
// The underlying cause is only logged.
func (a *Authorizer) Authorize(r *http.Request) (*domain.User, error) {
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return nil, ErrMissingCredential
	}

	subject, err := a.tokens.Validate(token)
	if err != nil {
		a.logger.WithError(err).Debug("bearer token rejected")
		return nil, ErrUnauthenticated
	}

	user, err := a.users.GetByEmail(r.Context(), subject)
	if err != nil {
		a.logger.WithError(err).Debug("token subject did not resolve")
		return nil, ErrUnauthenticated
	}
	return user, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// RequireAuth aborts with a uniform 401 unless the request is authorized.
func RequireAuth(a *Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := a.Authorize(c.Request)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "Could not validate credentials",
			})
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser returns the identity stored by RequireAuth.
func CurrentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if user := CurrentUser(c); user != nil {
			entry = entry.WithField("user_id", user.ID)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
