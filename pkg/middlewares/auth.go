package middlewares

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiraai/pkg/commons"
	"github.com/shiraai/pkg/types"
	"github.com/shiraai/pkg/utils"
)

const (
	MissingAuthorizationMessage = "Missing or invalid authorization header"
	InvalidTokenMessage         = "Invalid or expired token"
	InvalidApiKeyMessage        = "Invalid API key"

	principleContextKey = "__auth_principle"
)

type authOptions struct {
	queryParam string
}

type AuthOption func(*authOptions)

// AllowQueryToken also accepts the token from a query parameter. Browsers
// cannot set headers on a websocket handshake.
func AllowQueryToken(param string) AuthOption {
	return func(o *authOptions) { o.queryParam = param }
}

// NewBearerAuthMiddleware rejects requests without a valid bearer token and
// stores the verified principle on both the gin and the request context.
func NewBearerAuthMiddleware(verifier types.TokenVerifier, logger commons.Logger, opts ...AuthOption) gin.HandlerFunc {
	o := &authOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return func(c *gin.Context) {
		token, err := types.ParseBearer(c.GetHeader(utils.HEADER_AUTH_KEY))
		if err != nil && o.queryParam != "" {
			if q := c.Query(o.queryParam); q != "" {
				token, err = q, nil
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": MissingAuthorizationMessage})
			return
		}

		principle, err := verifier.Verify(token)
		if err != nil {
			if !errors.Is(err, types.ErrInvalidToken) {
				logger.Errorf("token verification failed: %v", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": InvalidTokenMessage})
			return
		}
		c.Set(principleContextKey, principle)
		c.Request = c.Request.WithContext(types.WithAuthPrinciple(c.Request.Context(), principle))
		c.Next()
	}
}

// NewApiKeyMiddleware admits service-to-service calls carrying the shared
// x-api-key. An empty configured key rejects everything.
func NewApiKeyMiddleware(apiKey string, logger commons.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(utils.HEADER_API_KEY)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(got), []byte(apiKey)) != 1 {
			logger.Warnf("rejected api key request to %s", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": InvalidApiKeyMessage})
			return
		}
		c.Next()
	}
}

// GetAuthPrinciple returns the principle stored by the bearer middleware.
func GetAuthPrinciple(c *gin.Context) (*types.Principle, bool) {
	v, ok := c.Get(principleContextKey)
	if !ok {
		return types.GetAuthPrinciple(c.Request.Context())
	}
	p, ok := v.(*types.Principle)
	return p, ok && p != nil
}
