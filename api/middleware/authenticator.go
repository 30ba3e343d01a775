package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openfoodhub/insight-server/api/httpbase"
	"github.com/openfoodhub/insight-server/builder/productsvc"
	"github.com/openfoodhub/insight-server/common/config"
)

const productAuthCtxVar = "productAuth"

// Authenticator resolves the caller identity without rejecting anonymous
// requests. Read endpoints are public, write endpoints decide per route.
func Authenticator(config *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.Request.Header.Get("Authorization")
		switch {
		case authHeader == "":
			httpbase.SetAuthType(c, httpbase.AuthTypeNone)
		case strings.HasPrefix(authHeader, "Bearer "):
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if config.APIToken == "" || token != config.APIToken {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API token"})
				return
			}
			httpbase.SetAuthType(c, httpbase.AuthTypeApiKey)
			if currentUser := c.Query("current_user"); currentUser != "" {
				httpbase.SetCurrentUser(c, currentUser)
			}
		case strings.HasPrefix(authHeader, "Basic "):
			username, password, ok := c.Request.BasicAuth()
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed Basic authorization header"})
				return
			}
			httpbase.SetAuthType(c, httpbase.AuthTypeBasic)
			httpbase.SetCurrentUser(c, username)
			c.Set(productAuthCtxVar, &productsvc.Auth{Username: username, Password: password})
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unsupported Authorization header"})
			return
		}

		c.Next()
	}
}

// OnlyAPIKeyAuthenticator guards routes reserved to trusted callers.
func OnlyAPIKeyAuthenticator(config *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if httpbase.GetAuthType(c) != httpbase.AuthTypeApiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "api token required"})
			return
		}
		c.Next()
	}
}

// GetProductAuth returns the credentials forwarded to the product service,
// nil for anonymous and api-key callers.
func GetProductAuth(c *gin.Context) *productsvc.Auth {
	auth, ok := c.Get(productAuthCtxVar)
	if !ok {
		return nil
	}
	return auth.(*productsvc.Auth)
}
