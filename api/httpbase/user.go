package httpbase

import (
	"github.com/gin-gonic/gin"
)

const (
	CurrentUserCtxVar = "currentUser"
	AuthTypeCtxVar    = "authType"
)

type AuthType string

const (
	AuthTypeApiKey AuthType = "ApiKey"
	AuthTypeBasic  AuthType = "Basic"
	AuthTypeNone   AuthType = "None"
)

// GetCurrentUser returns the annotator user name from the context.
//
// user name could be previously set by the authenticator middleware
func GetCurrentUser(ctx *gin.Context) string {
	return ctx.GetString(CurrentUserCtxVar)
}

func SetCurrentUser(ctx *gin.Context, user string) {
	ctx.Set(CurrentUserCtxVar, user)
}

func GetAuthType(ctx *gin.Context) AuthType {
	return AuthType(ctx.GetString(AuthTypeCtxVar))
}

func SetAuthType(ctx *gin.Context, t AuthType) {
	ctx.Set(AuthTypeCtxVar, string(t))
}
