package httpbase

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// R is the envelope every JSON response is wrapped in.
type R struct {
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// OK responds with 200 and the given payload.
func OK(c *gin.Context, data any) {
	c.PureJSON(http.StatusOK, R{
		Msg:  "OK",
		Data: data,
	})
}

func BadRequest(c *gin.Context, errMsg string) {
	c.PureJSON(http.StatusBadRequest, R{
		Msg: errMsg,
	})
}

func ServerError(c *gin.Context, err error) {
	c.PureJSON(http.StatusInternalServerError, R{
		Msg: err.Error(),
	})
}

func UnauthorizedError(c *gin.Context, err error) {
	c.PureJSON(http.StatusUnauthorized, R{
		Msg: err.Error(),
	})
}

func NotFoundError(c *gin.Context, err error) {
	c.PureJSON(http.StatusNotFound, R{
		Msg: err.Error(),
	})
}
