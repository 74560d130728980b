// File: internal/common/response.go
package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Envelope is the body of every API response: {"data": ..., "message": "...", "success": bool}.
type Envelope struct {
	Data    interface{} `json:"data"`
	Message string      `json:"message"`
	Success bool        `json:"success"`
}

// RespondWithError sends an error envelope and aborts the chain.
func RespondWithError(c *gin.Context, err error) {
	apiErr, ok := IsAPIError(err)
	if !ok {
		if _, exists := c.Get(LoggerKey); exists {
			GetLoggerFromContext(c, nil).Error("Unhandled internal error being wrapped", zap.Error(err))
		}
		apiErr = ErrInternalServer
	}

	var data interface{} = []interface{}{}
	if apiErr.Details != nil {
		data = apiErr.Details
	}
	c.AbortWithStatusJSON(apiErr.StatusCode, Envelope{Data: data, Message: apiErr.Message, Success: false})
}

// Respond sends an envelope with an explicit status and success flag.
func Respond(c *gin.Context, statusCode int, data interface{}, message string, success bool) {
	if data == nil {
		data = []interface{}{}
	}
	c.JSON(statusCode, Envelope{Data: data, Message: message, Success: success})
}

// RespondOK sends a 200 OK response.
func RespondOK(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusOK, data, message, true)
}

// RespondCreated sends a 201 Created response.
func RespondCreated(c *gin.Context, message string, data interface{}) {
	Respond(c, http.StatusCreated, data, message, true)
}
