package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform body of every JSON response.
type Envelope struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error part of a failed response.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
}

func OK(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Paginated writes a list response with pagination metadata.
func Paginated(c *gin.Context, message string, data, meta any) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data, Meta: meta})
}

// Fail writes an error envelope and aborts the chain.
func Fail(c *gin.Context, status int, message string, body ErrorBody) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message, Error: &body})
}
