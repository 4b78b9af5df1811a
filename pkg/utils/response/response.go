// Package response provides the unified error body of the HTTP API.
// Successful responses carry the payload as-is; errors use {code, message, request_id}.
package response

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/sentinel-search/pkg/errors"
	"github.com/kart-io/sentinel-search/pkg/infra/middleware/common"
)

// Response is the error response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		e = errors.OK
	}
	return &Response{
		Code:    e.Code,
		Message: e.Message(lang),
	}
}

// OK writes data with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(200, data)
}

// Fail writes the error body and aborts the chain. Non-Errno errors map to ErrInternal.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	if e == nil {
		e = errors.ErrInternal
	}
	lang := ""
	if strings.HasPrefix(c.GetHeader("Accept-Language"), "zh") {
		lang = "zh"
	}
	resp := Err(e, lang)
	resp.RequestID = common.GetRequestID(c.Request.Context())
	c.AbortWithStatusJSON(e.HTTPStatus(), resp)
}
