// Common helpers shared by HTTP handlers.

package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nasher721/note-clarity-sub000/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error to an HTTP status and writes the
// standard error body. The code rides in its own field, so the message
// carries only the human-readable text. Server-side error details are
// masked.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	msg := err.Error()
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
	}
	if errors.IsServerError(code) {
		msg = errors.DefaultMessageForCode(code)
	}

	c.JSON(status, ErrorResponse{
		Code:    string(code),
		Message: msg,
	})
}

// respondBadRequest writes a 400 for body binding failures, before the
// request ever reaches the application layer.
func respondBadRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    string(errors.ErrCodeBadRequest),
		Message: err.Error(),
	})
}
