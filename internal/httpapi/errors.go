package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IngaleChinmay04/MongoNexus/internal/apperr"
)

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string       `json:"error"`
	Details []fieldError `json:"details,omitempty"`
}

func statusFor(err error) int {
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case apperr.IsConnectivity(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// abortWithError answers err as JSON. Only sanitized text leaves the
// process.
func abortWithError(c *gin.Context, err error) {
	resp := errorResponse{Error: apperr.Sanitize(err)}

	var many apperr.ValidationErrors
	var one *apperr.ValidationError
	switch {
	case errors.As(err, &many):
		for _, e := range many {
			resp.Details = append(resp.Details, fieldError{Field: e.Field, Message: e.Message})
		}
	case errors.As(err, &one):
		resp.Details = []fieldError{{Field: one.Field, Message: one.Message}}
	}

	c.AbortWithStatusJSON(statusFor(err), resp)
}
