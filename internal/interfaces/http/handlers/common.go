// Package handlers contains the gin HTTP handlers for the HeatQuest API.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edu008/HeatQuest/pkg/errors"
)

// userIDHeader carries the caller's identity.  Authentication itself is
// terminated upstream; the backend only needs a stable per-user key for
// quotas and mission ownership.
const userIDHeader = "X-User-ID"

// ErrorResponse is the error body returned by every endpoint.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError maps an application error onto its HTTP status and writes the
// structured body.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	msg := err.Error()
	if status >= 500 {
		// Internal detail stays in the logs.
		msg = "internal server error"
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Code: string(code), Message: msg})
}

func respondValidation(c *gin.Context, msg string) {
	respondError(c, errors.New(errors.ErrCodeValidation, msg))
}

// userID extracts the caller identity from the request headers.
func userID(c *gin.Context) string {
	return c.GetHeader(userIDHeader)
}

// queryFloat parses a required float query parameter.
func queryFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		respondValidation(c, "missing query parameter "+name)
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		respondValidation(c, "invalid query parameter "+name)
		return 0, false
	}
	return v, true
}

// queryBool parses an optional boolean query parameter with a default.
func queryBool(c *gin.Context, name string, def bool) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondValidation(c, "invalid query parameter "+name)
		return false, false
	}
	return v, true
}
