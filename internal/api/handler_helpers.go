package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourname/sleepcoach/internal"
	"github.com/yourname/sleepcoach/internal/response"
)

func HandleError(c *gin.Context, logger internal.Logger, err error, status int, msg string) {
	requestID := c.GetString("request_id")
	if status >= 500 {
		logger.Errorf("[request_id=%s] %s: %v", requestID, msg, err)
	} else {
		logger.Warnf("[request_id=%s] %s: %v", requestID, msg, err)
	}
	var resp response.APIResponse
	switch status {
	case 400:
		resp = response.BadRequest(msg + ": " + err.Error())
	case 404:
		resp = response.NotFound(msg + ": " + err.Error())
	case 409:
		resp = response.Conflict(msg + ": " + err.Error())
	case 500:
		resp = response.InternalError(msg + ": " + err.Error())
	default:
		resp = response.NewAppError(status, msg+": "+err.Error())
	}
	c.JSON(status, resp)
}

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrPrecededByMissingSleep),
		errors.Is(err, internal.ErrSessionAlreadyOpen),
		errors.Is(err, internal.ErrDuplicateSessionDate):
		return http.StatusConflict
	case errors.Is(err, internal.ErrGenerationFailed):
		return http.StatusBadGateway
	case errors.Is(err, internal.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError picks the status from the error itself.
func HandleServiceError(c *gin.Context, logger internal.Logger, err error, msg string) {
	HandleError(c, logger, err, StatusFor(err), msg)
}

func HandleSuccess(c *gin.Context, logger internal.Logger, data interface{}, meta map[string]any) {
	requestID := c.GetString("request_id")
	logger.Infof("[request_id=%s] Success", requestID)
	c.JSON(200, response.Success(data, meta))
}
