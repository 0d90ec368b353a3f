package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"thepresent-be/internal/errs"
	"thepresent-be/internal/logger"
)

type errorBody struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respondError(c *gin.Context, err error) {
	var (
		status  int
		message string
	)

	switch errs.KindOf(err) {
	case errs.KindValidation:
		status, message = http.StatusBadRequest, errMessage(err)
	case errs.KindUnauthenticated:
		status, message = http.StatusUnauthorized, errMessage(err)
	case errs.KindForbidden:
		status, message = http.StatusForbidden, errMessage(err)
	case errs.KindNotFound:
		status, message = http.StatusNotFound, errMessage(err)
	case errs.KindUpstream:
		if errs.IsRetryable(err) {
			status = http.StatusGatewayTimeout
		} else {
			status = http.StatusBadGateway
		}
		message = errMessage(err)
		logger.FromCtx(c.Request.Context()).Error("upstream failure",
			zap.String("path", c.FullPath()), zap.Error(err))
	default:
		// full detail stays in the log, the caller gets a generic line
		status, message = http.StatusInternalServerError, "Internal server error"
		logger.FromCtx(c.Request.Context()).Error("unhandled error",
			zap.String("path", c.FullPath()), zap.Error(err))
	}

	c.AbortWithStatusJSON(status, errorBody{Message: message, Errors: errs.FieldsOf(err)})
}

func errMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
