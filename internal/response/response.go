// Package response writes the JSON envelope shared by every endpoint:
// {success, message, data} on success and {success:false, message, errors} on failure.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bus_tracker/internal/apperrors"
)

type Envelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    interface{}            `json:"data,omitempty"`
	Errors  []apperrors.FieldError `json:"errors,omitempty"`
}

func OK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func Created(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

// Error answers with the status of err's kind. Untyped and internal errors
// are logged and hidden behind a generic message.
func Error(c *gin.Context, log logrus.FieldLogger, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Kind == apperrors.KindInternal {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, Envelope{Message: "internal server error"})
		return
	}
	c.AbortWithStatusJSON(appErr.Status(), Envelope{Message: appErr.Message, Errors: appErr.Fields})
}
