package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"esas/internal/account"
	"esas/internal/attendance"
)

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

func badRequest(c *gin.Context, message string) {
	fail(c, http.StatusBadRequest, message)
}

// respondError maps service errors to one status code per category.
func respondError(c *gin.Context, err error) {
	var inactive *attendance.InactiveError
	switch {
	case errors.As(err, &inactive):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success":             false,
			"message":             attendance.ErrSessionNotActive.Error(),
			"session_datetime":    inactive.Start.UTC().Format(time.RFC3339),
			"qr_code_expiry_time": inactive.Expiry.UTC().Format(time.RFC3339),
			"server_time":         inactive.At.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, attendance.ErrInvalidDuration),
		errors.Is(err, attendance.ErrInvalidStatus),
		errors.Is(err, attendance.ErrInvalidInput),
		errors.Is(err, account.ErrInvalidAccount):
		fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, attendance.ErrStudentNotFound),
		errors.Is(err, attendance.ErrNotEnrolled),
		errors.Is(err, attendance.ErrForbidden):
		fail(c, http.StatusForbidden, err.Error())
	case errors.Is(err, attendance.ErrAssignmentNotFound),
		errors.Is(err, attendance.ErrSessionNotFound),
		errors.Is(err, attendance.ErrRecordNotFound):
		fail(c, http.StatusNotFound, err.Error())
	case errors.Is(err, attendance.ErrDuplicateRecord),
		errors.Is(err, account.ErrUsernameTaken):
		fail(c, http.StatusConflict, err.Error())
	default:
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		fail(c, http.StatusInternalServerError, "internal server error")
	}
}
