package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"classattend/internal/classroom"
	"classattend/internal/invite"
	"classattend/internal/ledger"
)

// statusOf maps service errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, classroom.ErrClassNotFound), errors.Is(err, invite.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, classroom.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, classroom.ErrNotEnrolled):
		return http.StatusForbidden
	case errors.Is(err, invite.ErrExpired):
		return http.StatusGone
	case errors.Is(err, classroom.ErrAlreadyEnrolled), errors.Is(err, classroom.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrTooEarly),
		errors.Is(err, ledger.ErrDateNotFound),
		errors.Is(err, ledger.ErrInvalidConfiguration),
		errors.Is(err, classroom.ErrOutOfRange),
		errors.Is(err, classroom.ErrLocationRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, classroom.ErrInvalidInput), errors.Is(err, classroom.ErrInvalidName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
