package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"holewatch/internal/services"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrDuplicateVote, http.StatusConflict},
		{fmt.Errorf("cast: %w", services.ErrValidationClosed), http.StatusConflict},
		{services.ErrConfirmationClosed, http.StatusConflict},
		{services.ErrInvalidTransition, http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{services.ErrDailyQuotaExceeded, http.StatusTooManyRequests},
		{services.ErrInvalidTargetState, http.StatusUnprocessableEntity},
		{fmt.Errorf("cast validation vote: %w", services.ErrTransientFailure), http.StatusServiceUnavailable},
		{services.ErrReportNotFound, http.StatusNotFound},
		{services.ErrNotificationNotFound, http.StatusNotFound},
		{services.ErrInvalidLocation, http.StatusBadRequest},
		{services.ErrEmptyComment, http.StatusBadRequest},
		{services.ErrForbidden, http.StatusForbidden},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
