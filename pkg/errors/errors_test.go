package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
}

func TestCloneMatchesTemplateCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", Clone(ErrNotFound, "template not found"))
	assert.True(t, stderrors.Is(err, ErrNotFound))
	assert.False(t, stderrors.Is(err, ErrForbidden))
	assert.Equal(t, "template not found", FromError(err).Message)
}

func TestFromErrorMapsContextExpiry(t *testing.T) {
	err := fmt.Errorf("list active templates: %w", context.DeadlineExceeded)
	appErr := FromError(err)
	assert.Equal(t, ErrTimeout.Code, appErr.Code)
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Status)
	assert.True(t, stderrors.Is(appErr, context.DeadlineExceeded))
	assert.Nil(t, FromError(nil))
}
