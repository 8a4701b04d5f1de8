package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("redeem: %w", Wrap(ErrPromoLimitReached, cause))

	assert.ErrorIs(t, err, ErrPromoLimitReached)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeLimitExceeded, CodeOf(err))
	assert.Equal(t, http.StatusConflict, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidMonths))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrPromoNotFound))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(ErrNotYourReferral))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrInvalidSession))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(Upstream("panel", errors.New("timeout"))))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "promo code not found", PublicMessage(ErrPromoNotFound))
	assert.Equal(t, "invalid setting value: bad percent",
		PublicMessage(Wrap(ErrInvalidSetting, errors.New("bad percent"))))
	assert.Equal(t, "invalid setting value: bad percent",
		PublicMessage(fmt.Errorf("save: %w", Wrap(ErrInvalidSetting, errors.New("bad percent")))))
	assert.Equal(t, "boom", PublicMessage(errors.New("boom")))
}
