package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wyfcoding/goldtrading/internal/trading/domain"
)

func TestStatusForErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: quantity must be positive", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: GOLD_9999", domain.ErrTradingHalted), http.StatusConflict},
		{fmt.Errorf("%w: GOLD_9999", domain.ErrTradingPaused), http.StatusConflict},
		{fmt.Errorf("%w: SPOT", domain.ErrPriceUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("%w: THB -> USD", domain.ErrExchangeRateUnavailable), http.StatusServiceUnavailable},
		{domain.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{domain.ErrInsufficientHoldings, http.StatusUnprocessableEntity},
		{domain.ErrWalletNotFound, http.StatusNotFound},
		{errors.New("database gone"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), "error %v", tc.err)
	}
}
