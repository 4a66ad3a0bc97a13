package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

func TestFallbackRateBeforeFirstRefresh(t *testing.T) {
	svc := NewRateService(Config{URL: "http://127.0.0.1:0", FallbackTHBPerUSD: 35})

	rates := svc.GetRates()
	assert.True(t, rates.Fallback)
	assert.True(t, rates.THBPerUSD.Equal(decimal.NewFromInt(35)))
}

func TestRefreshUpdatesRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"USD","rates":{"THB":36.5,"EUR":0.9}}`))
	}))
	defer server.Close()

	svc := NewRateService(Config{URL: server.URL})
	require.NoError(t, svc.Refresh(context.Background()))

	rates := svc.GetRates()
	assert.False(t, rates.Fallback)
	assert.True(t, rates.THBPerUSD.Equal(decimal.NewFromFloat(36.5)))
}

func TestRefreshFailureKeepsPreviousRate(t *testing.T) {
	ok := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ok {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"rates":{"THB":36.0}}`))
	}))
	defer server.Close()

	svc := NewRateService(Config{URL: server.URL})
	require.NoError(t, svc.Refresh(context.Background()))

	ok = false
	assert.Error(t, svc.Refresh(context.Background()))
	assert.True(t, svc.GetRates().THBPerUSD.Equal(decimal.NewFromInt(36)))
}

func TestRefreshRejectsMissingTHB(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{"EUR":0.9}}`))
	}))
	defer server.Close()

	svc := NewRateService(Config{URL: server.URL})
	assert.Error(t, svc.Refresh(context.Background()))
	assert.True(t, svc.GetRates().Fallback)
}

func TestConvert(t *testing.T) {
	svc := NewRateService(Config{URL: "http://127.0.0.1:0", FallbackTHBPerUSD: 35})

	thb, err := svc.Convert(decimal.NewFromInt(100), marketdomain.USD, marketdomain.THB)
	require.NoError(t, err)
	assert.True(t, thb.Equal(decimal.NewFromInt(3500)))

	usd, err := svc.Convert(decimal.NewFromInt(3500), marketdomain.THB, marketdomain.USD)
	require.NoError(t, err)
	assert.True(t, usd.Equal(decimal.NewFromInt(100)))

	same, err := svc.Convert(decimal.NewFromInt(7), marketdomain.THB, marketdomain.THB)
	require.NoError(t, err)
	assert.True(t, same.Equal(decimal.NewFromInt(7)))

	_, err = svc.Convert(decimal.NewFromInt(1), marketdomain.Currency("EUR"), marketdomain.THB)
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}
