package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

func newTestClient(dealerURL, chartURL string) *Client {
	return NewClient(Config{
		DealerURL:      dealerURL,
		ChartURL:       chartURL,
		RequestTimeout: 2 * time.Second,
	})
}

func testWindow() domain.Window {
	return domain.DefaultWindow(time.Now())
}

func TestFetchDealerQuoteNumericFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("c"), "cache-busting param expected")
		// 商行接口不给 JSON Content-Type
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`{"buyIn9999":41850,"sellOut9999":41950.5,"buyIn965":40400,"sellOut965":40500,"buyInAsso":40450,"sellOutAsso":40550}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	quote, err := client.Fetch(context.Background(), domain.Gold9999MTS, testWindow())
	require.NoError(t, err)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(41850)))
	assert.True(t, quote.SellOut.Equal(decimal.NewFromFloat(41950.5)))
	assert.Equal(t, domain.SourceDealer, quote.Source)
}

func TestFetchDealerQuoteStringFieldsWithCommas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buyIn965":"40,400","sellOut965":"40,500","buyIn9999":"41,850","sellOut9999":"41,950"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	quote, err := client.Fetch(context.Background(), domain.Gold965MTS, testWindow())
	require.NoError(t, err)
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(40400)))
	assert.True(t, quote.SellOut.Equal(decimal.NewFromInt(40500)))
}

func TestFetchDealerQuoteAssociationSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buyInAsso":40450,"sellOutAsso":40550}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	quote, err := client.Fetch(context.Background(), domain.Gold965Asso, testWindow())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceAssociation, quote.Source)
}

func TestFetchDealerQuoteMissingPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buyIn9999":null,"sellOut9999":"n/a"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.Fetch(context.Background(), domain.Gold9999MTS, testWindow())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchDealerQuoteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	_, err := client.Fetch(context.Background(), domain.Gold965MTS, testWindow())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchChartQuoteUsesLastBar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "GLD9999", q.Get("symbol"))
		assert.Equal(t, "THB", q.Get("currencyCode"))
		assert.Equal(t, "500", q.Get("countback"))
		w.Write([]byte(`{"s":"ok","t":[1700000000,1700003600],"o":[41800,41850],"h":[41900,41980],"l":[41700,41820],"c":[41880,41950]}`))
	}))
	defer server.Close()

	client := newTestClient("", server.URL)
	quote, err := client.Fetch(context.Background(), domain.Gold9999, testWindow())
	require.NoError(t, err)
	// 取最后一根：open 为买入价，close 为卖出价
	assert.True(t, quote.BuyIn.Equal(decimal.NewFromInt(41850)))
	assert.True(t, quote.SellOut.Equal(decimal.NewFromInt(41950)))
	assert.Equal(t, domain.SourceTradingView, quote.Source)
	assert.Equal(t, time.Unix(1700003600, 0).Unix(), quote.AsOf.Unix())
}

func TestFetchChartSpotUsesUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XAUUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "USD", r.URL.Query().Get("currencyCode"))
		w.Write([]byte(`{"s":"ok","t":[1700000000],"o":[2400.5],"h":[2410],"l":[2395],"c":[2405.25]}`))
	}))
	defer server.Close()

	client := newTestClient("", server.URL)
	quote, err := client.Fetch(context.Background(), domain.Spot, testWindow())
	require.NoError(t, err)
	assert.True(t, quote.SellOut.Equal(decimal.NewFromFloat(2405.25)))
}

func TestFetchChartNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"s":"no_data"}`))
	}))
	defer server.Close()

	client := newTestClient("", server.URL)
	_, err := client.Fetch(context.Background(), domain.Gold965, testWindow())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)

	_, err = client.FetchChart(context.Background(), "GLD965", testWindow())
	assert.ErrorIs(t, err, domain.ErrFeedUnavailable)
}

func TestFetchUnknownInstrument(t *testing.T) {
	client := newTestClient("", "")
	_, err := client.Fetch(context.Background(), domain.Instrument("PLATINUM"), testWindow())
	assert.ErrorIs(t, err, domain.ErrUnknownInstrument)
}
