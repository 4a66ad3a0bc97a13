package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInstrument(t *testing.T) {
	cases := []struct {
		in   string
		want Instrument
		ok   bool
	}{
		{"SPOT", Spot, true},
		{"spot", Spot, true},
		{"GOLD_9999", Gold9999, true},
		{"gold9999", Gold9999, true},
		{"gold965_asso", Gold965Asso, true},
		{"Gold_965_MTS", Gold965MTS, true},
		{"PLATINUM", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseInstrument(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.in)
		}
	}
}

func TestInstrumentDefinitions(t *testing.T) {
	assert.Len(t, AllInstruments(), 6)

	def, ok := Spot.Define()
	require.True(t, ok)
	assert.Equal(t, USD, def.BaseCurrency)
	assert.Equal(t, "XAUUSD", def.ChartSymbol)
	assert.Equal(t, FeedChart, def.Feed)

	def, ok = Gold965Asso.Define()
	require.True(t, ok)
	assert.Equal(t, THB, def.BaseCurrency)
	assert.Equal(t, FeedDealer, def.Feed)

	assert.Equal(t, "gold9999", Gold9999.Key())
	assert.Equal(t, THB, Gold9999.BaseCurrency())
	assert.False(t, Instrument("PLATINUM").Valid())
}

func TestNewQuoteDerivesPrice(t *testing.T) {
	now := time.Now()

	q := NewQuote(decimal.NewFromInt(2000), decimal.NewFromInt(2010), SourceTradingView, now)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(2010)))

	// SellOut 缺失时回退到 BuyIn
	q = NewQuote(decimal.NewFromInt(2000), decimal.Zero, SourceDealer, now)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(2000)))

	zero := ZeroQuote(now)
	assert.True(t, zero.IsZero())
	assert.Equal(t, SourceStopped, zero.Source)
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	now := time.Now()
	original := &Snapshot{
		Timestamp: now,
		Quotes: map[Instrument]PriceQuote{
			Spot: NewQuote(decimal.NewFromInt(2400), decimal.NewFromInt(2401), SourceTradingView, now),
		},
	}

	clone := original.Clone()
	clone.Quotes[Spot] = ZeroQuote(now)

	q, ok := original.Quote(Spot)
	require.True(t, ok)
	assert.False(t, q.IsZero())

	var nilSnap *Snapshot
	_, ok = nilSnap.Quote(Spot)
	assert.False(t, ok)
	assert.Nil(t, nilSnap.Clone())
}
