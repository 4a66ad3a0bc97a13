package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteSource 报价来源标识
const (
	SourceDealer      = "MTS"
	SourceTradingView = "TRADINGVIEW"
	SourceAssociation = "ASSOCIATION"
	SourceStopped     = "STOPPED"
)

// PriceQuote 单品种报价。Price 为便捷值：取 SellOut，SellOut 缺失时取 BuyIn。
type PriceQuote struct {
	// BuyIn 买入价（用户买入时适用）
	BuyIn decimal.Decimal `json:"buyIn"`
	// SellOut 卖出价（用户卖出时适用）
	SellOut decimal.Decimal `json:"sellOut"`
	// Price 便捷展示价
	Price decimal.Decimal `json:"price"`
	// Source 数据来源
	Source string `json:"source"`
	// AsOf 报价时间
	AsOf time.Time `json:"asOf"`
}

// NewQuote 构造报价并推导便捷展示价
func NewQuote(buyIn, sellOut decimal.Decimal, source string, asOf time.Time) PriceQuote {
	price := sellOut
	if price.IsZero() {
		price = buyIn
	}
	return PriceQuote{
		BuyIn:   buyIn,
		SellOut: sellOut,
		Price:   price,
		Source:  source,
		AsOf:    asOf,
	}
}

// ZeroQuote STOP 品种的强制零报价
func ZeroQuote(asOf time.Time) PriceQuote {
	return PriceQuote{
		BuyIn:   decimal.Zero,
		SellOut: decimal.Zero,
		Price:   decimal.Zero,
		Source:  SourceStopped,
		AsOf:    asOf,
	}
}

// IsZero 判断报价是否为全零
func (q PriceQuote) IsZero() bool {
	return q.BuyIn.IsZero() && q.SellOut.IsZero() && q.Price.IsZero()
}

// Snapshot 全品种一致性快照。发布后不可变，更新以换指针方式进行。
type Snapshot struct {
	// Timestamp 快照生成时间
	Timestamp time.Time `json:"timestamp"`
	// Quotes 各品种报价
	Quotes map[Instrument]PriceQuote `json:"quotes"`
}

// Quote 按品种取报价
func (s *Snapshot) Quote(inst Instrument) (PriceQuote, bool) {
	if s == nil {
		return PriceQuote{}, false
	}
	q, ok := s.Quotes[inst]
	return q, ok
}

// Clone 复制快照内容，用于构建下一版快照
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	quotes := make(map[Instrument]PriceQuote, len(s.Quotes))
	for k, v := range s.Quotes {
		quotes[k] = v
	}
	return &Snapshot{Timestamp: s.Timestamp, Quotes: quotes}
}
