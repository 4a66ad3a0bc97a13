package application

import (
	"time"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

// SnapshotPayload 对外快照载荷，键为品种的 JSON 键（spot、gold9999…）
type SnapshotPayload struct {
	// Timestamp 快照时间
	Timestamp time.Time `json:"timestamp"`
	// Prices 各品种报价
	Prices map[string]domain.PriceQuote `json:"prices"`
}

// InstrumentQuote 单品种报价条目，推送通道使用的数组元素形式
type InstrumentQuote struct {
	// GoldType 品种标识
	GoldType domain.Instrument `json:"goldType"`
	domain.PriceQuote
}

// SnapshotDTO 将快照转为对外载荷
func SnapshotDTO(s *domain.Snapshot) SnapshotPayload {
	payload := SnapshotPayload{Prices: map[string]domain.PriceQuote{}}
	if s == nil {
		return payload
	}
	payload.Timestamp = s.Timestamp
	for inst, quote := range s.Quotes {
		payload.Prices[inst.Key()] = quote
	}
	return payload
}

// SnapshotList 将快照转为按定义顺序排列的条目数组
func SnapshotList(s *domain.Snapshot) []InstrumentQuote {
	if s == nil {
		return nil
	}
	out := make([]InstrumentQuote, 0, len(s.Quotes))
	for _, inst := range domain.AllInstruments() {
		if quote, ok := s.Quotes[inst]; ok {
			out = append(out, InstrumentQuote{GoldType: inst, PriceQuote: quote})
		}
	}
	return out
}
