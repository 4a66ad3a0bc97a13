package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceHistoryRecord 行情历史记录，每个刷新周期每品种一行，只增不改
type PriceHistoryRecord struct {
	gorm.Model
	// Instrument 品种
	Instrument string `gorm:"column:instrument;type:varchar(20);index:idx_instrument_ts;not null"`
	// BuyIn 买入价
	BuyIn decimal.Decimal `gorm:"column:buy_in;type:decimal(32,18);not null"`
	// SellOut 卖出价
	SellOut decimal.Decimal `gorm:"column:sell_out;type:decimal(32,18);not null"`
	// Price 便捷展示价
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null"`
	// Source 数据来源
	Source string `gorm:"column:source;type:varchar(20)"`
	// Timestamp 快照时间
	Timestamp time.Time `gorm:"column:timestamp;index:idx_instrument_ts;not null"`
}

// TableName 指定表名
func (PriceHistoryRecord) TableName() string {
	return "price_history"
}

// HistoryRepository 行情历史仓储接口
type HistoryRepository interface {
	// AppendSnapshot 追加一个快照的全部品种记录
	AppendSnapshot(ctx context.Context, snapshot *Snapshot) error
	// Append 追加单品种记录
	Append(ctx context.Context, inst Instrument, quote PriceQuote) error
	// ListSnapshots 按时间窗查询全品种历史，按时间升序
	ListSnapshots(ctx context.Context, from, to time.Time, limit int) ([]*PriceHistoryRecord, error)
	// ListByInstrument 按品种查询历史，按时间升序
	ListByInstrument(ctx context.Context, inst Instrument, limit int) ([]*PriceHistoryRecord, error)
}
