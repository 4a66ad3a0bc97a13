// Package mysql 行情历史的 MySQL 仓储实现
package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

// HistoryRepository 行情历史仓储
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建行情历史仓储
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendSnapshot 追加一个快照的全部品种记录
func (r *HistoryRepository) AppendSnapshot(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot == nil || len(snapshot.Quotes) == 0 {
		return nil
	}

	records := make([]*domain.PriceHistoryRecord, 0, len(snapshot.Quotes))
	for inst, quote := range snapshot.Quotes {
		records = append(records, &domain.PriceHistoryRecord{
			Instrument: string(inst),
			BuyIn:      quote.BuyIn,
			SellOut:    quote.SellOut,
			Price:      quote.Price,
			Source:     quote.Source,
			Timestamp:  snapshot.Timestamp,
		})
	}
	return r.db.WithContext(ctx).Create(&records).Error
}

// Append 追加单品种记录
func (r *HistoryRepository) Append(ctx context.Context, inst domain.Instrument, quote domain.PriceQuote) error {
	record := &domain.PriceHistoryRecord{
		Instrument: string(inst),
		BuyIn:      quote.BuyIn,
		SellOut:    quote.SellOut,
		Price:      quote.Price,
		Source:     quote.Source,
		Timestamp:  quote.AsOf,
	}
	return r.db.WithContext(ctx).Create(record).Error
}

// ListSnapshots 按时间窗查询全品种历史，按时间升序
func (r *HistoryRepository) ListSnapshots(ctx context.Context, from, to time.Time, limit int) ([]*domain.PriceHistoryRecord, error) {
	if limit <= 0 || limit > 5000 {
		limit = 500
	}
	query := r.db.WithContext(ctx).Model(&domain.PriceHistoryRecord{})
	if !from.IsZero() {
		query = query.Where("timestamp >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("timestamp <= ?", to)
	}

	var records []*domain.PriceHistoryRecord
	if err := query.Order("timestamp DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, err
	}

	// 倒序取最近 limit 条后恢复升序
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// ListByInstrument 按品种查询历史，按时间升序
func (r *HistoryRepository) ListByInstrument(ctx context.Context, inst domain.Instrument, limit int) ([]*domain.PriceHistoryRecord, error) {
	if limit <= 0 || limit > 5000 {
		limit = 500
	}
	var records []*domain.PriceHistoryRecord
	err := r.db.WithContext(ctx).
		Where("instrument = ?", string(inst)).
		Order("timestamp DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}
