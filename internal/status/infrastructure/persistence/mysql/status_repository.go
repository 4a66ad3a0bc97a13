// Package mysql 品种状态的 MySQL 仓储实现
package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/status/domain"
)

// StatusRepository 品种状态仓储
type StatusRepository struct {
	db *gorm.DB
}

// NewStatusRepository 创建品种状态仓储
func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

// Upsert 写入或更新品种状态
func (r *StatusRepository) Upsert(ctx context.Context, inst marketdomain.Instrument, state domain.State) error {
	record := &domain.InstrumentStatus{
		Instrument: string(inst),
		State:      string(state),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "updated_at"}),
	}).Create(record).Error
}

// GetAll 返回全部状态行
func (r *StatusRepository) GetAll(ctx context.Context) ([]*domain.InstrumentStatus, error) {
	var records []*domain.InstrumentStatus
	if err := r.db.WithContext(ctx).Order("instrument").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
