// Package mysql 交易上下文的 MySQL 仓储实现
package mysql

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/trading/domain"
)

// WalletRepository 钱包仓储的 MySQL 实现。
// 所有资金变更都是带守卫条件的单语句 UPDATE：守卫不满足时语句命中 0 行，
// 由此区分“不足”与“成功”，并发下不会写出负余额。
type WalletRepository struct {
	db *gorm.DB
}

// NewWalletRepository 创建钱包仓储
func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate 读取钱包，不存在则建零余额钱包
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		FirstOrCreate(&wallet, &domain.Wallet{UserID: userID}).Error
	if err != nil {
		return nil, fmt.Errorf("get or create wallet for %s: %w", userID, err)
	}
	return &wallet, nil
}

// GetHoldings 返回用户全部持仓
func (r *WalletRepository) GetHoldings(ctx context.Context, userID string) ([]*domain.WalletHolding, error) {
	var holdings []*domain.WalletHolding
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("instrument ASC").
		Find(&holdings).Error
	if err != nil {
		return nil, fmt.Errorf("list holdings for %s: %w", userID, err)
	}
	return holdings, nil
}

func balanceColumn(currency marketdomain.Currency) string {
	if currency == marketdomain.USD {
		return "usd_balance"
	}
	return "thb_balance"
}

// Credit 入账
func (r *WalletRepository) Credit(tx *gorm.DB, userID string, currency marketdomain.Currency, amount decimal.Decimal) error {
	column := balanceColumn(currency)
	result := tx.Model(&domain.Wallet{}).
		Where("user_id = ?", userID).
		Update(column, gorm.Expr(column+" + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("credit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// Debit 出账。WHERE 里带余额守卫，命中 0 行即余额不足。
func (r *WalletRepository) Debit(tx *gorm.DB, userID string, currency marketdomain.Currency, amount decimal.Decimal) error {
	column := balanceColumn(currency)
	result := tx.Model(&domain.Wallet{}).
		Where("user_id = ? AND "+column+" >= ?", userID, amount).
		Update(column, gorm.Expr(column+" - ?", amount))
	if result.Error != nil {
		return fmt.Errorf("debit wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&domain.Wallet{}).Where("user_id = ?", userID).Count(&count).Error; err == nil && count == 0 {
			return domain.ErrWalletNotFound
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

// AddHolding 加仓。平均成本在同一条语句里按旧值做加权平均，
// MySQL 的 SET 子句从左到右求值，average_cost 必须先于 quantity 更新。
func (r *WalletRepository) AddHolding(tx *gorm.DB, userID string, inst marketdomain.Instrument, quantity, unitCost decimal.Decimal) error {
	err := tx.Exec(`
		INSERT INTO wallet_holdings (created_at, updated_at, user_id, instrument, quantity, average_cost)
		VALUES (NOW(), NOW(), ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			average_cost = (average_cost * quantity + ? * ?) / (quantity + ?),
			quantity = quantity + ?,
			updated_at = NOW()`,
		userID, string(inst), quantity, unitCost,
		unitCost, quantity, quantity,
		quantity,
	).Error
	if err != nil {
		return fmt.Errorf("add holding: %w", err)
	}
	return nil
}

// ReduceHolding 减仓。WHERE 带持仓守卫；清仓时平均成本同语句归零，
// average_cost 先于 quantity 更新，判断用的是旧持仓量。
func (r *WalletRepository) ReduceHolding(tx *gorm.DB, userID string, inst marketdomain.Instrument, quantity decimal.Decimal) error {
	result := tx.Exec(`
		UPDATE wallet_holdings
		SET average_cost = IF(quantity - ? <= 0, 0, average_cost),
			quantity = quantity - ?,
			updated_at = NOW()
		WHERE user_id = ? AND instrument = ? AND quantity >= ?`,
		quantity, quantity, userID, string(inst), quantity,
	)
	if result.Error != nil {
		return fmt.Errorf("reduce holding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientHoldings
	}
	return nil
}

var _ domain.WalletRepository = (*WalletRepository)(nil)
