package mysql

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wyfcoding/goldtrading/internal/trading/domain"
)

// TransactionRepository 成交记录仓储的 MySQL 实现
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository 创建成交记录仓储
func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 写入一条成交记录
func (r *TransactionRepository) Create(ctx context.Context, txn *domain.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// CreateBatch 批量写入
func (r *TransactionRepository) CreateBatch(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(txns, 100).Error; err != nil {
		return fmt.Errorf("create transactions: %w", err)
	}
	return nil
}

// UpdateStatus 按流水号更新状态与失败原因
func (r *TransactionRepository) UpdateStatus(ctx context.Context, transactionID string, status domain.TransactionStatus, failReason string) error {
	updates := map[string]interface{}{"status": status}
	if failReason != "" {
		updates["fail_reason"] = failReason
	}
	result := r.db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("transaction_id = ?", transactionID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("update transaction status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	return nil
}

// ListByUser 按用户倒序分页查询
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var txns []*domain.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&txns).Error
	if err != nil {
		return nil, fmt.Errorf("list transactions for %s: %w", userID, err)
	}
	return txns, nil
}

var _ domain.TransactionRepository = (*TransactionRepository)(nil)
