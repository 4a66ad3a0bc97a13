package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeAction 交易方向
type TradeAction string

const (
	// ActionBuy 买入
	ActionBuy TradeAction = "BUY"
	// ActionSell 卖出
	ActionSell TradeAction = "SELL"
)

// Valid 判断方向是否合法
func (a TradeAction) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// TransactionStatus 成交记录状态
type TransactionStatus string

const (
	// StatusPending 已受理，钱包变更进行中
	StatusPending TransactionStatus = "PENDING"
	// StatusCompleted 钱包变更全部落库
	StatusCompleted TransactionStatus = "COMPLETED"
	// StatusFailed 钱包变更失败，无资金影响
	StatusFailed TransactionStatus = "FAILED"
	// StatusCancelled 已取消
	StatusCancelled TransactionStatus = "CANCELLED"
)

// Transaction 成交记录，只追加不回改（状态流转除外）
type Transaction struct {
	gorm.Model
	// TransactionID 业务流水号
	TransactionID string `gorm:"column:transaction_id;type:varchar(36);uniqueIndex;not null" json:"transactionId"`
	// UserID 用户ID
	UserID string `gorm:"column:user_id;type:varchar(64);index;not null" json:"userId"`
	// Instrument 品种
	Instrument string `gorm:"column:instrument;type:varchar(20);not null" json:"goldType"`
	// Action 方向
	Action TradeAction `gorm:"column:action;type:varchar(10);not null" json:"action"`
	// Quantity 数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(32,18);not null" json:"quantity"`
	// Price 成交单价（结算币种）
	Price decimal.Decimal `gorm:"column:price;type:decimal(32,18);not null" json:"price"`
	// Total 成交总额（结算币种）
	Total decimal.Decimal `gorm:"column:total;type:decimal(32,18);not null" json:"total"`
	// Currency 计价货币
	Currency string `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	// Status 状态
	Status TransactionStatus `gorm:"column:status;type:varchar(12);not null" json:"status"`
	// FailReason 失败原因
	FailReason string `gorm:"column:fail_reason;type:varchar(255)" json:"failReason,omitempty"`
}

// TableName 指定表名
func (Transaction) TableName() string {
	return "transactions"
}

// TransactionRepository 成交记录仓储
type TransactionRepository interface {
	// Create 写入一条成交记录
	Create(ctx context.Context, txn *Transaction) error
	// CreateBatch 批量写入（批量成交接口）
	CreateBatch(ctx context.Context, txns []*Transaction) error
	// UpdateStatus 按流水号更新状态与失败原因
	UpdateStatus(ctx context.Context, transactionID string, status TransactionStatus, failReason string) error
	// ListByUser 按用户倒序分页查询
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*Transaction, error)
}
