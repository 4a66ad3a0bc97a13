// Package domain 交易上下文的领域模型：钱包、持仓、成交记录
package domain

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
)

// Wallet 用户钱包，双币种余额
type Wallet struct {
	gorm.Model
	// UserID 用户ID
	UserID string `gorm:"column:user_id;type:varchar(64);uniqueIndex;not null" json:"userId"`
	// THBBalance 泰铢余额
	THBBalance decimal.Decimal `gorm:"column:thb_balance;type:decimal(32,18);not null;default:0" json:"thbBalance"`
	// USDBalance 美元余额
	USDBalance decimal.Decimal `gorm:"column:usd_balance;type:decimal(32,18);not null;default:0" json:"usdBalance"`
}

// TableName 指定表名
func (Wallet) TableName() string {
	return "wallets"
}

// Balance 按货币取余额
func (w *Wallet) Balance(currency marketdomain.Currency) decimal.Decimal {
	if currency == marketdomain.USD {
		return w.USDBalance
	}
	return w.THBBalance
}

// WalletHolding 用户某品种的持仓。AverageCost 以品种原生货币计价，
// 加仓时按加权平均滚动更新，减仓不变，清仓归零。
type WalletHolding struct {
	gorm.Model
	// UserID 用户ID
	UserID string `gorm:"column:user_id;type:varchar(64);uniqueIndex:idx_user_instrument;not null" json:"userId"`
	// Instrument 品种
	Instrument string `gorm:"column:instrument;type:varchar(20);uniqueIndex:idx_user_instrument;not null" json:"goldType"`
	// Quantity 持仓数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(32,18);not null;default:0" json:"quantity"`
	// AverageCost 平均成本（品种原生货币单价）
	AverageCost decimal.Decimal `gorm:"column:average_cost;type:decimal(32,18);not null;default:0" json:"averageCost"`
}

// TableName 指定表名
func (WalletHolding) TableName() string {
	return "wallet_holdings"
}

// WalletRepository 钱包仓储。余额与持仓的变更都要求带守卫条件的
// 单语句更新：条件不满足时返回业务错误而不是写出负值。
type WalletRepository interface {
	// GetOrCreate 读取钱包，不存在则建零余额钱包
	GetOrCreate(ctx context.Context, userID string) (*Wallet, error)
	// GetHoldings 返回用户全部持仓
	GetHoldings(ctx context.Context, userID string) ([]*WalletHolding, error)
	// Credit 入账
	Credit(tx *gorm.DB, userID string, currency marketdomain.Currency, amount decimal.Decimal) error
	// Debit 出账，余额不足返回 ErrInsufficientFunds
	Debit(tx *gorm.DB, userID string, currency marketdomain.Currency, amount decimal.Decimal) error
	// AddHolding 加仓并滚动更新加权平均成本
	AddHolding(tx *gorm.DB, userID string, inst marketdomain.Instrument, quantity, unitCost decimal.Decimal) error
	// ReduceHolding 减仓，持仓不足返回 ErrInsufficientHoldings；清仓时平均成本归零
	ReduceHolding(tx *gorm.DB, userID string, inst marketdomain.Instrument, quantity decimal.Decimal) error
}
