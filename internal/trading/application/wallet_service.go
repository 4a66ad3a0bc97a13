package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/internal/trading/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

// RateConverter 币种换算
type RateConverter interface {
	Convert(amount decimal.Decimal, from, to marketdomain.Currency) (decimal.Decimal, error)
}

// WalletView 钱包查询结果：余额加全部持仓
type WalletView struct {
	// Wallet 钱包余额
	Wallet *domain.Wallet `json:"wallet"`
	// Holdings 持仓
	Holdings []*domain.WalletHolding `json:"holdings"`
}

// WalletService 钱包用例：查询、充值、提现、双币互换
type WalletService struct {
	runner  TxRunner
	wallets domain.WalletRepository
	rates   RateConverter
}

// NewWalletService 创建钱包服务
func NewWalletService(runner TxRunner, wallets domain.WalletRepository, rates RateConverter) *WalletService {
	return &WalletService{runner: runner, wallets: wallets, rates: rates}
}

// Get 查询钱包与持仓，首次访问自动建钱包
func (s *WalletService) Get(ctx context.Context, userID string) (*WalletView, error) {
	wallet, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.wallets.GetHoldings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &WalletView{Wallet: wallet, Holdings: holdings}, nil
}

func validateAmount(currency marketdomain.Currency, amount decimal.Decimal) error {
	if !currency.Valid() {
		return fmt.Errorf("%w: unsupported currency %q", domain.ErrValidation, currency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	return nil
}

// Deposit 充值
func (s *WalletService) Deposit(ctx context.Context, userID string, currency marketdomain.Currency, amount decimal.Decimal) (*WalletView, error) {
	if err := validateAmount(currency, amount); err != nil {
		return nil, err
	}
	if _, err := s.wallets.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.wallets.Credit(tx, userID, currency, amount)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Wallet deposit", "user_id", userID, "currency", currency, "amount", amount)
	return s.Get(ctx, userID)
}

// Withdraw 提现，余额不足返回 ErrInsufficientFunds
func (s *WalletService) Withdraw(ctx context.Context, userID string, currency marketdomain.Currency, amount decimal.Decimal) (*WalletView, error) {
	if err := validateAmount(currency, amount); err != nil {
		return nil, err
	}
	if _, err := s.wallets.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		return s.wallets.Debit(tx, userID, currency, amount)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Wallet withdrawal", "user_id", userID, "currency", currency, "amount", amount)
	return s.Get(ctx, userID)
}

// Exchange 双币互换：按当前汇率把 from 币种的 amount 换成 to 币种。
// 出入账在同一事务内完成。
func (s *WalletService) Exchange(ctx context.Context, userID string, from, to marketdomain.Currency, amount decimal.Decimal) (*WalletView, error) {
	if err := validateAmount(from, amount); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unsupported currency %q", domain.ErrValidation, to)
	}
	if from == to {
		return nil, fmt.Errorf("%w: currencies must differ", domain.ErrValidation)
	}
	converted, err := s.rates.Convert(amount, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if _, err := s.wallets.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.wallets.Debit(tx, userID, from, amount); err != nil {
			return err
		}
		return s.wallets.Credit(tx, userID, to, converted)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "Wallet exchange",
		"user_id", userID, "from", from, "to", to,
		"amount", amount, "converted", converted)
	return s.Get(ctx, userID)
}
