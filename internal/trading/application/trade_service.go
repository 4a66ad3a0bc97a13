// Package application 交易用例：下单、批量成交、钱包与流水查询
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	statusdomain "github.com/wyfcoding/goldtrading/internal/status/domain"
	"github.com/wyfcoding/goldtrading/internal/trading/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
	"github.com/wyfcoding/goldtrading/pkg/metrics"
)

// PriceProvider 报价来源，取当前快照
type PriceProvider interface {
	Latest() (*marketdomain.Snapshot, bool)
}

// StatusProvider 品种状态来源
type StatusProvider interface {
	Get(ctx context.Context, inst marketdomain.Instrument) statusdomain.State
}

// TxRunner 事务执行器
type TxRunner interface {
	WithTx(ctx context.Context, fn func(*gorm.DB) error) error
}

// EventPublisher 事件发布抽象（Kafka）
type EventPublisher interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

// ExecuteRequest 下单请求
type ExecuteRequest struct {
	// UserID 用户ID
	UserID string `json:"userId"`
	// Instrument 品种
	Instrument string `json:"goldType" binding:"required"`
	// Action 方向 BUY/SELL
	Action domain.TradeAction `json:"action" binding:"required"`
	// Quantity 数量
	Quantity decimal.Decimal `json:"quantity" binding:"required"`
	// Currency 结算币种 THB/USD，与品种原生货币不同时按当前汇率折算
	Currency marketdomain.Currency `json:"currency" binding:"required"`
}

// BulkTradeItem 批量成交条目。价格由调用方提供（外部已清算），不取快照。
type BulkTradeItem struct {
	// Instrument 品种
	Instrument string `json:"goldType"`
	// Action 方向 BUY/SELL
	Action domain.TradeAction `json:"action"`
	// Quantity 数量
	Quantity decimal.Decimal `json:"quantity"`
	// Price 成交单价
	Price decimal.Decimal `json:"price"`
	// Currency 计价币种，缺省 THB
	Currency marketdomain.Currency `json:"currency"`
}

// TradeServiceOptions 可选依赖
type TradeServiceOptions struct {
	// Events 事件发布器，可为 nil
	Events EventPublisher
	// TradeTopic 成交事件主题
	TradeTopic string
	// Metrics 指标，可为 nil
	Metrics *metrics.Metrics
}

// TradeService 交易服务。
// 下单流程：校验 → 状态准入 → 取价 → 记 PENDING 流水 → 事务内变更钱包
// → 流水置终态。钱包变更全部走仓储的守卫式单语句更新，并发下单不会透支。
type TradeService struct {
	runner   TxRunner
	wallets  domain.WalletRepository
	txns     domain.TransactionRepository
	prices   PriceProvider
	statuses StatusProvider
	rates    RateConverter
	opts     TradeServiceOptions
}

// NewTradeService 创建交易服务
func NewTradeService(
	runner TxRunner,
	wallets domain.WalletRepository,
	txns domain.TransactionRepository,
	prices PriceProvider,
	statuses StatusProvider,
	rates RateConverter,
	opts TradeServiceOptions,
) *TradeService {
	return &TradeService{
		runner:   runner,
		wallets:  wallets,
		txns:     txns,
		prices:   prices,
		statuses: statuses,
		rates:    rates,
		opts:     opts,
	}
}

// resolve 校验请求并解析出品种和原生货币成交价。
// BUY 用卖方报价 BuyIn，SELL 用买方报价 SellOut。
func (s *TradeService) resolve(ctx context.Context, req ExecuteRequest) (marketdomain.Instrument, decimal.Decimal, error) {
	inst, ok := marketdomain.ParseInstrument(req.Instrument)
	if !ok {
		return "", decimal.Zero, fmt.Errorf("%w: unknown instrument %q", domain.ErrValidation, req.Instrument)
	}
	if !req.Action.Valid() {
		return "", decimal.Zero, fmt.Errorf("%w: action must be BUY or SELL", domain.ErrValidation)
	}
	if !req.Quantity.IsPositive() {
		return "", decimal.Zero, fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
	}
	if !req.Currency.Valid() {
		return "", decimal.Zero, fmt.Errorf("%w: currency must be THB or USD", domain.ErrValidation)
	}

	switch s.statuses.Get(ctx, inst) {
	case statusdomain.StateStop:
		return "", decimal.Zero, fmt.Errorf("%w: %s", domain.ErrTradingHalted, inst)
	case statusdomain.StatePause:
		return "", decimal.Zero, fmt.Errorf("%w: %s", domain.ErrTradingPaused, inst)
	}

	snapshot, ok := s.prices.Latest()
	if !ok {
		return "", decimal.Zero, fmt.Errorf("%w: no snapshot yet", domain.ErrPriceUnavailable)
	}
	quote, ok := snapshot.Quote(inst)
	if !ok {
		return "", decimal.Zero, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, inst)
	}
	price := quote.SellOut
	if req.Action == domain.ActionBuy {
		price = quote.BuyIn
	}
	if !price.IsPositive() {
		return "", decimal.Zero, fmt.Errorf("%w: %s", domain.ErrPriceUnavailable, inst)
	}
	return inst, price, nil
}

// Execute 执行一笔交易，返回终态流水。成交按请求币种结算，
// 与品种原生货币不同时按当前汇率折算单价；平均成本始终按原生货币记账。
func (s *TradeService) Execute(ctx context.Context, req ExecuteRequest) (*domain.Transaction, error) {
	started := time.Now()

	inst, basePrice, err := s.resolve(ctx, req)
	if err != nil {
		s.observe(req.Action, "rejected", started)
		return nil, err
	}

	currency := req.Currency
	price := basePrice
	if currency != inst.BaseCurrency() {
		price, err = s.convertPrice(basePrice, inst.BaseCurrency(), currency)
		if err != nil {
			s.observe(req.Action, "rejected", started)
			return nil, err
		}
	}
	total := price.Mul(req.Quantity)

	wallet, err := s.wallets.GetOrCreate(ctx, req.UserID)
	if err != nil {
		s.observe(req.Action, "failed", started)
		return nil, err
	}

	// 预检只负责给出差额明细，防透支的守卫在仓储的单语句更新里
	if req.Action == domain.ActionBuy {
		if avail := wallet.Balance(currency); avail.LessThan(total) {
			s.observe(req.Action, "rejected", started)
			return nil, fmt.Errorf("%w: %s required %s, available %s",
				domain.ErrInsufficientFunds, currency, total, avail)
		}
	} else {
		held, err := s.heldQuantity(ctx, req.UserID, inst)
		if err != nil {
			s.observe(req.Action, "failed", started)
			return nil, err
		}
		if held.LessThan(req.Quantity) {
			s.observe(req.Action, "rejected", started)
			return nil, fmt.Errorf("%w: %s required %s, available %s",
				domain.ErrInsufficientHoldings, inst, req.Quantity, held)
		}
	}

	txn := &domain.Transaction{
		TransactionID: uuid.NewString(),
		UserID:        req.UserID,
		Instrument:    string(inst),
		Action:        req.Action,
		Quantity:      req.Quantity,
		Price:         price,
		Total:         total,
		Currency:      string(currency),
		Status:        domain.StatusPending,
	}
	if err := s.txns.Create(ctx, txn); err != nil {
		s.observe(req.Action, "failed", started)
		return nil, err
	}

	execErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if req.Action == domain.ActionBuy {
			if err := s.wallets.Debit(tx, req.UserID, currency, total); err != nil {
				return err
			}
			// 平均成本按原生货币单价滚动，换汇结算不影响成本口径
			return s.wallets.AddHolding(tx, req.UserID, inst, req.Quantity, basePrice)
		}
		if err := s.wallets.ReduceHolding(tx, req.UserID, inst, req.Quantity); err != nil {
			return err
		}
		return s.wallets.Credit(tx, req.UserID, currency, total)
	})

	if execErr != nil {
		txn.Status = domain.StatusFailed
		txn.FailReason = execErr.Error()
		if err := s.txns.UpdateStatus(ctx, txn.TransactionID, domain.StatusFailed, execErr.Error()); err != nil {
			logger.Error(ctx, "Failed to mark transaction failed", "transaction_id", txn.TransactionID, "error", err)
		}
		s.observe(req.Action, "failed", started)
		logger.Warn(ctx, "Trade failed",
			"transaction_id", txn.TransactionID, "user_id", req.UserID,
			"instrument", inst, "action", req.Action, "error", execErr)
		return txn, execErr
	}

	txn.Status = domain.StatusCompleted
	if err := s.txns.UpdateStatus(ctx, txn.TransactionID, domain.StatusCompleted, ""); err != nil {
		logger.Error(ctx, "Failed to mark transaction completed", "transaction_id", txn.TransactionID, "error", err)
	}
	s.observe(req.Action, "completed", started)
	s.publish(ctx, txn)

	logger.Info(ctx, "Trade completed",
		"transaction_id", txn.TransactionID, "user_id", req.UserID,
		"instrument", inst, "action", req.Action,
		"quantity", req.Quantity, "price", price, "total", total)
	return txn, nil
}

// convertPrice 把原生货币单价折算到结算币种，折算不可用时返回
// ErrExchangeRateUnavailable
func (s *TradeService) convertPrice(basePrice decimal.Decimal, from, to marketdomain.Currency) (decimal.Decimal, error) {
	if s.rates == nil {
		return decimal.Zero, fmt.Errorf("%w: no rate source configured", domain.ErrExchangeRateUnavailable)
	}
	price, err := s.rates.Convert(basePrice, from, to)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrExchangeRateUnavailable, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s -> %s", domain.ErrExchangeRateUnavailable, from, to)
	}
	return price, nil
}

// heldQuantity 读取用户某品种的当前持仓数量，未持有返回零
func (s *TradeService) heldQuantity(ctx context.Context, userID string, inst marketdomain.Instrument) (decimal.Decimal, error) {
	holdings, err := s.wallets.GetHoldings(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, h := range holdings {
		if h.Instrument == string(inst) {
			return h.Quantity, nil
		}
	}
	return decimal.Zero, nil
}

// ExecuteBulk 批量成交落档：逐条校验与状态准入，非法条目跳过不拦整批，
// 合法条目按调用方给定价格落为 PENDING 流水。不触碰钱包，
// 用于外部已清算的批量回补。
func (s *TradeService) ExecuteBulk(ctx context.Context, userID string, items []BulkTradeItem) ([]*domain.Transaction, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrValidation)
	}

	txns := make([]*domain.Transaction, 0, len(items))
	for i, item := range items {
		inst, ok := marketdomain.ParseInstrument(item.Instrument)
		if !ok || !item.Action.Valid() || !item.Quantity.IsPositive() || !item.Price.IsPositive() {
			logger.Warn(ctx, "Skipping invalid bulk trade item",
				"user_id", userID, "index", i, "instrument", item.Instrument)
			continue
		}
		switch s.statuses.Get(ctx, inst) {
		case statusdomain.StateStop, statusdomain.StatePause:
			logger.Warn(ctx, "Skipping bulk trade item for inactive instrument",
				"user_id", userID, "index", i, "instrument", inst)
			continue
		}
		currency := item.Currency
		if currency == "" {
			currency = marketdomain.THB
		}
		if !currency.Valid() {
			logger.Warn(ctx, "Skipping bulk trade item with unsupported currency",
				"user_id", userID, "index", i, "currency", item.Currency)
			continue
		}
		txns = append(txns, &domain.Transaction{
			TransactionID: uuid.NewString(),
			UserID:        userID,
			Instrument:    string(inst),
			Action:        item.Action,
			Quantity:      item.Quantity,
			Price:         item.Price,
			Total:         item.Price.Mul(item.Quantity),
			Currency:      string(currency),
			Status:        domain.StatusPending,
		})
	}
	if len(txns) == 0 {
		return nil, fmt.Errorf("%w: no valid trades in batch", domain.ErrValidation)
	}

	if err := s.txns.CreateBatch(ctx, txns); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Bulk trades recorded",
		"user_id", userID, "accepted", len(txns), "skipped", len(items)-len(txns))
	return txns, nil
}

// History 查询用户成交流水
func (s *TradeService) History(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	return s.txns.ListByUser(ctx, userID, limit, offset)
}

func (s *TradeService) observe(action domain.TradeAction, status string, started time.Time) {
	if s.opts.Metrics == nil {
		return
	}
	s.opts.Metrics.TradesTotal.WithLabelValues(string(action), status).Inc()
	s.opts.Metrics.TradeDuration.Observe(time.Since(started).Seconds())
}

func (s *TradeService) publish(ctx context.Context, txn *domain.Transaction) {
	if s.opts.Events == nil || s.opts.TradeTopic == "" {
		return
	}
	if err := s.opts.Events.SendMessage(ctx, s.opts.TradeTopic, txn.UserID, txn); err != nil {
		logger.Warn(ctx, "Failed to publish trade event", "transaction_id", txn.TransactionID, "error", err)
	}
}
