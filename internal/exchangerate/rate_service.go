// Package exchangerate 美元/泰铢汇率服务。定时刷新外部汇率，失败时保留
// 上一次的值，从未成功过则用兜底汇率，保证换算永远可用。
package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	marketdomain "github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

// ErrUnsupportedCurrency 不支持的币种
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Config 汇率服务配置
type Config struct {
	// URL 汇率接口地址，返回 {"rates":{"THB":...}}
	URL string
	// RefreshInterval 刷新周期
	RefreshInterval time.Duration
	// RequestTimeout 单次请求超时
	RequestTimeout time.Duration
	// FallbackTHBPerUSD 兜底汇率（1 美元兑泰铢）
	FallbackTHBPerUSD float64
}

// Rates 当前汇率
type Rates struct {
	// THBPerUSD 1 美元兑泰铢
	THBPerUSD decimal.Decimal `json:"thbPerUsd"`
	// UpdatedAt 数据时间
	UpdatedAt time.Time `json:"updatedAt"`
	// Fallback 是否为兜底值
	Fallback bool `json:"fallback"`
}

// RateService 汇率服务
type RateService struct {
	http   *resty.Client
	config Config

	mu    sync.RWMutex
	rates Rates
}

type ratePayload struct {
	Rates map[string]float64 `json:"rates"`
}

// NewRateService 创建汇率服务，初始值为兜底汇率
func NewRateService(config Config) *RateService {
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = time.Hour
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 10 * time.Second
	}
	if config.FallbackTHBPerUSD <= 0 {
		config.FallbackTHBPerUSD = 35.0
	}
	return &RateService{
		http:   resty.New().SetTimeout(config.RequestTimeout),
		config: config,
		rates: Rates{
			THBPerUSD: decimal.NewFromFloat(config.FallbackTHBPerUSD),
			UpdatedAt: time.Now(),
			Fallback:  true,
		},
	}
}

// Start 启动后台刷新循环，ctx 取消后退出
func (s *RateService) Start(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		logger.Warn(ctx, "Initial exchange rate fetch failed, using fallback",
			"error", err, "fallback", s.config.FallbackTHBPerUSD)
	}
	go func() {
		ticker := time.NewTicker(s.config.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Refresh(ctx); err != nil {
					logger.Warn(ctx, "Exchange rate refresh failed, keeping previous rate", "error", err)
				}
			}
		}
	}()
}

// Refresh 拉取一次汇率。失败时不改动当前值。
func (s *RateService) Refresh(ctx context.Context) error {
	resp, err := s.http.R().SetContext(ctx).Get(s.config.URL)
	if err != nil {
		return fmt.Errorf("fetch exchange rates: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("fetch exchange rates: status %d", resp.StatusCode())
	}
	var payload ratePayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return fmt.Errorf("decode exchange rates: %w", err)
	}
	thb, ok := payload.Rates["THB"]
	if !ok || thb <= 0 {
		return fmt.Errorf("exchange rate response missing THB rate")
	}

	s.mu.Lock()
	s.rates = Rates{
		THBPerUSD: decimal.NewFromFloat(thb),
		UpdatedAt: time.Now(),
		Fallback:  false,
	}
	s.mu.Unlock()

	logger.Info(ctx, "Exchange rate refreshed", "thb_per_usd", thb)
	return nil
}

// GetRates 返回当前汇率
func (s *RateService) GetRates() Rates {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rates
}

// UsdToThb 美元换算泰铢
func (s *RateService) UsdToThb(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.GetRates().THBPerUSD)
}

// ThbToUsd 泰铢换算美元
func (s *RateService) ThbToUsd(amount decimal.Decimal) decimal.Decimal {
	rate := s.GetRates().THBPerUSD
	return amount.DivRound(rate, 18)
}

// Convert 在 THB/USD 之间换算，同币种原样返回
func (s *RateService) Convert(amount decimal.Decimal, from, to marketdomain.Currency) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	switch {
	case from == marketdomain.USD && to == marketdomain.THB:
		return s.UsdToThb(amount), nil
	case from == marketdomain.THB && to == marketdomain.USD:
		return s.ThbToUsd(amount), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s -> %s", ErrUnsupportedCurrency, from, to)
}
