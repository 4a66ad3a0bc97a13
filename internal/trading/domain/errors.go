package domain

import "errors"

// 交易上下文的业务错误，接口层据此映射 HTTP 状态码
var (
	// ErrValidation 请求参数不合法
	ErrValidation = errors.New("invalid trade request")
	// ErrTradingHalted 品种停牌，拒绝交易
	ErrTradingHalted = errors.New("trading halted for instrument")
	// ErrTradingPaused 品种暂停，拒绝交易
	ErrTradingPaused = errors.New("trading paused for instrument")
	// ErrPriceUnavailable 无可用报价
	ErrPriceUnavailable = errors.New("price unavailable for instrument")
	// ErrExchangeRateUnavailable 汇率不可用，无法按请求币种计价
	ErrExchangeRateUnavailable = errors.New("exchange rate unavailable")
	// ErrInsufficientFunds 余额不足
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrInsufficientHoldings 持仓不足
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrWalletNotFound 钱包不存在
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrWalletUpdateFailed 钱包写入未生效
	ErrWalletUpdateFailed = errors.New("wallet update failed")
)
