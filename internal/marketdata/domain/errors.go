package domain

import "errors"

var (
	// ErrFeedUnavailable 行情源不可用或返回畸形数据；调用方应保留上个周期的报价
	ErrFeedUnavailable = errors.New("price feed unavailable")
	// ErrUnknownInstrument 未知品种
	ErrUnknownInstrument = errors.New("unknown instrument")
)
