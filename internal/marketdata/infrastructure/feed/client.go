// Package feed 对接外部行情源：商行报价接口与图表历史接口。
// 纯 I/O 与解析，不持有共享状态；畸形或空响应一律归一为 ErrFeedUnavailable。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/wyfcoding/goldtrading/internal/marketdata/domain"
	"github.com/wyfcoding/goldtrading/pkg/logger"
)

// Config 行情源配置
type Config struct {
	// DealerURL 商行报价接口
	DealerURL string
	// ChartURL 图表历史接口
	ChartURL string
	// RequestTimeout 单次外呼超时
	RequestTimeout time.Duration
}

// Client 行情源客户端
type Client struct {
	http   *resty.Client
	config Config
}

// NewClient 创建行情源客户端
func NewClient(cfg Config) *Client {
	return &Client{
		http:   resty.New().SetTimeout(cfg.RequestTimeout),
		config: cfg,
	}
}

// Fetch 抓取单品种报价。每次调用都是独立外呼，失败只影响该品种。
func (c *Client) Fetch(ctx context.Context, inst domain.Instrument, window domain.Window) (domain.PriceQuote, error) {
	def, ok := inst.Define()
	if !ok {
		return domain.PriceQuote{}, domain.ErrUnknownInstrument
	}

	switch def.Feed {
	case domain.FeedDealer:
		return c.fetchDealerQuote(ctx, inst)
	default:
		return c.fetchChartQuote(ctx, def.ChartSymbol, window)
	}
}

// dealerPayload 商行报价接口响应。字段可能是数字也可能是带逗号的字符串。
type dealerPayload struct {
	BuyIn965    flexNumber `json:"buyIn965"`
	SellOut965  flexNumber `json:"sellOut965"`
	BuyIn9999   flexNumber `json:"buyIn9999"`
	SellOut9999 flexNumber `json:"sellOut9999"`
	BuyInAsso   flexNumber `json:"buyInAsso"`
	SellOutAsso flexNumber `json:"sellOutAsso"`
}

func (c *Client) fetchDealerQuote(ctx context.Context, inst domain.Instrument) (domain.PriceQuote, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("c", strconv.FormatInt(time.Now().UnixMilli(), 10)).
		Get(c.config.DealerURL)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: dealer request: %v", domain.ErrFeedUnavailable, err)
	}
	if resp.IsError() {
		return domain.PriceQuote{}, fmt.Errorf("%w: dealer responded %s", domain.ErrFeedUnavailable, resp.Status())
	}

	// 商行接口的 Content-Type 不稳定，直接按 JSON 解析响应体
	var payload dealerPayload
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("%w: malformed dealer payload: %v", domain.ErrFeedUnavailable, err)
	}

	var buyIn, sellOut decimal.Decimal
	var okBuy, okSell bool
	switch inst {
	case domain.Gold9999MTS:
		buyIn, okBuy = payload.BuyIn9999.Decimal()
		sellOut, okSell = payload.SellOut9999.Decimal()
	case domain.Gold965MTS:
		buyIn, okBuy = payload.BuyIn965.Decimal()
		sellOut, okSell = payload.SellOut965.Decimal()
	case domain.Gold965Asso:
		buyIn, okBuy = payload.BuyInAsso.Decimal()
		sellOut, okSell = payload.SellOutAsso.Decimal()
	default:
		return domain.PriceQuote{}, domain.ErrUnknownInstrument
	}

	if !okBuy && !okSell {
		return domain.PriceQuote{}, fmt.Errorf("%w: dealer payload missing prices for %s", domain.ErrFeedUnavailable, inst)
	}

	source := domain.SourceDealer
	if inst == domain.Gold965Asso {
		source = domain.SourceAssociation
	}
	return domain.NewQuote(buyIn, sellOut, source, time.Now()), nil
}

// ChartData 图表历史接口响应（TradingView history 形状）
type ChartData struct {
	Status string    `json:"s"`
	Times  []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
}

// Valid 判断响应是否包含可用的 OHLC 序列
func (d *ChartData) Valid() bool {
	return d != nil && d.Status == "ok" && len(d.Open) > 0 && len(d.Close) == len(d.Open)
}

// FetchChart 抓取图表历史序列，供刷新周期与图表代理接口共用
func (c *Client) FetchChart(ctx context.Context, symbol string, window domain.Window) (*ChartData, error) {
	currencyCode := "THB"
	if symbol == "XAUUSD" {
		currencyCode = "USD"
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":       symbol,
			"resolution":   strconv.Itoa(window.Resolution),
			"currencyCode": currencyCode,
			"from":         strconv.FormatInt(window.From.Unix(), 10),
			"to":           strconv.FormatInt(window.To.Unix(), 10),
			"countback":    "500",
		}).
		Get(c.config.ChartURL)
	if err != nil {
		return nil, fmt.Errorf("%w: chart request for %s: %v", domain.ErrFeedUnavailable, symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: chart responded %s for %s", domain.ErrFeedUnavailable, resp.Status(), symbol)
	}

	var data ChartData
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("%w: malformed chart payload for %s: %v", domain.ErrFeedUnavailable, symbol, err)
	}
	if !data.Valid() {
		logger.Debug(ctx, "Invalid chart response",
			"symbol", symbol,
			"status", data.Status,
			"points", len(data.Close),
		)
		return nil, fmt.Errorf("%w: empty chart series for %s", domain.ErrFeedUnavailable, symbol)
	}
	return &data, nil
}

// fetchChartQuote 取序列最后一根：open 作买入价，close 作卖出价
func (c *Client) fetchChartQuote(ctx context.Context, symbol string, window domain.Window) (domain.PriceQuote, error) {
	data, err := c.FetchChart(ctx, symbol, window)
	if err != nil {
		return domain.PriceQuote{}, err
	}

	last := len(data.Close) - 1
	buyIn := decimal.NewFromFloat(data.Open[last])
	sellOut := decimal.NewFromFloat(data.Close[last])

	asOf := time.Now()
	if len(data.Times) > last {
		asOf = time.Unix(data.Times[last], 0)
	}
	return domain.NewQuote(buyIn, sellOut, domain.SourceTradingView, asOf), nil
}

// flexNumber 兼容数字与字符串两种 JSON 编码的价格字段
type flexNumber struct {
	value decimal.Decimal
	set   bool
}

// UnmarshalJSON 实现 json.Unmarshaler
func (f *flexNumber) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err == nil {
		if d, derr := decimal.NewFromString(num.String()); derr == nil {
			f.value, f.set = d, true
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return nil
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if d, derr := decimal.NewFromString(s); derr == nil {
		f.value, f.set = d, true
	}
	return nil
}

// Decimal 返回解析出的数值及其有效性
func (f flexNumber) Decimal() (decimal.Decimal, bool) {
	return f.value, f.set
}
