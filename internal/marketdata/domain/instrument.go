// Package domain 行情服务的领域模型：品种定义、报价快照、仓储接口
package domain

import "strings"

// Currency 交易货币
type Currency string

const (
	// THB 泰铢
	THB Currency = "THB"
	// USD 美元
	USD Currency = "USD"
)

// Valid 判断货币是否受支持
func (c Currency) Valid() bool {
	return c == THB || c == USD
}

// Instrument 黄金品种标识，固定枚举
type Instrument string

const (
	// Spot 国际现货（XAUUSD）
	Spot Instrument = "SPOT"
	// Gold9999 全球 99.99% 金
	Gold9999 Instrument = "GOLD_9999"
	// Gold965 全球 96.5% 金
	Gold965 Instrument = "GOLD_965"
	// Gold9999MTS 商行 99.99% 金
	Gold9999MTS Instrument = "GOLD_9999_MTS"
	// Gold965MTS 商行 96.5% 金
	Gold965MTS Instrument = "GOLD_965_MTS"
	// Gold965Asso 金协会 96.5% 金
	Gold965Asso Instrument = "GOLD_965_ASSO"
)

// FeedKind 品种的行情来源类型
type FeedKind int

const (
	// FeedChart 图表接口（OHLC 序列，取最新一根）
	FeedChart FeedKind = iota
	// FeedDealer 商行报价接口（单次返回全部商行价）
	FeedDealer
)

// Definition 品种静态定义。所有跨层的品种属性只在这张表里出现一次。
type Definition struct {
	// Instrument 品种标识
	Instrument Instrument
	// DisplayName 展示名称
	DisplayName string
	// Key 对外 JSON 键（快照、推送、历史查询共用）
	Key string
	// BaseCurrency 原生计价货币
	BaseCurrency Currency
	// Unit 计量单位
	Unit string
	// Feed 行情来源类型
	Feed FeedKind
	// ChartSymbol 图表接口符号（仅 FeedChart）
	ChartSymbol string
}

// definitions 品种定义表，顺序即对外展示顺序
var definitions = []Definition{
	{Instrument: Spot, DisplayName: "Gold Spot", Key: "spot", BaseCurrency: USD, Unit: "troy_oz", Feed: FeedChart, ChartSymbol: "XAUUSD"},
	{Instrument: Gold9999, DisplayName: "Gold 99.99%", Key: "gold9999", BaseCurrency: THB, Unit: "baht_gold", Feed: FeedChart, ChartSymbol: "GLD9999"},
	{Instrument: Gold965, DisplayName: "Gold 96.5%", Key: "gold965", BaseCurrency: THB, Unit: "baht_gold", Feed: FeedChart, ChartSymbol: "GLD965"},
	{Instrument: Gold9999MTS, DisplayName: "Gold 99.99% (MTS)", Key: "gold9999_mts", BaseCurrency: THB, Unit: "baht_gold", Feed: FeedDealer},
	{Instrument: Gold965MTS, DisplayName: "Gold 96.5% (MTS)", Key: "gold965_mts", BaseCurrency: THB, Unit: "baht_gold", Feed: FeedDealer},
	{Instrument: Gold965Asso, DisplayName: "Gold 96.5% (Association)", Key: "gold965_asso", BaseCurrency: THB, Unit: "baht_gold", Feed: FeedDealer},
}

var (
	byInstrument = func() map[Instrument]Definition {
		m := make(map[Instrument]Definition, len(definitions))
		for _, d := range definitions {
			m[d.Instrument] = d
		}
		return m
	}()
	byKey = func() map[string]Instrument {
		m := make(map[string]Instrument, len(definitions))
		for _, d := range definitions {
			m[d.Key] = d.Instrument
		}
		return m
	}()
)

// AllInstruments 返回全部品种，按定义顺序
func AllInstruments() []Instrument {
	out := make([]Instrument, 0, len(definitions))
	for _, d := range definitions {
		out = append(out, d.Instrument)
	}
	return out
}

// Definitions 返回全部品种定义
func Definitions() []Definition {
	out := make([]Definition, len(definitions))
	copy(out, definitions)
	return out
}

// Define 返回品种定义
func (i Instrument) Define() (Definition, bool) {
	d, ok := byInstrument[i]
	return d, ok
}

// Valid 判断品种是否在枚举内
func (i Instrument) Valid() bool {
	_, ok := byInstrument[i]
	return ok
}

// Key 返回对外 JSON 键；未知品种返回空串
func (i Instrument) Key() string {
	if d, ok := byInstrument[i]; ok {
		return d.Key
	}
	return ""
}

// BaseCurrency 返回原生计价货币；未知品种按 THB 处理
func (i Instrument) BaseCurrency() Currency {
	if d, ok := byInstrument[i]; ok {
		return d.BaseCurrency
	}
	return THB
}

// ParseInstrument 解析品种标识，接受枚举名或 JSON 键，大小写不敏感
func ParseInstrument(s string) (Instrument, bool) {
	upper := Instrument(strings.ToUpper(s))
	if upper.Valid() {
		return upper, true
	}
	if inst, ok := byKey[strings.ToLower(s)]; ok {
		return inst, true
	}
	return "", false
}
