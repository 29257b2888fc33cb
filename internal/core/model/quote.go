// Package model 定义套利机器人中使用的核心数据结构。
package model

// QuoteMode 合成报价的定价模式
// 同一交易所同一评估周期内两侧报价必须来自同一模式，禁止混用。
type QuoteMode string

const (
	// QuoteModeDepth 深度模式：对盘口逐档消耗目标名义金额得到 VWAP
	QuoteModeDepth QuoteMode = "depth"
	// QuoteModeSpread 价差模式：无可用深度时按固定半价差对最新价近似
	QuoteModeSpread QuoteMode = "spread"
)

// SyntheticQuote 合成报价
// 表示在该交易所以目标名义金额开多/开空腿时假定可成交的价格。
type SyntheticQuote struct {
	// Venue 交易所标识
	Venue string
	// LongPx 多头腿假定成交价（吃卖盘）
	LongPx float64
	// ShortPx 空头腿假定成交价（吃买盘）
	ShortPx float64
	// Mode 定价模式: depth 或 spread
	Mode QuoteMode
}

// IsUsable 判断报价是否可用于价差评估
// 两侧价格都必须为正；任一侧为 0 表示盘口过薄或数据缺失，
// 调用方必须跳过本周期，绝不能把 0 当作真实可成交价。
func (q *SyntheticQuote) IsUsable() bool {
	return q != nil && q.LongPx > 0 && q.ShortPx > 0
}
