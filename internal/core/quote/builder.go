// Package quote 实现合成报价构建。
// 按目标名义金额把交易所行情折算为可比的多/空腿假定成交价：
// 有新鲜深度时走 VWAP 估算，否则退回固定半价差近似。
package quote

import (
	"time"

	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/core/vwap"
)

// Builder 合成报价构建器
// 同一交易所同一评估周期内两侧报价必须来自同一定价模式，
// 禁止一侧用深度、另一侧用固定价差。
type Builder struct {
	// notional 目标名义金额（USDT）
	notional float64
	// halfSpread 价差模式使用的固定半价差（如 0.0005 表示 ±0.05%）
	halfSpread float64
	// depthTTL 深度快照新鲜度上限，超过视为无深度
	depthTTL time.Duration
}

// NewBuilder 创建合成报价构建器
// 参数 notional: 目标名义金额
// 参数 halfSpread: 固定半价差
// 参数 depthTTL: 深度新鲜度上限
func NewBuilder(notional, halfSpread float64, depthTTL time.Duration) *Builder {
	return &Builder{
		notional:   notional,
		halfSpread: halfSpread,
		depthTTL:   depthTTL,
	}
}

// Build 为单个交易所构建合成报价
// 参数 venue: 交易所标识
// 参数 topPrice: 最新成交价（无价格时传 0）
// 参数 book: 最新深度快照（可为 nil）
// 参数 nowNs: 当前时间（纳秒）
// 返回: 报价与是否可用。任一侧无法可靠定价时整体不可用，
// 调用方应跳过本周期的价差评估。
func (b *Builder) Build(venue string, topPrice float64, book *model.DepthBook, nowNs int64) (model.SyntheticQuote, bool) {
	if q, ok := b.buildFromDepth(venue, book, nowNs); ok {
		return q, true
	}
	return b.buildFromSpread(venue, topPrice)
}

// buildFromDepth 深度模式定价
// 深度必须新鲜且两侧都能估出正价格，否则整体放弃深度模式。
func (b *Builder) buildFromDepth(venue string, book *model.DepthBook, nowNs int64) (model.SyntheticQuote, bool) {
	if book.IsEmpty() {
		return model.SyntheticQuote{}, false
	}
	if b.depthTTL > 0 && book.AgeAt(nowNs) > b.depthTTL {
		return model.SyntheticQuote{}, false
	}

	longPx := vwap.Estimate(book.Asks, b.notional)
	shortPx := vwap.Estimate(book.Bids, b.notional)
	// 0 表示盘口过薄，两侧必须同时可估，禁止与价差模式混搭
	if longPx <= 0 || shortPx <= 0 {
		return model.SyntheticQuote{}, false
	}

	return model.SyntheticQuote{
		Venue:   venue,
		LongPx:  longPx,
		ShortPx: shortPx,
		Mode:    model.QuoteModeDepth,
	}, true
}

// buildFromSpread 价差模式定价
// long = top × (1 + halfSpread)，short = top × (1 - halfSpread)
func (b *Builder) buildFromSpread(venue string, topPrice float64) (model.SyntheticQuote, bool) {
	if topPrice <= 0 {
		return model.SyntheticQuote{}, false
	}
	return model.SyntheticQuote{
		Venue:   venue,
		LongPx:  topPrice * (1 + b.halfSpread),
		ShortPx: topPrice * (1 - b.halfSpread),
		Mode:    model.QuoteModeSpread,
	}, true
}
