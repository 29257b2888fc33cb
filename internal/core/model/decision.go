// Package model 定义套利机器人中使用的核心数据结构。
package model

// DecisionKind 决策类型
type DecisionKind string

const (
	// DecisionOpen 开仓决策
	DecisionOpen DecisionKind = "open"
	// DecisionClose 平仓决策
	DecisionClose DecisionKind = "close"
)

// Decision 开/平仓决策
// 由 ArbitrageController 在临界区内计算并以值的形式返回，
// 实际下单在临界区外由编排器执行，锁持有时间与下单延迟解耦。
type Decision struct {
	// ID 决策唯一标识（UUID），用于关联两条腿的下单请求
	ID string
	// Kind 决策类型: open 或 close
	Kind DecisionKind
	// LegASide A 腿（Binance）本次应执行的方向
	// 开仓时为开仓方向；平仓时为记录在仓位上的开仓方向的反向。
	LegASide Side
	// LegBSide B 腿（Bitmart）本次应执行的方向
	LegBSide Side
	// EntryGapPct 入场价差（百分比）
	// 开仓决策记录触发时的价差；平仓决策携带仓位上记录的入场价差。
	EntryGapPct float64
	// CurrentGapPct 决策时刻的当前价差（百分比）
	CurrentGapPct float64
	// QuoteA A 腿交易所的合成报价快照
	QuoteA SyntheticQuote
	// QuoteB B 腿交易所的合成报价快照
	QuoteB SyntheticQuote
	// DecidedAtNs 决策时间（纳秒）
	DecidedAtNs int64
}

// OutcomeStatus 双腿执行结果分类
type OutcomeStatus string

const (
	// OutcomeSuccess 两条腿全部成交
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial 恰好一条腿成交，另一条失败（单腿暴露）
	OutcomePartial OutcomeStatus = "partial_failure"
	// OutcomeFailure 两条腿全部失败，仓位状态不变
	OutcomeFailure OutcomeStatus = "failure"
)

// Fill 单腿成交回报
type Fill struct {
	// Venue 交易所标识
	Venue string
	// OrderID 交易所返回的订单号
	OrderID string
	// AvgPrice 平均成交价（交易所未返回时为 0）
	AvgPrice float64
}

// LegResult 单腿执行结果
type LegResult struct {
	// Venue 交易所标识
	Venue string
	// Side 本次下单方向
	Side Side
	// Fill 成交回报（失败时为 nil）
	Fill *Fill
	// Err 失败原因（成功时为 nil）
	Err error
}

// OK 判断该腿是否成交
func (r *LegResult) OK() bool {
	return r != nil && r.Err == nil
}

// ExecutionOutcome 双腿执行结果
type ExecutionOutcome struct {
	// DecisionID 对应的决策标识
	DecisionID string
	// Kind 决策类型
	Kind DecisionKind
	// Status 结果分类: success, partial_failure, failure
	Status OutcomeStatus
	// LegA A 腿执行结果
	LegA LegResult
	// LegB B 腿执行结果
	LegB LegResult
}

// FailedLegs 返回失败的腿
// 用于部分失败告警中指明未成交的交易所与方向
func (o *ExecutionOutcome) FailedLegs() []LegResult {
	var failed []LegResult
	if !o.LegA.OK() {
		failed = append(failed, o.LegA)
	}
	if !o.LegB.OK() {
		failed = append(failed, o.LegB)
	}
	return failed
}
