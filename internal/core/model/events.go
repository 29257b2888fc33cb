// Package model 定义套利机器人中使用的核心数据结构。
package model

// GapRecord 价差观测记录
// 每次完成一轮双向价差评估时产出，用于 JSONL 事件流与监控。
type GapRecord struct {
	// TsUnixNs 观测时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// GapABPct A 空 B 多方向价差（百分比）
	GapABPct float64 `json:"gap_ab_pct"`
	// GapBAPct B 空 A 多方向价差（百分比）
	GapBAPct float64 `json:"gap_ba_pct"`
	// ModeA A 腿交易所定价模式
	ModeA string `json:"mode_a"`
	// ModeB B 腿交易所定价模式
	ModeB string `json:"mode_b"`
	// Phase 观测时刻的仓位阶段
	Phase string `json:"phase"`
}

// TransitionRecord 状态迁移记录
// 开仓/平仓决策产生时输出
type TransitionRecord struct {
	// TsUnixNs 决策时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// DecisionID 决策标识
	DecisionID string `json:"decision_id"`
	// Kind 决策类型: open 或 close
	Kind string `json:"kind"`
	// LegASide A 腿方向
	LegASide string `json:"leg_a_side"`
	// LegBSide B 腿方向
	LegBSide string `json:"leg_b_side"`
	// EntryGapPct 入场价差（百分比）
	EntryGapPct float64 `json:"entry_gap_pct"`
	// CurrentGapPct 当前价差（百分比）
	CurrentGapPct float64 `json:"current_gap_pct"`
}

// LegOutcomeRecord 单腿执行结果记录
type LegOutcomeRecord struct {
	// TsUnixNs 记录时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// DecisionID 决策标识
	DecisionID string `json:"decision_id"`
	// Venue 交易所标识
	Venue string `json:"venue"`
	// Side 下单方向
	Side string `json:"side"`
	// OK 是否成交
	OK bool `json:"ok"`
	// OrderID 交易所订单号（成交时）
	OrderID string `json:"order_id,omitempty"`
	// AvgPrice 平均成交价（成交时）
	AvgPrice float64 `json:"avg_price,omitempty"`
	// Error 失败原因（失败时）
	Error string `json:"error,omitempty"`
}

// SlippageRecord 滑点告警记录
// 某条腿的成交价相对决策报价的偏离超过容忍度时输出。
type SlippageRecord struct {
	// TsUnixNs 记录时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// DecisionID 决策标识
	DecisionID string `json:"decision_id"`
	// Venue 交易所标识
	Venue string `json:"venue"`
	// Side 下单方向
	Side string `json:"side"`
	// ExpectedPx 决策时该腿的报价
	ExpectedPx float64 `json:"expected_px"`
	// FillPx 实际平均成交价
	FillPx float64 `json:"fill_px"`
	// DeviationPct 偏离幅度（百分比）
	DeviationPct float64 `json:"deviation_pct"`
}

// AlertRecord 告警记录
// 区别于普通信息日志的升级事件，目前仅用于单腿暴露（部分失败）。
type AlertRecord struct {
	// TsUnixNs 告警时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`
	// DecisionID 决策标识
	DecisionID string `json:"decision_id"`
	// Kind 决策类型
	Kind string `json:"kind"`
	// FailedVenue 失败腿的交易所
	FailedVenue string `json:"failed_venue"`
	// FailedSide 失败腿的方向
	FailedSide string `json:"failed_side"`
	// Message 告警内容
	Message string `json:"message"`
}
