// Package model 定义套利机器人中使用的核心数据结构。
package model

import (
	"time"
)

// Phase 仓位阶段
// 对外只存在 idle 与 open 两种可观察状态，
// 不存在"半开"的中间态。
type Phase string

const (
	// PhaseIdle 无持仓
	PhaseIdle Phase = "idle"
	// PhaseOpen 双腿对冲仓位持有中
	PhaseOpen Phase = "open"
)

// PositionState 仓位状态
// 全进程只存在一个实例，由 ArbitrageController 在单一临界区内独占修改。
// 不变式: Phase==open ⇔ EntryGapPct/LegASide/LegBSide/OpenedAtNs 全部有值；
// Phase==idle ⇔ 上述字段全部清空。
type PositionState struct {
	// Phase 当前阶段: idle 或 open
	Phase Phase
	// EntryGapPct 入场时记录的价差（百分比）
	EntryGapPct float64
	// LegASide A 腿（Binance）方向
	LegASide Side
	// LegBSide B 腿（Bitmart）方向
	LegBSide Side
	// OpenedAtNs 开仓时间（纳秒）
	OpenedAtNs int64
	// Unhedged 是否处于单腿暴露状态
	// 某次开/平仓出现部分失败后置位，仅用于告警与监控展示。
	Unhedged bool
}

// IsOpen 判断是否持仓中
func (p *PositionState) IsOpen() bool {
	return p.Phase == PhaseOpen
}

// OpenedAt 获取开仓时间的 time.Time 表示
// 若未持仓返回零值
func (p *PositionState) OpenedAt() time.Time {
	if p.OpenedAtNs == 0 {
		return time.Time{}
	}
	return time.Unix(0, p.OpenedAtNs)
}

// HoldDuration 计算截至指定时刻的持仓时长
// 参数 nowNs: 当前时间（纳秒）
func (p *PositionState) HoldDuration(nowNs int64) time.Duration {
	if !p.IsOpen() || p.OpenedAtNs == 0 {
		return 0
	}
	return time.Duration(nowNs - p.OpenedAtNs)
}
