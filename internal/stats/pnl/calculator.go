// Package pnl 实现已平仓回合的收益统计。
// 对冲套利一开一平构成一个回合，毛收益近似等于价差收敛幅度；
// 统计仅用于监控输出，不参与决策。
package pnl

import (
	"sync"
)

// RoundTrip 一个完整的开平仓回合
type RoundTrip struct {
	// EntryGapPct 入场价差（百分比）
	EntryGapPct float64 `json:"entry_gap_pct"`
	// ExitGapPct 平仓时价差（百分比）
	ExitGapPct float64 `json:"exit_gap_pct"`
	// OpenedAtNs 开仓时间（纳秒）
	OpenedAtNs int64 `json:"opened_at_ns"`
	// ClosedAtNs 平仓时间（纳秒）
	ClosedAtNs int64 `json:"closed_at_ns"`
}

// GrossPct 回合毛收益（百分比）
// 双腿对冲下近似为价差收敛幅度: entry_gap - exit_gap
func (r *RoundTrip) GrossPct() float64 {
	return r.EntryGapPct - r.ExitGapPct
}

// Stats 收益统计快照（滚动窗口）
type Stats struct {
	// Count 回合总数
	Count int64 `json:"count"`
	// WinCount 盈利回合数（毛收益>0）
	WinCount int64 `json:"win_count"`
	// LossCount 亏损回合数（毛收益<=0）
	LossCount int64 `json:"loss_count"`
	// WinRate 胜率
	WinRate float64 `json:"win_rate"`
	// AvgWinPct 平均盈利（百分比）
	AvgWinPct float64 `json:"avg_win_pct"`
	// AvgLossPct 平均亏损绝对值（百分比）
	AvgLossPct float64 `json:"avg_loss_pct"`
	// ExpectancyPct 期望收益: p×W - (1-p)×L（百分比）
	ExpectancyPct float64 `json:"expectancy_pct"`
}

// Calculator 收益计算器（滚动窗口）
// 环形缓冲区配合滚动和，新增与淘汰样本都是 O(1)。
type Calculator struct {
	mu sync.Mutex

	// windowSize 滚动窗口大小
	windowSize int
	// buf 环形缓冲区
	buf []RoundTrip
	// pos 写入位置
	pos int
	// full 是否已填满
	full bool

	count     int64
	winCount  int64
	lossCount int64
	sumWin    float64
	sumLoss   float64
}

// NewCalculator 创建收益计算器
// 参数 windowSize: 滚动窗口大小（建议 1000）
func NewCalculator(windowSize int) *Calculator {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &Calculator{
		windowSize: windowSize,
		buf:        make([]RoundTrip, windowSize),
	}
}

// Add 添加一个已完成回合到滚动统计
func (c *Calculator) Add(rt RoundTrip) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 若环已满，先移除旧样本对统计的贡献
	if c.full {
		old := c.buf[c.pos]
		c.count--
		if old.GrossPct() > 0 {
			c.winCount--
			c.sumWin -= old.GrossPct()
		} else {
			c.lossCount--
			c.sumLoss -= abs(old.GrossPct())
		}
	}

	c.buf[c.pos] = rt
	c.pos++
	if c.pos >= c.windowSize {
		c.pos = 0
		c.full = true
	}

	c.count++
	if rt.GrossPct() > 0 {
		c.winCount++
		c.sumWin += rt.GrossPct()
	} else {
		c.lossCount++
		c.sumLoss += abs(rt.GrossPct())
	}
}

// Stats 返回滚动窗口统计
func (c *Calculator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := Stats{
		Count:     c.count,
		WinCount:  c.winCount,
		LossCount: c.lossCount,
	}
	if c.count <= 0 {
		return out
	}

	out.WinRate = float64(c.winCount) / float64(c.count)
	if c.winCount > 0 {
		out.AvgWinPct = c.sumWin / float64(c.winCount)
	}
	if c.lossCount > 0 {
		out.AvgLossPct = c.sumLoss / float64(c.lossCount)
	}
	out.ExpectancyPct = out.WinRate*out.AvgWinPct - (1-out.WinRate)*out.AvgLossPct

	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
