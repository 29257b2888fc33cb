// Package gap 实现跨交易所价差的滚动窗口统计。
// 为 A空B多 与 B空A多 两个方向维护独立的分位数统计，
// 仅用于监控输出，不参与开/平仓决策。
package gap

import (
	"sort"
	"sync"
)

// Stats 价差统计快照（滚动窗口）
// 单位：百分比。
type Stats struct {
	// Direction 方向: ab（A空B多）或 ba（B空A多）
	Direction string `json:"direction"`
	// Count 样本总数（累计）
	Count int64 `json:"count"`
	// P50Pct P50 价差（百分比）
	P50Pct float64 `json:"p50_pct"`
	// P90Pct P90 价差（百分比）
	P90Pct float64 `json:"p90_pct"`
	// P99Pct P99 价差（百分比）
	P99Pct float64 `json:"p99_pct"`
	// MaxPct 窗口内最大价差（百分比）
	MaxPct float64 `json:"max_pct"`
}

type rollingWindow struct {
	size  int
	buf   []float64
	pos   int
	count int64
	full  bool

	mu sync.Mutex
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{size: size, buf: make([]float64, 0, size)}
}

func (w *rollingWindow) add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.count++
	if w.size <= 0 {
		return
	}

	if !w.full {
		w.buf = append(w.buf, v)
		if len(w.buf) == w.size {
			w.full = true
			w.pos = 0
		}
		return
	}

	w.buf[w.pos] = v
	w.pos++
	if w.pos >= w.size {
		w.pos = 0
	}
}

func (w *rollingWindow) snapshotQuantiles(qs ...float64) (count int64, values []float64, max float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	count = w.count
	if len(w.buf) == 0 {
		return count, make([]float64, len(qs)), 0
	}

	tmp := make([]float64, len(w.buf))
	copy(tmp, w.buf)
	sort.Float64s(tmp)

	n := len(tmp)
	max = tmp[n-1]
	values = make([]float64, len(qs))
	for i, q := range qs {
		if q <= 0 {
			values[i] = tmp[0]
			continue
		}
		if q >= 1 {
			values[i] = tmp[n-1]
			continue
		}
		idx := int(float64(n-1) * q)
		if idx < 0 {
			idx = 0
		}
		if idx >= n {
			idx = n - 1
		}
		values[i] = tmp[idx]
	}
	return count, values, max
}

// Tracker 价差追踪器
// 两个方向各自维护独立的滚动窗口。
type Tracker struct {
	ab *rollingWindow
	ba *rollingWindow
}

// NewTracker 创建价差追踪器
// 参数 windowSize: 滚动窗口大小（建议 10000），用于 P50/P90/P99。
func NewTracker(windowSize int) *Tracker {
	return &Tracker{
		ab: newRollingWindow(windowSize),
		ba: newRollingWindow(windowSize),
	}
}

// Add 记录一轮评估得到的双向价差
// 参数 gapABPct: A 空 B 多方向价差（百分比）
// 参数 gapBAPct: B 空 A 多方向价差（百分比）
func (t *Tracker) Add(gapABPct, gapBAPct float64) {
	t.ab.add(gapABPct)
	t.ba.add(gapBAPct)
}

// StatsAB 获取 A空B多 方向的统计快照
func (t *Tracker) StatsAB() Stats {
	return statsOf("ab", t.ab)
}

// StatsBA 获取 B空A多 方向的统计快照
func (t *Tracker) StatsBA() Stats {
	return statsOf("ba", t.ba)
}

func statsOf(direction string, w *rollingWindow) Stats {
	count, qs, max := w.snapshotQuantiles(0.50, 0.90, 0.99)
	return Stats{
		Direction: direction,
		Count:     count,
		P50Pct:    qs[0],
		P90Pct:    qs[1],
		P99Pct:    qs[2],
		MaxPct:    max,
	}
}
