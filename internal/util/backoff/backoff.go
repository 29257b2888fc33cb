// Package backoff 实现带抖动的指数退避。
// 两家交易所的 WebSocket 客户端断线重连各持有一个实例：
// 等待档位逐次翻倍直到上限，抖动避免两条连接的重连撞在同一时刻。
package backoff

import (
	"math/rand"
	"time"
)

// Backoff 指数退避计算器
// 非并发安全，每条连接独占一个实例。
type Backoff struct {
	// base 首次重试等待时间
	base time.Duration
	// max 等待时间上限
	max time.Duration
	// jitter 抖动比例，0.2 表示在 ±20% 内随机
	jitter float64

	// current 下一次 Next 返回的未加抖动档位
	current time.Duration
}

// New 创建退避计算器
// 参数 base: 首次重试等待时间
// 参数 max: 等待时间上限
// 参数 jitter: 抖动比例（0 表示不加抖动）
func New(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{base: base, max: max, jitter: jitter, current: base}
}

// NewDefault 创建重连用的默认退避计算器
// 首次 1s，上限 30s，抖动 ±20%。
func NewDefault() *Backoff {
	return New(time.Second, 30*time.Second, 0.2)
}

// Next 取出本次重试的等待时间并推进到下一档
// 档位逐次翻倍、夹在上限内；抖动只作用于返回值，不影响档位推进。
func (b *Backoff) Next() time.Duration {
	delay := b.current
	if delay > b.max {
		delay = b.max
	}

	if b.current < b.max {
		b.current *= 2
		// 溢出与越上限同样夹到 max
		if b.current > b.max || b.current < 0 {
			b.current = b.max
		}
	}

	if b.jitter > 0 {
		factor := 1 + (rand.Float64()*2-1)*b.jitter
		delay = time.Duration(float64(delay) * factor)
	}
	return delay
}

// Reset 回到首次等待档位
// 连接成功后调用。
func (b *Backoff) Reset() {
	b.current = b.base
}
