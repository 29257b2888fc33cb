// Package model 定义套利机器人中使用的核心数据结构。
// 包含深度档位、深度快照、行情事件、合成报价、仓位等核心类型。
package model

import (
	"math"
	"time"
)

// Venue 交易所标识常量
const (
	// VenueBinance Binance 交易所（A 腿）
	VenueBinance = "binance"
	// VenueBitmart Bitmart 交易所（B 腿）
	VenueBitmart = "bitmart"
)

// Side 交易方向
type Side string

const (
	// SideLong 多头方向（买入开仓）
	SideLong Side = "long"
	// SideShort 空头方向（卖出开仓）
	SideShort Side = "short"
)

// Opposite 获取反方向
// 平仓时每条腿下反方向的市价单
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// Level 订单簿深度档位
// 表示某一价格档位的价格和数量
type Level struct {
	// Price 价格，必须为正
	Price float64
	// Volume 数量，非负
	Volume float64
}

// DepthBook 单交易所深度快照
// 每次行情更新整体替换，不做增量合并。
// asks 按价格升序、bids 按价格降序排列（最优价在前），
// 该顺序是 VWAP 逐档消耗计算的前提。
type DepthBook struct {
	// Asks 卖盘档位（价格升序）
	Asks []Level
	// Bids 买盘档位（价格降序）
	Bids []Level
	// ObservedAtNs 快照观测时间（纳秒）
	ObservedAtNs int64
}

// IsEmpty 判断快照是否为空
func (d *DepthBook) IsEmpty() bool {
	return d == nil || (len(d.Asks) == 0 && len(d.Bids) == 0)
}

// AgeAt 计算快照在指定时刻的年龄
// 参数 nowNs: 当前时间（纳秒）
func (d *DepthBook) AgeAt(nowNs int64) time.Duration {
	if d == nil {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(nowNs - d.ObservedAtNs)
}

// Clone 创建 DepthBook 的深拷贝
// 存储层对外只返回拷贝，读者不会观察到并发修改。
func (d *DepthBook) Clone() *DepthBook {
	if d == nil {
		return nil
	}
	clone := &DepthBook{ObservedAtNs: d.ObservedAtNs}
	if d.Asks != nil {
		clone.Asks = make([]Level, len(d.Asks))
		copy(clone.Asks, d.Asks)
	}
	if d.Bids != nil {
		clone.Bids = make([]Level, len(d.Bids))
		copy(clone.Bids, d.Bids)
	}
	return clone
}

// FeedEventType 行情事件类型
type FeedEventType string

const (
	// FeedPrice 最新成交价更新
	FeedPrice FeedEventType = "price"
	// FeedDepth 深度快照更新
	FeedDepth FeedEventType = "depth"
)

// FeedEvent 统一行情事件结构
// 用于归一化两家交易所的推送数据，由各交易所适配器产出。
// Type 为 price 时仅 Price 有效；为 depth 时仅 Asks/Bids 有效。
type FeedEvent struct {
	// Type 事件类型: price 或 depth
	Type FeedEventType
	// Venue 交易所标识: binance 或 bitmart
	Venue string
	// Price 最新成交价（Type=price 时有效）
	Price float64
	// Asks 卖盘档位，价格升序（Type=depth 时有效）
	Asks []Level
	// Bids 买盘档位，价格降序（Type=depth 时有效）
	Bids []Level
	// ArrivedAtUnixNs 本机收到消息的时间戳（纳秒）
	ArrivedAtUnixNs int64
}

// IsValid 检查行情事件是否有效
// price 事件要求价格为正的有限值；depth 事件要求至少有一侧档位。
func (e *FeedEvent) IsValid() bool {
	if e == nil || e.Venue == "" {
		return false
	}
	switch e.Type {
	case FeedPrice:
		return e.Price > 0 && !math.IsInf(e.Price, 0) && !math.IsNaN(e.Price)
	case FeedDepth:
		return len(e.Asks) > 0 || len(e.Bids) > 0
	default:
		return false
	}
}
