// Package bitmart 定义 Bitmart 合约交易所消息类型。
package bitmart

import "encoding/json"

// SubscribeRequest Bitmart WebSocket 订阅请求
// 形如 {"action":"subscribe","args":["futures/trade:SOLUSDT"]}
type SubscribeRequest struct {
	// Action 操作: subscribe
	Action string `json:"action"`
	// Args 订阅频道列表
	Args []string `json:"args"`
}

// PingRequest Bitmart 应用层心跳请求
// 形如 {"action":"ping"}
type PingRequest struct {
	// Action 操作: ping
	Action string `json:"action"`
}

// Envelope Bitmart 推送消息公共包络
// group 标识频道，data 的具体形状由频道决定，留待二次解析。
type Envelope struct {
	// Action 控制消息的操作类型（subscribe/ping 回执）
	Action string `json:"action"`
	// Group 频道标识，如 futures/trade:SOLUSDT
	Group string `json:"group"`
	// Success 控制消息是否成功
	Success bool `json:"success"`
	// Data 频道数据（原样保留）
	Data json.RawMessage `json:"data"`
}

// TradeItem Bitmart 成交推送条目
// 来自 futures/trade 频道，data 为条目数组。
type TradeItem struct {
	// Symbol 交易对，如 SOLUSDT
	Symbol string `json:"symbol"`
	// DealPrice 成交价（字符串）
	DealPrice string `json:"deal_price"`
	// DealVol 成交量（字符串）
	DealVol string `json:"deal_vol"`
	// Way 成交方向代码
	Way int `json:"way"`
	// CreatedAt 成交时间
	CreatedAt string `json:"created_at"`
}

// DepthItem Bitmart 深度档位
type DepthItem struct {
	// Price 价格（字符串）
	Price string `json:"price"`
	// Vol 数量（字符串）
	Vol string `json:"vol"`
}

// DepthData Bitmart 深度推送数据
// 来自 futures/depthAll 频道，按 way 区分买卖盘，每次整侧替换。
type DepthData struct {
	// Symbol 交易对，如 SOLUSDT
	Symbol string `json:"symbol"`
	// Way 盘口方向: 1 买盘, 2 卖盘
	Way int `json:"way"`
	// Depths 档位列表（最优价在前）
	Depths []DepthItem `json:"depths"`
	// MsT 交易所时间戳（毫秒）
	MsT int64 `json:"ms_t"`
}

// 盘口方向代码
const (
	// WayBids 买盘
	WayBids = 1
	// WayAsks 卖盘
	WayAsks = 2
)

// ConnectionMetrics 连接质量指标
type ConnectionMetrics struct {
	// ReconnectCount 重连次数
	ReconnectCount int64
	// ParseErrorCount 解析错误次数
	ParseErrorCount int64
	// UpdatesPerSec 每秒更新次数
	UpdatesPerSec float64
	// LastMessageAgeMs 最后消息距今时间（毫秒）
	LastMessageAgeMs int64
}
