// Package store 维护两家交易所的最新价格与深度快照。
// 行情更新来自独立的交易所 goroutine，读写都在同一把 RWMutex 保护的
// 临界区内完成；对外只返回拷贝，绝不暴露内部可变容器的引用。
package store

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/core/model"
)

// MarketStore 最新行情缓存
// 价格只覆盖不删除，不保留历史；深度每次整体替换。
type MarketStore struct {
	mu sync.RWMutex

	// prices 按交易所缓存最新成交价
	prices map[string]float64
	// depths 按交易所缓存最新深度快照
	depths map[string]*model.DepthBook

	logger *zap.Logger
}

// Overview 面向监控/GUI 的只读快照
// 通过 TryOverview 以非阻塞方式获取。
type Overview struct {
	// Prices 最新价格快照（拷贝）
	Prices map[string]float64
	// Depths 最新深度快照（深拷贝）
	Depths map[string]*model.DepthBook
}

// New 创建行情缓存
// 参数 logger: 日志记录器
func New(logger *zap.Logger) *MarketStore {
	return &MarketStore{
		prices: make(map[string]float64, 2),
		depths: make(map[string]*model.DepthBook, 2),
		logger: logger.Named("store"),
	}
}

// UpsertPrice 记录交易所最新成交价
// 价格必须为正的有限值，不合法的更新只记日志、不入库。
// 返回: 是否已写入。本方法不触发价差评估，评估由调用方驱动。
func (s *MarketStore) UpsertPrice(venue string, price float64) bool {
	if venue == "" {
		return false
	}
	if price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
		s.logger.Warn("丢弃非法价格更新",
			zap.String("venue", venue), zap.Float64("price", price))
		return false
	}

	s.mu.Lock()
	s.prices[venue] = price
	s.mu.Unlock()
	return true
}

// SetDepth 整体替换交易所深度快照
// 参数 asks: 卖盘档位（价格升序）
// 参数 bids: 买盘档位（价格降序）
// 参数 observedAtNs: 快照观测时间（纳秒）
func (s *MarketStore) SetDepth(venue string, asks, bids []model.Level, observedAtNs int64) {
	if venue == "" {
		return
	}
	book := &model.DepthBook{Asks: asks, Bids: bids, ObservedAtNs: observedAtNs}

	s.mu.Lock()
	s.depths[venue] = book
	s.mu.Unlock()
}

// Price 获取交易所最新成交价
// 返回: 价格与是否存在
func (s *MarketStore) Price(venue string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[venue]
	return p, ok
}

// PriceSnapshot 获取全部价格的不可变拷贝
// 锁持有时间只覆盖拷贝本身
func (s *MarketStore) PriceSnapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]float64, len(s.prices))
	for k, v := range s.prices {
		snap[k] = v
	}
	return snap
}

// Depth 获取交易所最新深度快照的深拷贝
// 返回值可能为 nil（尚无深度数据）
func (s *MarketStore) Depth(venue string) *model.DepthBook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.depths[venue].Clone()
}

// TryOverview 非阻塞地获取一致的行情总览
// 监控读者拿不到锁时应跳过本周期而不是阻塞写入方。
// 返回: 快照与是否成功
func (s *MarketStore) TryOverview() (Overview, bool) {
	if !s.mu.TryRLock() {
		return Overview{}, false
	}
	defer s.mu.RUnlock()

	ov := Overview{
		Prices: make(map[string]float64, len(s.prices)),
		Depths: make(map[string]*model.DepthBook, len(s.depths)),
	}
	for k, v := range s.prices {
		ov.Prices[k] = v
	}
	for k, v := range s.depths {
		ov.Depths[k] = v.Clone()
	}
	return ov, true
}
