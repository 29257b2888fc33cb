// Package dryrun 实现演练模式下单网关。
// 不向交易所发送任何请求，按最新参考价回报假成交，
// 用于在真实行情下验证策略而不动用资金。
package dryrun

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/core/execution"
	"cross-exchange-arbitrage/internal/core/model"
)

// PriceSource 参考价来源
type PriceSource interface {
	// Price 获取交易所最新成交价
	Price(venue string) (float64, bool)
}

// Gateway 演练模式网关
// 实现 execution.Gateway 接口，按交易所最新价立即"成交"。
type Gateway struct {
	// venue 本网关模拟的交易所
	venue string
	// prices 参考价来源
	prices PriceSource

	logger *zap.Logger
}

// New 创建演练模式网关
// 参数 venue: 模拟的交易所标识
// 参数 prices: 参考价来源
// 参数 logger: 日志记录器
func New(venue string, prices PriceSource, logger *zap.Logger) *Gateway {
	return &Gateway{
		venue:  venue,
		prices: prices,
		logger: logger.Named("gateway.dryrun"),
	}
}

// PlaceOrder 模拟下市价单
// 无参考价时与真实网关一样拒单，保持两种模式下的失败路径一致。
func (g *Gateway) PlaceOrder(ctx context.Context, req execution.OrderRequest) (*model.Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	price, ok := g.prices.Price(g.venue)
	if !ok || price <= 0 {
		return nil, fmt.Errorf("缺少 %s 参考价，无法模拟成交", g.venue)
	}

	orderID := "dry-" + uuid.NewString()
	g.logger.Info("演练模式模拟成交",
		zap.String("decision_id", req.DecisionID),
		zap.String("venue", g.venue),
		zap.String("side", string(req.Side)),
		zap.Bool("reduce", req.Reduce),
		zap.Float64("price", price),
		zap.String("order_id", orderID))

	return &model.Fill{
		Venue:    g.venue,
		OrderID:  orderID,
		AvgPrice: price,
	}, nil
}
