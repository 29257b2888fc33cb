// Package binance 实现 Binance 合约市价单下单网关。
// API: POST /fapi/v1/order
// 签名: 对查询串做 HMAC-SHA256，X-MBX-APIKEY 头携带 API Key
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/config"
	"cross-exchange-arbitrage/internal/core/execution"
	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/metadata"
)

// PriceSource 参考价来源
// 市价单按名义金额换算下单数量时需要一个最新参考价。
type PriceSource interface {
	// Price 获取交易所最新成交价
	Price(venue string) (float64, bool)
}

// OrderResponse Binance 下单响应
type OrderResponse struct {
	// Symbol 交易对
	Symbol string `json:"symbol"`
	// OrderID 订单号
	OrderID int64 `json:"orderId"`
	// AvgPrice 平均成交价（字符串）
	AvgPrice string `json:"avgPrice"`
	// Status 订单状态
	Status string `json:"status"`
}

// ErrorResponse Binance 错误响应
type ErrorResponse struct {
	// Code 错误码（负数）
	Code int `json:"code"`
	// Msg 错误描述
	Msg string `json:"msg"`
}

// Gateway Binance 下单网关
// 实现 execution.Gateway 接口。
type Gateway struct {
	// baseURL REST 基础地址
	baseURL string
	// apiKey API Key
	apiKey string
	// secretKey 签名密钥
	secretKey string
	// qtyStep 下单数量步长
	qtyStep float64
	// prices 参考价来源
	prices PriceSource
	// client HTTP 客户端
	client *http.Client

	logger *zap.Logger
}

// New 创建 Binance 下单网关
// 参数 cfg: 网关凭证配置
// 参数 symbol: 交易对映射（提供数量步长）
// 参数 prices: 参考价来源
// 参数 logger: 日志记录器
func New(cfg *config.BinanceGatewayConfig, symbol *metadata.SymbolMap, prices PriceSource, logger *zap.Logger) *Gateway {
	return &Gateway{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		secretKey: cfg.SecretKey,
		qtyStep:   symbol.BinanceQtyStep,
		prices:    prices,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.Named("gateway.binance"),
	}
}

// PlaceOrder 下市价单
// 按名义金额与最新参考价换算数量，向下对齐数量步长。
func (g *Gateway) PlaceOrder(ctx context.Context, req execution.OrderRequest) (*model.Fill, error) {
	qty, err := g.orderQuantity(req.Notional)
	if err != nil {
		return nil, err
	}

	side := "BUY"
	if req.Side == model.SideShort {
		side = "SELL"
	}

	timestamp := time.Now().UnixMilli()
	query := fmt.Sprintf("symbol=%s&side=%s&type=MARKET&quantity=%s&timestamp=%d",
		req.Symbol, side, formatQuantity(qty), timestamp)
	signature := Sign(g.secretKey, query)

	url := fmt.Sprintf("%s/fapi/v1/order?%s&signature=%s", g.baseURL, query, signature)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 Binance 下单请求失败: %w", err)
	}
	httpReq.Header.Set("X-MBX-APIKEY", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 Binance 下单请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 Binance 下单响应失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Msg != "" {
			return nil, fmt.Errorf("Binance 拒单: code=%d, msg=%s", apiErr.Code, apiErr.Msg)
		}
		return nil, fmt.Errorf("Binance 下单 HTTP 状态码错误: %d", resp.StatusCode)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, fmt.Errorf("解析 Binance 下单响应失败: %w", err)
	}

	avgPrice, _ := strconv.ParseFloat(orderResp.AvgPrice, 64)
	g.logger.Info("Binance 下单成功",
		zap.String("decision_id", req.DecisionID),
		zap.String("symbol", req.Symbol),
		zap.String("side", side),
		zap.Int64("order_id", orderResp.OrderID),
		zap.Float64("avg_price", avgPrice))

	return &model.Fill{
		Venue:    model.VenueBinance,
		OrderID:  strconv.FormatInt(orderResp.OrderID, 10),
		AvgPrice: avgPrice,
	}, nil
}

// orderQuantity 按名义金额换算下单数量
// 数量向下对齐步长，换算结果为 0 时拒绝下单而不是发送必被拒绝的请求。
func (g *Gateway) orderQuantity(notional float64) (float64, error) {
	price, ok := g.prices.Price(model.VenueBinance)
	if !ok || price <= 0 {
		return 0, fmt.Errorf("缺少 Binance 参考价，无法换算下单数量")
	}

	qty := notional / price
	if g.qtyStep > 0 {
		qty = math.Floor(qty/g.qtyStep) * g.qtyStep
	}
	if qty <= 0 {
		return 0, fmt.Errorf("名义金额 %.2f 在参考价 %.6f 下换算数量为 0", notional, price)
	}
	return qty, nil
}

// formatQuantity 格式化下单数量
// 固定 8 位小数再去尾零，避免科学计数法进入查询串。
func formatQuantity(qty float64) string {
	s := strconv.FormatFloat(qty, 'f', 8, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// Sign 对查询串做 HMAC-SHA256 签名
// 返回十六进制小写摘要
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
