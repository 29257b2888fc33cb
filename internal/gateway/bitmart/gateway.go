// Package bitmart 实现 Bitmart 合约市价单下单网关。
// API: POST /contract/private/submit-order
// 签名: 对 timestamp#memo#body 做 HMAC-SHA256，
// X-BM-KEY / X-BM-SIGN / X-BM-TIMESTAMP 头携带凭证
package bitmart

import (
	"bytes"
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

// 方向代码，来自 Bitmart 合约下单接口
const (
	// SideBuyOpenLong 买入开多
	SideBuyOpenLong = 1
	// SideBuyCloseShort 买入平空
	SideBuyCloseShort = 2
	// SideSellCloseLong 卖出平多
	SideSellCloseLong = 3
	// SideSellOpenShort 卖出开空
	SideSellOpenShort = 4
)

// PriceSource 参考价来源
// 市价单按名义金额换算张数时需要一个最新参考价。
type PriceSource interface {
	// Price 获取交易所最新成交价
	Price(venue string) (float64, bool)
}

// OrderRequestBody Bitmart 下单请求体
type OrderRequestBody struct {
	// Symbol 交易对，如 SOLUSDT
	Symbol string `json:"symbol"`
	// Side 方向代码
	Side int `json:"side"`
	// Type 订单类型: market
	Type string `json:"type"`
	// Size 下单张数
	Size int `json:"size"`
	// Leverage 杠杆倍数（字符串）
	Leverage string `json:"leverage"`
	// OpenType 保证金模式: isolated
	OpenType string `json:"open_type"`
}

// OrderResponse Bitmart 下单响应
type OrderResponse struct {
	// Code 响应码，1000 表示成功
	Code int `json:"code"`
	// Message 响应消息
	Message string `json:"message"`
	// Data 订单数据
	Data OrderData `json:"data"`
}

// OrderData Bitmart 订单数据
type OrderData struct {
	// OrderID 订单号
	OrderID int64 `json:"order_id"`
	// Price 成交价（市价单为 "market price"）
	Price string `json:"price"`
}

// Gateway Bitmart 下单网关
// 实现 execution.Gateway 接口。
type Gateway struct {
	// baseURL REST 基础地址
	baseURL string
	// apiKey API Key
	apiKey string
	// secretKey 签名密钥
	secretKey string
	// memo 签名 memo
	memo string
	// contractSize 单张合约面值（基础币种数量）
	contractSize float64
	// prices 参考价来源
	prices PriceSource
	// client HTTP 客户端
	client *http.Client

	logger *zap.Logger
}

// New 创建 Bitmart 下单网关
// 参数 cfg: 网关凭证配置
// 参数 symbol: 交易对映射（提供合约面值）
// 参数 prices: 参考价来源
// 参数 logger: 日志记录器
func New(cfg *config.BitmartGatewayConfig, symbol *metadata.SymbolMap, prices PriceSource, logger *zap.Logger) *Gateway {
	contractSize := symbol.BitmartContractSize
	if contractSize <= 0 {
		contractSize = 1
	}
	return &Gateway{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		secretKey:    cfg.SecretKey,
		memo:         cfg.Memo,
		contractSize: contractSize,
		prices:       prices,
		client:       &http.Client{Timeout: 30 * time.Second},
		logger:       logger.Named("gateway.bitmart"),
	}
}

// PlaceOrder 下市价单
// 按名义金额与最新参考价换算张数，向下取整。
func (g *Gateway) PlaceOrder(ctx context.Context, req execution.OrderRequest) (*model.Fill, error) {
	size, err := g.orderSize(req.Notional)
	if err != nil {
		return nil, err
	}

	body := OrderRequestBody{
		Symbol:   req.Symbol,
		Side:     SideCode(req.Side, req.Reduce),
		Type:     "market",
		Size:     size,
		Leverage: formatLeverage(req.Leverage),
		OpenType: "isolated",
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("序列化 Bitmart 下单请求失败: %w", err)
	}

	timestamp := time.Now().UnixMilli()
	signature := Sign(g.secretKey, g.memo, string(bodyBytes), timestamp)

	url := g.baseURL + "/contract/private/submit-order"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("创建 Bitmart 下单请求失败: %w", err)
	}
	httpReq.Header.Set("X-BM-KEY", g.apiKey)
	httpReq.Header.Set("X-BM-SIGN", signature)
	httpReq.Header.Set("X-BM-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 Bitmart 下单请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取 Bitmart 下单响应失败: %w", err)
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(respBody, &orderResp); err != nil {
		return nil, fmt.Errorf("解析 Bitmart 下单响应失败: %w", err)
	}
	if orderResp.Code != 1000 {
		return nil, fmt.Errorf("Bitmart 拒单: code=%d, msg=%s", orderResp.Code, orderResp.Message)
	}

	avgPrice, _ := strconv.ParseFloat(orderResp.Data.Price, 64)
	g.logger.Info("Bitmart 下单成功",
		zap.String("decision_id", req.DecisionID),
		zap.String("symbol", req.Symbol),
		zap.Int("side", body.Side),
		zap.Int("size", size),
		zap.Int64("order_id", orderResp.Data.OrderID))

	return &model.Fill{
		Venue:    model.VenueBitmart,
		OrderID:  strconv.FormatInt(orderResp.Data.OrderID, 10),
		AvgPrice: avgPrice,
	}, nil
}

// orderSize 按名义金额换算下单张数
// 张数 = 名义金额 / (参考价 × 合约面值)，向下取整；为 0 时拒绝下单。
func (g *Gateway) orderSize(notional float64) (int, error) {
	price, ok := g.prices.Price(model.VenueBitmart)
	if !ok || price <= 0 {
		return 0, fmt.Errorf("缺少 Bitmart 参考价，无法换算下单张数")
	}

	size := int(math.Floor(notional / (price * g.contractSize)))
	if size <= 0 {
		return 0, fmt.Errorf("名义金额 %.2f 在参考价 %.6f 下换算张数为 0", notional, price)
	}
	return size, nil
}

// SideCode 将方向与开/平标记映射为 Bitmart 方向代码
// 开多=1 平空=2 平多=3 开空=4
func SideCode(side model.Side, reduce bool) int {
	if side == model.SideLong {
		if reduce {
			// 买入平空
			return SideBuyCloseShort
		}
		return SideBuyOpenLong
	}
	if reduce {
		// 卖出平多
		return SideSellCloseLong
	}
	return SideSellOpenShort
}

func formatLeverage(leverage float64) string {
	return strconv.FormatFloat(leverage, 'f', -1, 64)
}

// Sign 对 timestamp#memo#body 做 HMAC-SHA256 签名
// 返回十六进制小写摘要
func Sign(secret, memo, body string, timestamp int64) string {
	payload := fmt.Sprintf("%d#%s#%s", timestamp, memo, body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
