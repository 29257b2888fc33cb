// Package binance 实现 Binance 交易所消息解析。
// aggTrade 的 p 字段映射为成交价事件，depthUpdate 映射为深度事件。
package binance

import (
	"encoding/json"
	"fmt"
	"strings"

	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/metadata"
	"cross-exchange-arbitrage/internal/util/fastparse"
	"cross-exchange-arbitrage/internal/util/timeutil"
)

// Parser Binance 消息解析器
type Parser struct {
	// symbol 交易对映射，用于过滤其他交易对的推送
	symbol *metadata.SymbolMap
}

// NewParser 创建 Binance 消息解析器
// 参数 symbol: 交易对映射
func NewParser(symbol *metadata.SymbolMap) *Parser {
	return &Parser{symbol: symbol}
}

// Parse 解析 Binance WebSocket 消息为 FeedEvent
// 参数 data: 原始消息字节
// 返回: 可能包含 0 或 1 个 FeedEvent（订阅回执等控制消息返回空切片）
func (p *Parser) Parse(data []byte) ([]*model.FeedEvent, error) {
	arrivedAt := timeutil.NowNano()

	var env StreamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("解析 Binance 消息失败: %w", err)
	}

	switch env.EventType {
	case "aggTrade":
		return p.parseAggTrade(data, arrivedAt)
	case "depthUpdate":
		return p.parseDepth(data, arrivedAt)
	default:
		// 订阅回执或未订阅的事件类型
		return nil, nil
	}
}

func (p *Parser) parseAggTrade(data []byte, arrivedAt int64) ([]*model.FeedEvent, error) {
	var msg AggTrade
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance aggTrade 失败: %w", err)
	}

	if !p.matchSymbol(msg.Symbol) {
		return nil, nil
	}

	price, err := fastparse.ParseFloat(msg.Price)
	if err != nil {
		return nil, fmt.Errorf("解析 Binance 成交价失败: %w", err)
	}

	event := &model.FeedEvent{
		Type:            model.FeedPrice,
		Venue:           model.VenueBinance,
		Price:           price,
		ArrivedAtUnixNs: arrivedAt,
	}
	if !event.IsValid() {
		return nil, nil
	}
	return []*model.FeedEvent{event}, nil
}

func (p *Parser) parseDepth(data []byte, arrivedAt int64) ([]*model.FeedEvent, error) {
	var msg DepthUpdate
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析 Binance depthUpdate 失败: %w", err)
	}

	if !p.matchSymbol(msg.Symbol) {
		return nil, nil
	}

	asks := parseLevels(msg.Asks)
	bids := parseLevels(msg.Bids)

	event := &model.FeedEvent{
		Type:            model.FeedDepth,
		Venue:           model.VenueBinance,
		Asks:            asks,
		Bids:            bids,
		ArrivedAtUnixNs: arrivedAt,
	}
	if !event.IsValid() {
		return nil, nil
	}
	return []*model.FeedEvent{event}, nil
}

// parseLevels 解析 [[price, qty], ...] 档位数组
// Binance 推送本身保证 asks 升序、bids 降序，这里原样保留顺序。
func parseLevels(raw [][]string) []model.Level {
	levels := make([]model.Level, 0, len(raw))
	for _, item := range raw {
		if len(item) < 2 {
			continue
		}
		px, _ := fastparse.ParseFloat(item[0])
		qty, _ := fastparse.ParseFloat(item[1])
		if px <= 0 {
			continue
		}
		levels = append(levels, model.Level{Price: px, Volume: qty})
	}
	return levels
}

func (p *Parser) matchSymbol(sym string) bool {
	if p.symbol == nil {
		return false
	}
	return strings.EqualFold(sym, p.symbol.BinanceSym)
}
