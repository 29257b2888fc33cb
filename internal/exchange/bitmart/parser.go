// Package bitmart 实现 Bitmart 合约交易所消息解析。
// futures/trade 的 deal_price 映射为成交价事件；
// futures/depthAll 按 way 整侧替换，解析器合并两侧后输出完整深度事件。
package bitmart

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/metadata"
	"cross-exchange-arbitrage/internal/util/fastparse"
	"cross-exchange-arbitrage/internal/util/timeutil"
)

// Parser Bitmart 消息解析器
// 深度推送按 way 只携带单侧盘口，解析器持有两侧的最近快照，
// 每次推送合并为完整深度事件。仅由单个读取 goroutine 调用，无需加锁。
type Parser struct {
	// symbol 交易对映射，用于过滤其他交易对的推送
	symbol *metadata.SymbolMap

	// lastAsks 最近一次卖盘快照（价格升序）
	lastAsks []model.Level
	// lastBids 最近一次买盘快照（价格降序）
	lastBids []model.Level
}

// NewParser 创建 Bitmart 消息解析器
// 参数 symbol: 交易对映射
func NewParser(symbol *metadata.SymbolMap) *Parser {
	return &Parser{symbol: symbol}
}

// Parse 解析 Bitmart WebSocket 消息为 FeedEvent
// 参数 data: 原始消息字节
// 返回: 可能包含 0 个或多个 FeedEvent（控制消息返回空切片）
func (p *Parser) Parse(data []byte) ([]*model.FeedEvent, error) {
	arrivedAt := timeutil.NowNano()

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("解析 Bitmart 消息失败: %w", err)
	}

	// 订阅/心跳回执
	if env.Action != "" || env.Group == "" {
		return nil, nil
	}

	switch {
	case strings.HasPrefix(env.Group, "futures/trade:"):
		return p.parseTrades(env.Data, arrivedAt)
	case strings.HasPrefix(env.Group, "futures/depthAll:"):
		return p.parseDepth(env.Data, arrivedAt)
	default:
		return nil, nil
	}
}

func (p *Parser) parseTrades(raw json.RawMessage, arrivedAt int64) ([]*model.FeedEvent, error) {
	var items []TradeItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("解析 Bitmart 成交数据失败: %w", err)
	}

	events := make([]*model.FeedEvent, 0, len(items))
	for _, item := range items {
		if !p.matchSymbol(item.Symbol) {
			continue
		}
		price, err := fastparse.ParseFloat(item.DealPrice)
		if err != nil {
			continue
		}
		event := &model.FeedEvent{
			Type:            model.FeedPrice,
			Venue:           model.VenueBitmart,
			Price:           price,
			ArrivedAtUnixNs: arrivedAt,
		}
		if !event.IsValid() {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func (p *Parser) parseDepth(raw json.RawMessage, arrivedAt int64) ([]*model.FeedEvent, error) {
	var msg DepthData
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("解析 Bitmart 深度数据失败: %w", err)
	}

	if !p.matchSymbol(msg.Symbol) {
		return nil, nil
	}

	levels := make([]model.Level, 0, len(msg.Depths))
	for _, item := range msg.Depths {
		px, _ := fastparse.ParseFloat(item.Price)
		vol, _ := fastparse.ParseFloat(item.Vol)
		if px <= 0 {
			continue
		}
		levels = append(levels, model.Level{Price: px, Volume: vol})
	}

	switch msg.Way {
	case WayBids:
		// 买盘价格降序，最优价在前
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price > levels[j].Price })
		p.lastBids = levels
	case WayAsks:
		// 卖盘价格升序，最优价在前
		sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
		p.lastAsks = levels
	default:
		return nil, nil
	}

	event := &model.FeedEvent{
		Type:            model.FeedDepth,
		Venue:           model.VenueBitmart,
		Asks:            cloneLevels(p.lastAsks),
		Bids:            cloneLevels(p.lastBids),
		ArrivedAtUnixNs: arrivedAt,
	}
	if !event.IsValid() {
		return nil, nil
	}
	return []*model.FeedEvent{event}, nil
}

func cloneLevels(levels []model.Level) []model.Level {
	if levels == nil {
		return nil
	}
	out := make([]model.Level, len(levels))
	copy(out, levels)
	return out
}

func (p *Parser) matchSymbol(sym string) bool {
	if p.symbol == nil {
		return false
	}
	return strings.EqualFold(sym, p.symbol.BitmartSym)
}
