// Package execution 实现开/平仓决策到双腿下单的编排。
// 两条腿并发发往各自的下单网关，结果合并为
// success / partial_failure / failure 三类，由调用方回灌状态机。
package execution

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/core/model"
)

// OrderRequest 单腿下单请求
type OrderRequest struct {
	// Symbol 交易所原生交易对标识
	Symbol string
	// Side 下单方向
	Side model.Side
	// Notional 名义金额（USDT）
	Notional float64
	// Leverage 杠杆倍数
	Leverage float64
	// Reduce 是否为平仓腿（决定交易所方向代码）
	Reduce bool
	// DecisionID 关联的决策标识
	DecisionID string
}

// Gateway 下单网关接口
// 签名与 HTTP 传输完全由网关实现负责，编排器不感知。
type Gateway interface {
	// PlaceOrder 下市价单
	// 返回成交回报或单腿失败原因。
	PlaceOrder(ctx context.Context, req OrderRequest) (*model.Fill, error)
}

// Recorder 观测事件落地接口（非阻塞尽力而为）
type Recorder interface {
	TryWrite(v any) bool
}

// Orchestrator 双腿下单编排器
type Orchestrator struct {
	// gatewayA A 腿（Binance）网关
	gatewayA Gateway
	// gatewayB B 腿（Bitmart）网关
	gatewayB Gateway
	// symbolA A 腿交易所原生交易对
	symbolA string
	// symbolB B 腿交易所原生交易对
	symbolB string
	// notional 单腿名义金额
	notional float64
	// leverage 杠杆倍数
	leverage float64
	// slippagePct 滑点容忍度（百分比）；0 表示不校验
	slippagePct float64
	// legTimeout 单腿下单超时；0 表示不限时（源行为）
	legTimeout time.Duration

	logger *zap.Logger
	sink   Recorder
}

// New 创建双腿下单编排器
// 参数 gatewayA/gatewayB: 两条腿的下单网关
// 参数 symbolA/symbolB: 两条腿的交易所原生交易对
// 参数 notional: 单腿名义金额
// 参数 leverage: 杠杆倍数
// 参数 slippagePct: 滑点容忍度（百分比，0 表示不校验）
// 参数 legTimeout: 单腿下单超时
// 参数 sink: 观测事件输出（可为 nil）
// 参数 logger: 日志记录器
func New(gatewayA, gatewayB Gateway, symbolA, symbolB string, notional, leverage, slippagePct float64, legTimeout time.Duration, sink Recorder, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		gatewayA:    gatewayA,
		gatewayB:    gatewayB,
		symbolA:     symbolA,
		symbolB:     symbolB,
		notional:    notional,
		leverage:    leverage,
		slippagePct: slippagePct,
		legTimeout:  legTimeout,
		logger:      logger.Named("execution"),
		sink:        sink,
	}
}

// Execute 执行一个开/平仓决策
// 两条腿并发下单，互不影响地各自成功或失败；
// 恰好一条腿成功时报告 partial_failure 并指明失败的交易所与方向，
// 绝不悄悄重试，也绝不把部分成交当作整体成功。
// 两腿全败时不产生任何状态变化（由状态机恢复先前阶段后可重试）。
func (o *Orchestrator) Execute(ctx context.Context, dec *model.Decision) *model.ExecutionOutcome {
	outcome := &model.ExecutionOutcome{
		DecisionID: dec.ID,
		Kind:       dec.Kind,
	}
	reduce := dec.Kind == model.DecisionClose

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		outcome.LegA = o.placeLeg(ctx, o.gatewayA, model.VenueBinance, o.symbolA, dec.LegASide, reduce, dec.ID)
	}()
	go func() {
		defer wg.Done()
		outcome.LegB = o.placeLeg(ctx, o.gatewayB, model.VenueBitmart, o.symbolB, dec.LegBSide, reduce, dec.ID)
	}()
	wg.Wait()

	okA, okB := outcome.LegA.OK(), outcome.LegB.OK()
	switch {
	case okA && okB:
		outcome.Status = model.OutcomeSuccess
	case okA || okB:
		outcome.Status = model.OutcomePartial
	default:
		outcome.Status = model.OutcomeFailure
	}

	o.recordLeg(dec, outcome.LegA)
	o.recordLeg(dec, outcome.LegB)
	o.checkSlippage(dec, outcome.LegA, dec.QuoteA)
	o.checkSlippage(dec, outcome.LegB, dec.QuoteB)

	o.logger.Info("双腿执行完成",
		zap.String("decision_id", dec.ID),
		zap.String("kind", string(dec.Kind)),
		zap.String("status", string(outcome.Status)))

	return outcome
}

// placeLeg 执行单腿下单
// 单腿超时通过子 context 施加，不影响另一条腿。
func (o *Orchestrator) placeLeg(ctx context.Context, gw Gateway, venue, symbol string, side model.Side, reduce bool, decisionID string) model.LegResult {
	result := model.LegResult{Venue: venue, Side: side}

	legCtx := ctx
	if o.legTimeout > 0 {
		var cancel context.CancelFunc
		legCtx, cancel = context.WithTimeout(ctx, o.legTimeout)
		defer cancel()
	}

	fill, err := gw.PlaceOrder(legCtx, OrderRequest{
		Symbol:     symbol,
		Side:       side,
		Notional:   o.notional,
		Leverage:   o.leverage,
		Reduce:     reduce,
		DecisionID: decisionID,
	})
	if err != nil {
		result.Err = err
		o.logger.Warn("单腿下单失败",
			zap.String("decision_id", decisionID),
			zap.String("venue", venue),
			zap.String("side", string(side)),
			zap.Error(err))
		return result
	}

	result.Fill = fill
	return result
}

// checkSlippage 校验成交价相对决策报价的偏离
// 市价单成交无法撤回，超过容忍度只升级为告警，不改变结果分类。
// 多头腿按决策时的 LongPx 比较，空头腿按 ShortPx。
func (o *Orchestrator) checkSlippage(dec *model.Decision, leg model.LegResult, q model.SyntheticQuote) {
	if o.slippagePct <= 0 || !leg.OK() || leg.Fill == nil || leg.Fill.AvgPrice <= 0 {
		return
	}

	expected := q.LongPx
	if leg.Side == model.SideShort {
		expected = q.ShortPx
	}
	if expected <= 0 {
		return
	}

	devPct := math.Abs(leg.Fill.AvgPrice-expected) / expected * 100
	if devPct <= o.slippagePct {
		return
	}

	o.logger.Error("成交滑点超过容忍度",
		zap.String("decision_id", dec.ID),
		zap.String("venue", leg.Venue),
		zap.String("side", string(leg.Side)),
		zap.Float64("expected_px", expected),
		zap.Float64("fill_px", leg.Fill.AvgPrice),
		zap.Float64("deviation_pct", devPct),
		zap.Float64("tolerance_pct", o.slippagePct))

	if o.sink != nil {
		o.sink.TryWrite(model.SlippageRecord{
			TsUnixNs:     dec.DecidedAtNs,
			DecisionID:   dec.ID,
			Venue:        leg.Venue,
			Side:         string(leg.Side),
			ExpectedPx:   expected,
			FillPx:       leg.Fill.AvgPrice,
			DeviationPct: devPct,
		})
	}
}

func (o *Orchestrator) recordLeg(dec *model.Decision, leg model.LegResult) {
	if o.sink == nil {
		return
	}
	rec := model.LegOutcomeRecord{
		TsUnixNs:   dec.DecidedAtNs,
		DecisionID: dec.ID,
		Venue:      leg.Venue,
		Side:       string(leg.Side),
		OK:         leg.OK(),
	}
	if leg.Fill != nil {
		rec.OrderID = leg.Fill.OrderID
		rec.AvgPrice = leg.Fill.AvgPrice
	}
	if leg.Err != nil {
		rec.Error = leg.Err.Error()
	}
	o.sink.TryWrite(rec)
}
