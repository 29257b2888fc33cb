// Package controller 决策状态机测试
package controller

import (
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/config"
	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/core/store"
)

func newTestController(cfg config.StrategyConfig) (*Controller, *store.MarketStore) {
	st := store.New(zap.NewNop())
	c := New(cfg, st, nil, nil, zap.NewNop())
	return c, st
}

// setDepthQuotes 用单档大深度直接钉住两家的多/空腿报价
func setDepthQuotes(st *store.MarketStore, nowNs int64, longA, shortA, longB, shortB float64) {
	st.SetDepth(model.VenueBinance,
		[]model.Level{{Price: longA, Volume: 1e6}},
		[]model.Level{{Price: shortA, Volume: 1e6}}, nowNs)
	st.SetDepth(model.VenueBitmart,
		[]model.Level{{Price: longB, Volume: 1e6}},
		[]model.Level{{Price: shortB, Volume: 1e6}}, nowNs)
}

func reconcileSuccess(c *Controller, dec *model.Decision) {
	c.Reconcile(dec, &model.ExecutionOutcome{
		DecisionID: dec.ID,
		Kind:       dec.Kind,
		Status:     model.OutcomeSuccess,
		LegA:       model.LegResult{Venue: model.VenueBinance, Side: dec.LegASide, Fill: &model.Fill{}},
		LegB:       model.LegResult{Venue: model.VenueBitmart, Side: dec.LegBSide, Fill: &model.Fill{}},
	})
}

func TestEvaluate_SpreadModeScenario(t *testing.T) {
	// Binance=100.00, Bitmart=99.00，无深度 → 价差模式
	// gap_ab = (100×0.9995 - 99×1.0005)/(99×1.0005)×100 ≈ 0.91% > 0.3
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	dec := c.Evaluate(1_000_000_000)
	if dec == nil {
		t.Fatalf("价差超过阈值应产生开仓决策")
	}
	if dec.Kind != model.DecisionOpen {
		t.Fatalf("Kind=%s, want open", dec.Kind)
	}
	if dec.LegASide != model.SideShort || dec.LegBSide != model.SideLong {
		t.Fatalf("腿方向错误: A=%s B=%s, want short/long", dec.LegASide, dec.LegBSide)
	}

	wantGap := (100*0.9995 - 99*1.0005) / (99 * 1.0005) * 100
	if math.Abs(dec.EntryGapPct-wantGap) > 1e-9 {
		t.Fatalf("EntryGapPct=%v, want %v", dec.EntryGapPct, wantGap)
	}
	if dec.QuoteA.Mode != model.QuoteModeSpread || dec.QuoteB.Mode != model.QuoteModeSpread {
		t.Fatalf("无深度时两家都应为价差模式")
	}

	pos := c.Snapshot()
	if !pos.IsOpen() {
		t.Fatalf("决策发出后仓位应为 open")
	}
	if pos.EntryGapPct != dec.EntryGapPct || pos.LegASide != model.SideShort || pos.LegBSide != model.SideLong || pos.OpenedAtNs == 0 {
		t.Fatalf("open 状态必须完整描述: %+v", pos)
	}
}

func TestEvaluate_BelowThreshold_NoDecision(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 2.0,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	if dec := c.Evaluate(1); dec != nil {
		t.Fatalf("未超过阈值不应产生决策: %+v", dec)
	}
	if pos := c.Snapshot(); pos.IsOpen() {
		t.Fatalf("仓位应保持 idle")
	}
}

func TestEvaluate_MissingVenue_SkipsCycle(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	// Bitmart 无任何数据

	if dec := c.Evaluate(1); dec != nil {
		t.Fatalf("单边无报价时应跳过本周期")
	}
}

func TestEvaluate_NoDuplicateOpen(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  5.0, // 平仓条件设高，保持持仓
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	dec := c.Evaluate(1)
	if dec == nil {
		t.Fatalf("应产生开仓决策")
	}

	// 执行中: 不允许产生任何新决策
	if dec2 := c.Evaluate(2); dec2 != nil {
		t.Fatalf("执行中不应产生新决策")
	}

	reconcileSuccess(c, dec)

	// 已持仓且未达平仓条件: 不允许再次开仓
	if dec3 := c.Evaluate(3); dec3 != nil {
		t.Fatalf("已持仓不应重复开仓: %+v", dec3)
	}
}

func TestEvaluate_CloseHysteresisRoundTrip(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 1.5,
		ExitReductionPct:  1.0,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)

	// 深度模式钉住报价: gap_ab = (102-100)/100×100 = 2%
	setDepthQuotes(st, 1, 100, 102, 100, 90)
	dec := c.Evaluate(1)
	if dec == nil || dec.Kind != model.DecisionOpen {
		t.Fatalf("应开仓")
	}
	reconcileSuccess(c, dec)
	entry := c.Snapshot().EntryGapPct

	// 收敛 0.8 < 1.0: 不平仓
	setDepthQuotes(st, 2, 100, 101.2, 100, 90)
	if d := c.Evaluate(2); d != nil {
		t.Fatalf("收敛不足不应平仓: %+v", d)
	}

	// 收敛恰好 1.0: 平仓
	setDepthQuotes(st, 3, 100, 101, 100, 90)
	closeDec := c.Evaluate(3)
	if closeDec == nil || closeDec.Kind != model.DecisionClose {
		t.Fatalf("收敛达到 exit_reduction 应平仓")
	}
	if closeDec.EntryGapPct != entry {
		t.Fatalf("平仓决策应携带入场价差: %v != %v", closeDec.EntryGapPct, entry)
	}
	// 平仓腿为开仓腿的反向
	if closeDec.LegASide != model.SideLong || closeDec.LegBSide != model.SideShort {
		t.Fatalf("平仓腿方向错误: A=%s B=%s", closeDec.LegASide, closeDec.LegBSide)
	}

	reconcileSuccess(c, closeDec)
	pos := c.Snapshot()
	if pos.IsOpen() {
		t.Fatalf("平仓成功后应回到 idle")
	}
	if pos.EntryGapPct != 0 || pos.LegASide != "" || pos.LegBSide != "" || pos.OpenedAtNs != 0 {
		t.Fatalf("idle 状态所有入场字段必须清空: %+v", pos)
	}
}

func TestEvaluate_GapDivergenceAlsoCloses(t *testing.T) {
	// 收敛条件取的是 |entry - current|，价差反向发散同样触发
	cfg := config.StrategyConfig{
		EntryThresholdPct: 1.5,
		ExitReductionPct:  1.0,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)

	setDepthQuotes(st, 1, 100, 102, 100, 90)
	dec := c.Evaluate(1)
	reconcileSuccess(c, dec)

	// gap 2% → 3.5%，|2-3.5| = 1.5 ≥ 1.0
	setDepthQuotes(st, 2, 100, 103.5, 100, 90)
	closeDec := c.Evaluate(2)
	if closeDec == nil || closeDec.Kind != model.DecisionClose {
		t.Fatalf("发散超过 exit_reduction 同样应平仓")
	}
}

func TestReconcile_OpenBothFail_RevertsToIdle(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	dec := c.Evaluate(1)
	c.Reconcile(dec, &model.ExecutionOutcome{
		DecisionID: dec.ID, Kind: dec.Kind, Status: model.OutcomeFailure,
		LegA: model.LegResult{Venue: model.VenueBinance, Side: dec.LegASide, Err: errors.New("x")},
		LegB: model.LegResult{Venue: model.VenueBitmart, Side: dec.LegBSide, Err: errors.New("y")},
	})

	pos := c.Snapshot()
	if pos.IsOpen() {
		t.Fatalf("双腿全败应回到 idle")
	}

	// 条件仍成立时可以重试，且只产生一个新决策
	dec2 := c.Evaluate(2)
	if dec2 == nil || dec2.Kind != model.DecisionOpen {
		t.Fatalf("回退后应可重试开仓")
	}
	if dec2.ID == dec.ID {
		t.Fatalf("重试应是新决策")
	}
}

func TestReconcile_CloseBothFail_PositionUnchanged(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 1.5,
		ExitReductionPct:  1.0,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)

	setDepthQuotes(st, 1, 100, 102, 100, 90)
	open := c.Evaluate(1)
	reconcileSuccess(c, open)
	before := c.Snapshot()

	setDepthQuotes(st, 2, 100, 101, 100, 90)
	closeDec := c.Evaluate(2)
	if closeDec == nil {
		t.Fatalf("应产生平仓决策")
	}
	c.Reconcile(closeDec, &model.ExecutionOutcome{
		DecisionID: closeDec.ID, Kind: closeDec.Kind, Status: model.OutcomeFailure,
		LegA: model.LegResult{Venue: model.VenueBinance, Side: closeDec.LegASide, Err: errors.New("x")},
		LegB: model.LegResult{Venue: model.VenueBitmart, Side: closeDec.LegBSide, Err: errors.New("y")},
	})

	after := c.Snapshot()
	if after != before {
		t.Fatalf("双腿平仓全败后仓位必须原样保留:\nbefore=%+v\nafter=%+v", before, after)
	}

	// 条件仍成立时可再次平仓，不会重复开仓
	retry := c.Evaluate(3)
	if retry == nil || retry.Kind != model.DecisionClose {
		t.Fatalf("应可重试平仓: %+v", retry)
	}
}

func TestReconcile_PartialFailure_FlagsUnhedged(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	dec := c.Evaluate(1)
	c.Reconcile(dec, &model.ExecutionOutcome{
		DecisionID: dec.ID, Kind: dec.Kind, Status: model.OutcomePartial,
		LegA: model.LegResult{Venue: model.VenueBinance, Side: dec.LegASide, Fill: &model.Fill{}},
		LegB: model.LegResult{Venue: model.VenueBitmart, Side: dec.LegBSide, Err: errors.New("rejected")},
	})

	pos := c.Snapshot()
	if !pos.IsOpen() {
		t.Fatalf("部分失败不应悄悄标记为已平")
	}
	if !pos.Unhedged {
		t.Fatalf("部分失败必须置 Unhedged")
	}
}

func TestEvaluate_UnhedgedFreezesDecisions(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)
	st.UpsertPrice(model.VenueBinance, 100.00)
	st.UpsertPrice(model.VenueBitmart, 99.00)

	dec := c.Evaluate(1)
	c.Reconcile(dec, &model.ExecutionOutcome{
		DecisionID: dec.ID, Kind: dec.Kind, Status: model.OutcomePartial,
		LegA: model.LegResult{Venue: model.VenueBinance, Side: dec.LegASide, Fill: &model.Fill{}},
		LegB: model.LegResult{Venue: model.VenueBitmart, Side: dec.LegBSide, Err: errors.New("rejected")},
	})

	// 价差充分收敛，正常情况下必然触发平仓
	st.UpsertPrice(model.VenueBitmart, 100.00)
	if got := c.Evaluate(2); got != nil {
		t.Fatalf("单腿暴露期间不应产生自动决策: %+v", got)
	}

	pos := c.Snapshot()
	if !pos.IsOpen() || !pos.Unhedged {
		t.Fatalf("冻结期间仓位描述必须原样保留: %+v", pos)
	}
}

func TestTrySnapshot(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 0.3,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, _ := newTestController(cfg)

	pos, ok := c.TrySnapshot()
	if !ok || pos.Phase != model.PhaseIdle {
		t.Fatalf("空闲锁下应拿到快照: ok=%v pos=%+v", ok, pos)
	}

	// 临界区被占用时必须立刻返回 false，而不是排队等待
	c.mu.Lock()
	if _, ok := c.TrySnapshot(); ok {
		t.Fatalf("锁被占用时 TrySnapshot 应返回 false")
	}
	c.mu.Unlock()

	if _, ok := c.TrySnapshot(); !ok {
		t.Fatalf("锁释放后应恢复可读")
	}
}

func TestEvaluate_TieBreakPrefersAB(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 1.0,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)

	// 两个方向 gap 均为 2%，完全相等 → 确定性取 gap_ab
	setDepthQuotes(st, 1, 100, 102, 100, 102)
	dec := c.Evaluate(1)
	if dec == nil {
		t.Fatalf("应开仓")
	}
	if dec.LegASide != model.SideShort || dec.LegBSide != model.SideLong {
		t.Fatalf("相等价差应取 gap_ab 方向: A=%s B=%s", dec.LegASide, dec.LegBSide)
	}
}

func TestEvaluate_TieBreakLargerGapWins(t *testing.T) {
	cfg := config.StrategyConfig{
		EntryThresholdPct: 1.0,
		ExitReductionPct:  0.1,
		PositionNotional:  1000,
		HalfSpread:        0.0005,
	}
	c, st := newTestController(cfg)

	// gap_ab = 2%，gap_ba = (103-100)/100 = 3% → 取 BA 方向
	setDepthQuotes(st, 1, 100, 102, 100, 103)
	dec := c.Evaluate(1)
	if dec == nil {
		t.Fatalf("应开仓")
	}
	if dec.LegASide != model.SideLong || dec.LegBSide != model.SideShort {
		t.Fatalf("更大价差方向应获胜: A=%s B=%s", dec.LegASide, dec.LegBSide)
	}
	if math.Abs(dec.EntryGapPct-3.0) > 1e-9 {
		t.Fatalf("EntryGapPct=%v, want 3.0", dec.EntryGapPct)
	}
}
