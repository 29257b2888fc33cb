// Package controller 实现跨交易所价差的开/平仓决策状态机。
// 对外只存在 idle 与 open 两种可观察状态；读取两家报价与写入仓位状态
// 在同一把锁保护的临界区内完成，决策以值返回，下单在临界区外执行。
package controller

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cross-exchange-arbitrage/internal/config"
	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/core/quote"
	"cross-exchange-arbitrage/internal/core/store"
	"cross-exchange-arbitrage/internal/stats/gap"
)

// Recorder 观测事件落地接口
// 投递必须是非阻塞尽力而为，绝不允许拖慢决策路径。
type Recorder interface {
	TryWrite(v any) bool
}

// Controller 套利决策状态机
// 全进程唯一的 PositionState 由本结构独占持有。
type Controller struct {
	mu sync.Mutex

	// cfg 策略配置（进程生命周期内不可变）
	cfg config.StrategyConfig
	// store 行情缓存
	store *store.MarketStore
	// builder 合成报价构建器
	builder *quote.Builder
	// logger 日志记录器
	logger *zap.Logger
	// sink 观测事件输出（可为 nil）
	sink Recorder
	// gapStats 价差滚动统计（可为 nil）
	gapStats *gap.Tracker

	// pos 仓位状态，仅在持锁时读写
	pos model.PositionState
	// prior 决策发出前的仓位快照，用于双腿全败时恢复
	prior model.PositionState
	// inFlight 是否有决策正在执行中
	// 置位期间 Evaluate 不产生新决策，从结构上杜绝重复开仓。
	inFlight bool
}

// New 创建套利决策状态机
// 参数 cfg: 策略配置
// 参数 st: 行情缓存
// 参数 gapStats: 价差统计（可为 nil）
// 参数 sink: 观测事件输出（可为 nil）
// 参数 logger: 日志记录器
func New(cfg config.StrategyConfig, st *store.MarketStore, gapStats *gap.Tracker, sink Recorder, logger *zap.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		store:    st,
		builder:  quote.NewBuilder(cfg.PositionNotional, cfg.HalfSpread, cfg.DepthTTL()),
		logger:   logger.Named("controller"),
		sink:     sink,
		gapStats: gapStats,
		pos:      model.PositionState{Phase: model.PhaseIdle},
	}
}

// Snapshot 获取当前仓位状态的拷贝
func (c *Controller) Snapshot() model.PositionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

// TrySnapshot 非阻塞地获取仓位状态的拷贝
// 监控读者拿不到锁时应跳过本周期，而不是排在评估临界区后面。
// 返回: 状态拷贝与是否成功
func (c *Controller) TrySnapshot() (model.PositionState, bool) {
	if !c.mu.TryLock() {
		return model.PositionState{}, false
	}
	defer c.mu.Unlock()
	return c.pos, true
}

// Evaluate 执行一轮价差评估
// 参数 nowNs: 当前时间（纳秒）
// 返回: 开/平仓决策，无决策时为 nil。
// 整个评估（读两家报价 + 写仓位状态）在一个临界区内完成，
// 并发行情更新不会让决策建立在一新一旧的报价组合上。
// 每轮至多产生一次状态迁移。
func (c *Controller) Evaluate(nowNs int64) *model.Decision {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight {
		return nil
	}

	quoteA, quoteB, ok := c.buildQuotes(nowNs)
	if !ok {
		return nil
	}

	// gap_ab: A 空 B 多；gap_ba: B 空 A 多
	gapAB, okAB := gapPct(quoteA.ShortPx, quoteB.LongPx)
	gapBA, okBA := gapPct(quoteB.ShortPx, quoteA.LongPx)
	if !okAB || !okBA {
		return nil
	}

	c.observeGaps(nowNs, gapAB, gapBA, quoteA, quoteB)

	// 单腿暴露后冻结自动决策：对未成交的那条腿再下反向单只会扩大敞口，
	// 后续处置交给人工（与告警语义一致）。价差观测照常输出。
	if c.pos.Unhedged {
		return nil
	}

	var dec *model.Decision
	if c.pos.IsOpen() {
		dec = c.evaluateClose(nowNs, gapAB, gapBA, quoteA, quoteB)
	} else {
		dec = c.evaluateOpen(nowNs, gapAB, gapBA, quoteA, quoteB)
	}
	if dec == nil {
		return nil
	}

	c.inFlight = true
	c.recordTransition(dec)
	return dec
}

// buildQuotes 为两家交易所各构建一份可用报价
// 任一家拿不到可用报价则跳过本周期。
func (c *Controller) buildQuotes(nowNs int64) (quoteA, quoteB model.SyntheticQuote, ok bool) {
	priceA, _ := c.store.Price(model.VenueBinance)
	priceB, _ := c.store.Price(model.VenueBitmart)
	bookA := c.store.Depth(model.VenueBinance)
	bookB := c.store.Depth(model.VenueBitmart)

	quoteA, okA := c.builder.Build(model.VenueBinance, priceA, bookA, nowNs)
	quoteB, okB := c.builder.Build(model.VenueBitmart, priceB, bookB, nowNs)
	if !okA || !okB || !quoteA.IsUsable() || !quoteB.IsUsable() {
		return model.SyntheticQuote{}, model.SyntheticQuote{}, false
	}
	return quoteA, quoteB, true
}

// evaluateOpen 评估 Idle→Open 迁移
// 两个方向都越过入场阈值时取绝对值更大的一侧；恰好相等时确定性地取 gap_ab。
func (c *Controller) evaluateOpen(nowNs int64, gapAB, gapBA float64, quoteA, quoteB model.SyntheticQuote) *model.Decision {
	hitAB := gapAB > c.cfg.EntryThresholdPct
	hitBA := gapBA > c.cfg.EntryThresholdPct
	if !hitAB && !hitBA {
		return nil
	}

	useAB := hitAB
	if hitAB && hitBA {
		useAB = math.Abs(gapAB) >= math.Abs(gapBA)
	}

	var legA, legB model.Side
	var entryGap float64
	if useAB {
		legA, legB, entryGap = model.SideShort, model.SideLong, gapAB
	} else {
		legA, legB, entryGap = model.SideLong, model.SideShort, gapBA
	}

	c.prior = c.pos
	c.pos = model.PositionState{
		Phase:       model.PhaseOpen,
		EntryGapPct: entryGap,
		LegASide:    legA,
		LegBSide:    legB,
		OpenedAtNs:  nowNs,
	}

	return &model.Decision{
		ID:            uuid.NewString(),
		Kind:          model.DecisionOpen,
		LegASide:      legA,
		LegBSide:      legB,
		EntryGapPct:   entryGap,
		CurrentGapPct: entryGap,
		QuoteA:        quoteA,
		QuoteB:        quoteB,
		DecidedAtNs:   nowNs,
	}
}

// evaluateClose 评估 Open→Idle 迁移
// 用入场时记录的腿方向对应的同一公式重算当前价差，
// 收敛幅度 |entry_gap - current_gap| 达到 exit_reduction_pct 才平仓。
func (c *Controller) evaluateClose(nowNs int64, gapAB, gapBA float64, quoteA, quoteB model.SyntheticQuote) *model.Decision {
	current := gapAB
	if c.pos.LegASide == model.SideLong {
		current = gapBA
	}

	if math.Abs(c.pos.EntryGapPct-current) < c.cfg.ExitReductionPct {
		return nil
	}

	dec := &model.Decision{
		ID:            uuid.NewString(),
		Kind:          model.DecisionClose,
		LegASide:      c.pos.LegASide.Opposite(),
		LegBSide:      c.pos.LegBSide.Opposite(),
		EntryGapPct:   c.pos.EntryGapPct,
		CurrentGapPct: current,
		QuoteA:        quoteA,
		QuoteB:        quoteB,
		DecidedAtNs:   nowNs,
	}

	// 决策发出后在同一临界区内清空仓位字段，
	// 双腿全败时由 Reconcile 恢复 prior。
	c.prior = c.pos
	c.pos = model.PositionState{Phase: model.PhaseIdle}

	return dec
}

// Reconcile 把双腿执行结果合并回仓位状态
// 必须在对应决策的执行结束后恰好调用一次。
// 规则:
//   - 全部成交: 维持决策时写入的状态
//   - 全部失败: 恢复决策前的状态（可重试，不会产生重复开仓）
//   - 部分失败: 保留持仓描述并置 Unhedged，升级为告警事件，
//     绝不自动重试，也绝不悄悄标记为已平仓
func (c *Controller) Reconcile(dec *model.Decision, outcome *model.ExecutionOutcome) {
	if dec == nil || outcome == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.inFlight = false

	switch outcome.Status {
	case model.OutcomeSuccess:
		// 状态已在决策时写入

	case model.OutcomeFailure:
		c.pos = c.prior
		c.logger.Warn("双腿全部失败，仓位状态回退",
			zap.String("decision_id", dec.ID),
			zap.String("kind", string(dec.Kind)),
			zap.String("phase", string(c.pos.Phase)))

	case model.OutcomePartial:
		if dec.Kind == model.DecisionClose {
			// 平仓部分失败：按入场描述恢复持仓，避免被当作已平
			c.pos = c.prior
		}
		c.pos.Unhedged = true
		c.alertPartial(dec, outcome)
	}
}

// alertPartial 发出单腿暴露告警
// 部分失败必须以区别于普通日志的告警级别暴露出去。
func (c *Controller) alertPartial(dec *model.Decision, outcome *model.ExecutionOutcome) {
	for _, leg := range outcome.FailedLegs() {
		errMsg := ""
		if leg.Err != nil {
			errMsg = leg.Err.Error()
		}
		c.logger.Error("单腿暴露：一条腿未成交",
			zap.String("decision_id", dec.ID),
			zap.String("kind", string(dec.Kind)),
			zap.String("failed_venue", leg.Venue),
			zap.String("failed_side", string(leg.Side)),
			zap.String("error", errMsg))

		if c.sink != nil {
			c.sink.TryWrite(model.AlertRecord{
				TsUnixNs:    dec.DecidedAtNs,
				DecisionID:  dec.ID,
				Kind:        string(dec.Kind),
				FailedVenue: leg.Venue,
				FailedSide:  string(leg.Side),
				Message:     "partial failure: unhedged exposure, manual intervention required",
			})
		}
	}
}

func (c *Controller) observeGaps(nowNs int64, gapAB, gapBA float64, quoteA, quoteB model.SyntheticQuote) {
	if c.gapStats != nil {
		c.gapStats.Add(gapAB, gapBA)
	}
	if c.sink != nil {
		c.sink.TryWrite(model.GapRecord{
			TsUnixNs: nowNs,
			GapABPct: gapAB,
			GapBAPct: gapBA,
			ModeA:    string(quoteA.Mode),
			ModeB:    string(quoteB.Mode),
			Phase:    string(c.pos.Phase),
		})
	}
}

func (c *Controller) recordTransition(dec *model.Decision) {
	c.logger.Info("状态迁移",
		zap.String("decision_id", dec.ID),
		zap.String("kind", string(dec.Kind)),
		zap.String("leg_a", string(dec.LegASide)),
		zap.String("leg_b", string(dec.LegBSide)),
		zap.Float64("entry_gap_pct", dec.EntryGapPct),
		zap.Float64("current_gap_pct", dec.CurrentGapPct))

	if c.sink != nil {
		c.sink.TryWrite(model.TransitionRecord{
			TsUnixNs:      dec.DecidedAtNs,
			DecisionID:    dec.ID,
			Kind:          string(dec.Kind),
			LegASide:      string(dec.LegASide),
			LegBSide:      string(dec.LegBSide),
			EntryGapPct:   dec.EntryGapPct,
			CurrentGapPct: dec.CurrentGapPct,
		})
	}
}

// gapPct 计算价差百分比: (short - long) / long × 100
// 非正的基准价直接短路为不可用，评估路径上不允许出现除零。
func gapPct(shortPx, longPx float64) (float64, bool) {
	if shortPx <= 0 || longPx <= 0 {
		return 0, false
	}
	return (shortPx - longPx) / longPx * 100, true
}
