// Package main 是跨所价差套利机器人的入口点。
// 监听 Binance 与 Bitmart 两家交易所同一 USDT 永续合约的实时行情，
// 当双向价差越过入场阈值时双腿对冲开仓，价差收敛后平仓。
//
// 通过 gateway.dry_run 配置可切换为演练模式（不发真实订单）。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cross-exchange-arbitrage/internal/config"
	"cross-exchange-arbitrage/internal/core/controller"
	"cross-exchange-arbitrage/internal/core/execution"
	"cross-exchange-arbitrage/internal/core/model"
	"cross-exchange-arbitrage/internal/core/store"
	binancews "cross-exchange-arbitrage/internal/exchange/binance"
	bitmartws "cross-exchange-arbitrage/internal/exchange/bitmart"
	binancegw "cross-exchange-arbitrage/internal/gateway/binance"
	bitmartgw "cross-exchange-arbitrage/internal/gateway/bitmart"
	"cross-exchange-arbitrage/internal/gateway/dryrun"
	"cross-exchange-arbitrage/internal/metadata"
	"cross-exchange-arbitrage/internal/output/jsonl"
	"cross-exchange-arbitrage/internal/stats/gap"
	"cross-exchange-arbitrage/internal/stats/pnl"
	"cross-exchange-arbitrage/internal/util/timeutil"
)

type metricsSnapshot struct {
	// TsUnixNs 指标采集时间（纳秒）
	TsUnixNs int64 `json:"ts_unix_ns"`

	// Binance Binance 连接指标
	Binance binancews.ConnectionMetrics `json:"binance"`
	// Bitmart Bitmart 连接指标
	Bitmart bitmartws.ConnectionMetrics `json:"bitmart"`

	// GapAB A空B多 方向价差统计
	GapAB gap.Stats `json:"gap_ab"`
	// GapBA B空A多 方向价差统计
	GapBA gap.Stats `json:"gap_ba"`

	// Pnl 已平仓回合收益统计
	Pnl pnl.Stats `json:"pnl"`

	// Phase 当前仓位阶段
	Phase string `json:"phase"`
	// Unhedged 是否处于单腿暴露状态
	Unhedged bool `json:"unhedged"`

	// Prices 两家交易所最新价格快照
	Prices map[string]float64 `json:"prices,omitempty"`
	// EventsDropped 事件文件因缓冲满被丢弃的记录数
	EventsDropped int64 `json:"events_dropped,omitempty"`
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.App.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 捕获 SIGINT/SIGTERM，触发优雅退出
	sigCh := make(chan os.Signal, 2)
	ossignal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("收到退出信号，开始优雅关闭")
		cancel()
	}()

	// 启动时获取双边合约元数据并构建 symbol 映射（禁止硬编码订阅 symbol）
	fetcher := metadata.NewHTTPFetcher(cfg.Metadata.TimeoutMs)
	symbolMap, err := metadata.BuildSymbolMap(ctx, cfg, fetcher)
	if err != nil {
		logger.Error("构建 symbol 映射失败", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("symbol 映射完成",
		zap.String("canon", symbolMap.Canon),
		zap.String("binance", symbolMap.BinanceSym),
		zap.String("bitmart", symbolMap.BitmartSym),
		zap.Float64("bitmart_contract_size", symbolMap.BitmartContractSize))

	binanceClient := binancews.NewClient(&cfg.WS.Binance, symbolMap, logger)
	bitmartClient := bitmartws.NewClient(&cfg.WS.Bitmart, symbolMap, logger)

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()

	if err := binanceClient.Connect(startCtx); err != nil {
		logger.Error("Binance 连接失败", zap.Error(err))
		os.Exit(1)
	}
	if err := binanceClient.Subscribe(); err != nil {
		logger.Error("Binance 订阅失败", zap.Error(err))
		os.Exit(1)
	}

	if err := bitmartClient.Connect(startCtx); err != nil {
		logger.Error("Bitmart 连接失败", zap.Error(err))
		os.Exit(1)
	}
	if err := bitmartClient.Subscribe(); err != nil {
		logger.Error("Bitmart 订阅失败", zap.Error(err))
		os.Exit(1)
	}

	go binanceClient.Run(ctx)
	go bitmartClient.Run(ctx)

	var eventsWriter *jsonl.Writer
	var tradesWriter *jsonl.Writer
	var metricsWriter *jsonl.Writer
	if cfg.Output.EventsEnabled {
		eventsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/events.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 events writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}
	if cfg.Output.TradesEnabled {
		tradesWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/trades.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 trades writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}
	if cfg.Output.MetricsEnabled {
		metricsWriter, err = jsonl.NewWriter(fmt.Sprintf("%s/metrics.jsonl", cfg.Output.Dir), cfg.Output.BufferSize)
		if err != nil {
			logger.Error("创建 metrics writer 失败", zap.Error(err))
			os.Exit(1)
		}
	}

	// 初始化核心组件
	marketStore := store.New(logger)
	gapTracker := gap.NewTracker(10000)
	pnlCalc := pnl.NewCalculator(1000)

	ctrl := controller.New(cfg.Strategy, marketStore, gapTracker, eventsWriter, logger)

	gatewayA, gatewayB := newGateways(cfg, symbolMap, marketStore, logger)
	orchestrator := execution.New(
		gatewayA, gatewayB,
		symbolMap.BinanceSym, symbolMap.BitmartSym,
		cfg.Strategy.PositionNotional, cfg.Strategy.Leverage, cfg.Strategy.SlippageTolerancePct,
		time.Duration(cfg.Gateway.TimeoutMs)*time.Millisecond,
		tradesWriter, logger)

	agg := &aggregator{
		logger:        logger.Named("aggregator"),
		store:         marketStore,
		ctrl:          ctrl,
		orchestrator:  orchestrator,
		gapTracker:    gapTracker,
		pnlCalc:       pnlCalc,
		binanceClient: binanceClient,
		bitmartClient: bitmartClient,
		eventsWriter:  eventsWriter,
		metricsWriter: metricsWriter,
	}
	agg.run(ctx, cfg.Output.MetricsIntervalMs)

	// 等待在途决策的双腿下单收尾，避免单腿暴露悬而未决
	agg.waitInflight(10 * time.Second)

	// 输出最后一条 metrics 快照（便于离线复盘）
	if metricsWriter != nil {
		_ = metricsWriter.Write(agg.snapshot(timeutil.NowNano()))
		_ = metricsWriter.Flush()
	}

	// 优雅关闭（10s 超时）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = binanceClient.Close()
		_ = bitmartClient.Close()
		if eventsWriter != nil {
			_ = eventsWriter.Close()
		}
		if tradesWriter != nil {
			_ = tradesWriter.Close()
		}
		if metricsWriter != nil {
			_ = metricsWriter.Close()
		}
	}()

	select {
	case <-shutdownCtx.Done():
		logger.Warn("关闭超时，强制退出")
	case <-done:
		logger.Info("关闭完成")
	}
}

// newGateways 按配置构造两条腿的下单网关
// 演练模式下两条腿都换成 dryrun 网关，按行情缓存中的最新价回报假成交。
func newGateways(cfg *config.Config, symbolMap *metadata.SymbolMap, prices *store.MarketStore, logger *zap.Logger) (execution.Gateway, execution.Gateway) {
	if cfg.Gateway.DryRun {
		logger.Info("演练模式已启用，不向交易所发送真实订单")
		return dryrun.New(model.VenueBinance, prices, logger),
			dryrun.New(model.VenueBitmart, prices, logger)
	}
	return binancegw.New(&cfg.Gateway.Binance, symbolMap, prices, logger),
		bitmartgw.New(&cfg.Gateway.Bitmart, symbolMap, prices, logger)
}

func newLogger(level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// aggregator 单 goroutine 事件聚合器
// 两家交易所的行情事件在这里汇聚成行情缓存更新与价差评估；
// 决策产生后交给编排器在独立 goroutine 中执行，不阻塞行情消费。
type aggregator struct {
	logger       *zap.Logger
	store        *store.MarketStore
	ctrl         *controller.Controller
	orchestrator *execution.Orchestrator
	gapTracker   *gap.Tracker
	pnlCalc      *pnl.Calculator

	binanceClient *binancews.Client
	bitmartClient *bitmartws.Client

	eventsWriter  *jsonl.Writer
	metricsWriter *jsonl.Writer

	// openedAtNs 当前持仓的开仓时间（纳秒），无持仓时为 0。
	// 同一时刻至多一个在途决策，执行 goroutine 串行读写。
	openedAtNs int64
	// inflight 在途决策执行数（0 或 1）
	inflight int64
}

// run 主循环：消费行情事件并按指标间隔输出快照
// 两个行情通道都关闭后返回。
func (a *aggregator) run(ctx context.Context, metricsIntervalMs int) {
	binanceCh := a.binanceClient.EventCh()
	bitmartCh := a.bitmartClient.EventCh()

	if metricsIntervalMs <= 0 {
		metricsIntervalMs = 10000
	}
	metricsTicker := time.NewTicker(time.Duration(metricsIntervalMs) * time.Millisecond)
	defer metricsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-binanceCh:
			if !ok {
				binanceCh = nil
				continue
			}
			a.handleFeedEvent(ctx, ev)

		case ev, ok := <-bitmartCh:
			if !ok {
				bitmartCh = nil
				continue
			}
			a.handleFeedEvent(ctx, ev)

		case <-metricsTicker.C:
			if a.metricsWriter == nil {
				continue
			}
			snap := a.snapshot(timeutil.NowNano())
			_ = a.metricsWriter.Write(snap)
			_ = a.metricsWriter.Flush()
		}

		if binanceCh == nil && bitmartCh == nil {
			return
		}
	}
}

// handleFeedEvent 处理一条行情事件并驱动一轮价差评估
func (a *aggregator) handleFeedEvent(ctx context.Context, ev *model.FeedEvent) {
	if !ev.IsValid() {
		return
	}

	switch ev.Type {
	case model.FeedPrice:
		if !a.store.UpsertPrice(ev.Venue, ev.Price) {
			return
		}
	case model.FeedDepth:
		a.store.SetDepth(ev.Venue, ev.Asks, ev.Bids, ev.ArrivedAtUnixNs)
	default:
		return
	}

	dec := a.ctrl.Evaluate(timeutil.NowNano())
	if dec == nil {
		return
	}

	// 下单在行情消费路径之外执行；Evaluate 的 in-flight 标记
	// 保证执行结束前不会产生下一个决策。
	// 退出信号不打断已发出的决策，单腿超时负责兜底。
	execCtx := context.WithoutCancel(ctx)
	atomic.AddInt64(&a.inflight, 1)
	go func() {
		defer atomic.AddInt64(&a.inflight, -1)
		outcome := a.orchestrator.Execute(execCtx, dec)
		a.ctrl.Reconcile(dec, outcome)
		a.settle(dec, outcome)
	}()
}

// settle 记录成功决策的回合收益
// 开仓成功时记下开仓时间，平仓成功时产出一个完整回合。
func (a *aggregator) settle(dec *model.Decision, outcome *model.ExecutionOutcome) {
	if outcome.Status != model.OutcomeSuccess {
		return
	}

	switch dec.Kind {
	case model.DecisionOpen:
		atomic.StoreInt64(&a.openedAtNs, dec.DecidedAtNs)

	case model.DecisionClose:
		rt := pnl.RoundTrip{
			EntryGapPct: dec.EntryGapPct,
			ExitGapPct:  dec.CurrentGapPct,
			OpenedAtNs:  atomic.LoadInt64(&a.openedAtNs),
			ClosedAtNs:  dec.DecidedAtNs,
		}
		a.pnlCalc.Add(rt)
		atomic.StoreInt64(&a.openedAtNs, 0)

		a.logger.Info("回合完成",
			zap.String("decision_id", dec.ID),
			zap.Float64("entry_gap_pct", rt.EntryGapPct),
			zap.Float64("exit_gap_pct", rt.ExitGapPct),
			zap.Float64("gross_pct", rt.GrossPct()),
			zap.Duration("held", time.Duration(rt.ClosedAtNs-rt.OpenedAtNs)))
	}
}

// waitInflight 等待在途决策执行收尾
// 超时后放弃等待，由日志与事件文件留痕。
func (a *aggregator) waitInflight(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for atomic.LoadInt64(&a.inflight) > 0 {
		if time.Now().After(deadline) {
			a.logger.Warn("等待在途下单超时")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// snapshot 采集一条指标快照
// 仓位与行情都走非阻塞读取，监控周期绝不排在评估临界区后面。
func (a *aggregator) snapshot(nowNs int64) metricsSnapshot {
	snap := metricsSnapshot{
		TsUnixNs: nowNs,
		Binance:  a.binanceClient.Metrics(),
		Bitmart:  a.bitmartClient.Metrics(),
		GapAB:    a.gapTracker.StatsAB(),
		GapBA:    a.gapTracker.StatsBA(),
		Pnl:      a.pnlCalc.Stats(),
	}
	if pos, ok := a.ctrl.TrySnapshot(); ok {
		snap.Phase = string(pos.Phase)
		snap.Unhedged = pos.Unhedged
	}
	if ov, ok := a.store.TryOverview(); ok {
		snap.Prices = ov.Prices
	}
	if a.eventsWriter != nil {
		snap.EventsDropped = a.eventsWriter.Dropped()
	}
	return snap
}
