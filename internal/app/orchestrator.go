package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/execution"
	"signal-trader/internal/market"
	"signal-trader/internal/monitor"
	"signal-trader/internal/risk"
	"signal-trader/internal/sentiment"
	"signal-trader/internal/signal"
	"signal-trader/internal/store"
	"signal-trader/internal/strategy"
)

// weightedStrategy 将策略与其投票权重绑定。
type weightedStrategy struct {
	impl   strategy.Strategy
	weight float64
}

// orchestrator 串起行情、策略、风控与执行的完整流水线。
// 信号生成可以并发，风控校验与下单按标的串行。
type orchestrator struct {
	symbols    []string
	market     *market.Service
	sentiment  sentiment.Provider
	strategies []weightedStrategy
	risk       *risk.Manager
	executor   *execution.Executor
	gateway    broker.Gateway
	monitor    *monitor.Service
	logger     *zap.Logger

	orderKind broker.OrderKind
	lookback  int

	dayStart  float64
	dayDate   string
	dayInited bool
}

type orchestratorConfig struct {
	app        config.AppConfig
	broker     config.BrokerConfig
	sentiment  config.SentimentConfig
	strategies config.StrategiesConfig
	risk       config.RiskConfig
	execution  config.ExecutionConfig
}

func newOrchestrator(cfg orchestratorConfig, logger *zap.Logger, st *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var gateway broker.Gateway
	var candles market.CandleSource
	if cfg.execution.Simulation {
		logger.Info("执行网关处于模拟模式")
		paper := broker.NewPaperGateway(broker.Account{Equity: 100_000, Cash: 100_000, BuyingPower: 100_000})
		gateway = paper

		live, err := broker.NewCCXTGateway(cfg.broker, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化行情网关失败: %w", err)
		}
		candles = live
	} else {
		live, err := broker.NewCCXTGateway(cfg.broker, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化交易网关失败: %w", err)
		}
		gateway = live
		candles = live
	}

	marketSvc := market.NewService(candles, cfg.broker.Timeframe, logger)

	var sentimentSvc sentiment.Provider
	if cfg.sentiment.Enabled {
		headlines, err := sentiment.NewHeadlineClient(cfg.sentiment.News, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化新闻数据源失败: %w", err)
		}
		analyzer, err := sentiment.NewAnalyzer(cfg.sentiment, headlines, logger)
		if err != nil {
			return nil, fmt.Errorf("初始化情绪分析失败: %w", err)
		}
		sentimentSvc = analyzer
	}

	params := strategy.Params{
		Lookback:            cfg.strategies.Lookback,
		RiskPerTrade:        cfg.strategies.RiskPerTrade,
		MaxPositionFraction: cfg.strategies.MaxPositionFraction,
	}

	strategies := make([]weightedStrategy, 0, 3)
	if cfg.strategies.Momentum.Enabled {
		strategies = append(strategies, weightedStrategy{impl: strategy.NewMomentum(params), weight: cfg.strategies.Momentum.Weight})
	}
	if cfg.strategies.MeanReversion.Enabled {
		strategies = append(strategies, weightedStrategy{impl: strategy.NewMeanReversion(params), weight: cfg.strategies.MeanReversion.Weight})
	}
	if cfg.strategies.Sentiment.Enabled {
		strategies = append(strategies, weightedStrategy{impl: strategy.NewSentiment(params), weight: cfg.strategies.Sentiment.Weight})
	}
	if len(strategies) == 0 {
		return nil, fmt.Errorf("没有启用任何策略")
	}

	tracker, err := risk.NewDailyTracker(st.DB(), logger)
	if err != nil {
		return nil, fmt.Errorf("初始化日度风控跟踪失败: %w", err)
	}

	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionFraction:    cfg.risk.MaxPositionFraction,
		MaxDailyLossFraction:   cfg.risk.MaxDailyLossFraction,
		MaxDrawdownFraction:    cfg.risk.MaxDrawdownFraction,
		MaxOpenPositions:       cfg.risk.MaxOpenPositions,
		MinCashReserveFraction: cfg.risk.MinCashReserveFraction,
	}, tracker, logger)

	executor := execution.NewExecutor(gateway, execution.Options{
		MaxAttempts: cfg.execution.MaxAttempts,
		BaseDelay:   cfg.execution.BaseDelay,
	}, logger)

	monitorSvc, err := monitor.NewService(st, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化监控服务失败: %w", err)
	}

	lookback := cfg.strategies.Lookback
	if lookback < market.DefaultLookback {
		lookback = market.DefaultLookback
	}

	return &orchestrator{
		symbols:    cfg.app.Symbols,
		market:     marketSvc,
		sentiment:  sentimentSvc,
		strategies: strategies,
		risk:       riskMgr,
		executor:   executor,
		gateway:    gateway,
		monitor:    monitorSvc,
		logger:     logger,
		orderKind:  broker.OrderKind(cfg.execution.OrderKind),
		lookback:   lookback,
	}, nil
}

// Tick 执行一轮完整评估：刷新账户、并发生成信号、串行风控与下单。
func (o *orchestrator) Tick(ctx context.Context) error {
	account, err := o.gateway.GetAccount(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "获取账户信息失败", err, nil)
		return err
	}

	positions, err := o.gateway.GetOpenPositions(ctx)
	if err != nil {
		o.monitor.RecordError(ctx, "获取持仓失败", err, nil)
		return err
	}
	o.monitor.RecordPosition(ctx, account, positions)

	dailyPnL := o.rollDailyPnL(account.Equity)
	o.risk.UpdatePortfolioMetrics(ctx, account.Equity, dailyPnL)
	o.risk.SetOpenPositionCount(len(positions))

	if o.risk.ShouldStopTrading() {
		o.logger.Warn("风控熔断生效，本轮不再开新仓",
			zap.Float64("equity", account.Equity),
			zap.Float64("daily_pnl", dailyPnL),
		)
		return nil
	}

	seriesBySymbol := o.market.GetBatch(ctx, o.symbols, o.lookback)

	var mu sync.Mutex
	combined := make(map[string]*signal.Signal, len(o.symbols))

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range o.symbols {
		series, ok := seriesBySymbol[symbol]
		if !ok || series.Len() == 0 {
			continue
		}
		symbol := symbol
		series := series
		g.Go(func() error {
			sig := o.evaluateSymbol(gctx, symbol, series, account.Equity)
			if sig != nil {
				mu.Lock()
				combined[symbol] = sig
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	snapshot := o.buildSnapshot(account, positions, dailyPnL)

	for _, symbol := range o.symbols {
		sig, ok := combined[symbol]
		if !ok {
			continue
		}
		o.monitor.RecordSignal(ctx, *sig)

		verdict := o.risk.ValidateTrade(ctx, sig, snapshot)
		o.monitor.RecordRiskVerdict(ctx, *sig, verdict, o.risk.Snapshot())
		if !verdict.Accepted {
			continue
		}

		order, err := o.executor.ExecuteSignal(ctx, sig, o.orderKind)
		if err != nil {
			o.monitor.RecordError(ctx, "执行信号失败", err, map[string]interface{}{"symbol": symbol})
			continue
		}
		if order == nil {
			continue
		}
		o.monitor.RecordExecution(ctx, *order)

		// 新订单立即计入快照，避免同一轮后续标的重复占用现金。
		snapshot.CashAvailable -= sig.EntryPrice * sig.PositionSize
		snapshot.OpenPositions[symbol] = risk.PositionLot{
			Quantity: order.Quantity,
			Side:     string(order.Side),
		}
	}

	return nil
}

// evaluateSymbol 对单个标的运行全部策略并合并投票。
func (o *orchestrator) evaluateSymbol(ctx context.Context, symbol string, series market.Series, capital float64) *signal.Signal {
	var summary *sentiment.Summary
	if o.sentiment != nil {
		s, err := o.sentiment.GetSentiment(ctx, symbol)
		if err != nil {
			o.logger.Warn("获取情绪数据失败", zap.String("symbol", symbol), zap.Error(err))
		} else {
			summary = s
		}
	}

	input := strategy.Input{
		Symbol:    symbol,
		Series:    series,
		Sentiment: summary,
		Capital:   capital,
	}

	weighted := make([]strategy.Weighted, 0, len(o.strategies))
	for _, ws := range o.strategies {
		weighted = append(weighted, strategy.Weighted{
			Strategy: ws.impl.Name(),
			Signal:   ws.impl.Analyze(input),
			Weight:   ws.weight,
		})
	}

	return strategy.Combine(symbol, series.Last().Close, weighted)
}

// PollOrders 轮询在途订单状态。
func (o *orchestrator) PollOrders(ctx context.Context) {
	o.executor.UpdateOrderStatus(ctx)
}

// rollDailyPnL 以当日起始净值为基准计算当日盈亏，过日自动换基。
func (o *orchestrator) rollDailyPnL(equity float64) float64 {
	today := time.Now().UTC().Format("2006-01-02")
	if !o.dayInited || o.dayDate != today {
		o.dayStart = equity
		o.dayDate = today
		o.dayInited = true
	}
	return equity - o.dayStart
}

func (o *orchestrator) buildSnapshot(account broker.Account, positions []broker.Position, dailyPnL float64) risk.PortfolioSnapshot {
	open := make(map[string]risk.PositionLot, len(positions))
	for _, p := range positions {
		open[p.Symbol] = risk.PositionLot{Quantity: p.Quantity, Side: p.Side}
	}

	state := o.risk.Snapshot()
	return risk.PortfolioSnapshot{
		PortfolioValue:  account.Equity,
		CashAvailable:   account.Cash,
		OpenPositions:   open,
		DailyPnL:        dailyPnL,
		PeakValue:       state.PeakPortfolioValue,
		CurrentDrawdown: state.CurrentDrawdown,
	}
}
