package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"signal-trader/internal/broker"
	"signal-trader/internal/config"
	"signal-trader/internal/execution"
	"signal-trader/internal/market"
	"signal-trader/internal/monitor"
	"signal-trader/internal/risk"
	"signal-trader/internal/signal"
	"signal-trader/internal/store"
	"signal-trader/internal/strategy"
)

// stubCandles 返回走平的合成K线，最后收盘价为100。
type stubCandles struct{}

func (stubCandles) FetchCandles(_ context.Context, _, _ string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 60
	}
	candles := make([]market.Candle, limit)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{
			Timestamp: base.AddDate(0, 0, i),
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    1000,
		}
	}
	return candles, nil
}

// stubStrategy 无视指标，恒定给出一个做多信号。
type stubStrategy struct{}

func (stubStrategy) Name() string { return "stub" }

func (stubStrategy) Analyze(input strategy.Input) *signal.Signal {
	price := input.Series.Last().Close
	sig := signal.New(input.Symbol, signal.DirectionBuy, 0.7)
	sig.EntryPrice = price
	sig.StopLoss = price - 5
	sig.TakeProfit = price + 10
	sig.PositionSize = 10
	return sig
}

func newTestOrchestrator(t *testing.T, gateway *broker.PaperGateway) *orchestrator {
	t.Helper()

	st, err := store.NewSQLite(config.DatabaseConfig{InMemory: true, MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	monitorSvc, err := monitor.NewService(st, nil)
	if err != nil {
		t.Fatalf("init monitor: %v", err)
	}

	riskMgr := risk.NewManager(risk.Limits{
		MaxPositionFraction:    0.10,
		MaxDailyLossFraction:   0.03,
		MaxDrawdownFraction:    0.10,
		MaxOpenPositions:       5,
		MinCashReserveFraction: 0.20,
	}, nil, nil)

	return &orchestrator{
		symbols:    []string{"AAPL"},
		market:     market.NewService(stubCandles{}, "1d", nil),
		strategies: []weightedStrategy{{impl: stubStrategy{}, weight: 1}},
		risk:       riskMgr,
		executor:   execution.NewExecutor(gateway, execution.Options{}, nil),
		gateway:    gateway,
		monitor:    monitorSvc,
		logger:     zap.NewNop(),
		orderKind:  broker.KindBracket,
		lookback:   60,
	}
}

func TestTick_EndToEnd(t *testing.T) {
	gateway := broker.NewPaperGateway(broker.Account{Equity: 100000, Cash: 100000, BuyingPower: 100000})
	orch := newTestOrchestrator(t, gateway)
	ctx := context.Background()

	if err := orch.Tick(ctx); err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}

	report := orch.executor.GetExecutionReport()
	if report.Metrics.SuccessfulOrders != 1 {
		t.Fatalf("expected 1 submitted order, got %+v", report.Metrics)
	}
	if report.InFlight != 1 {
		t.Errorf("expected order in flight before polling, got %d", report.InFlight)
	}

	orch.PollOrders(ctx)
	report = orch.executor.GetExecutionReport()
	if report.InFlight != 0 || report.Executed != 1 {
		t.Errorf("expected order filled after poll, got %+v", report)
	}

	positions, err := gateway.GetOpenPositions(ctx)
	if err != nil {
		t.Fatalf("GetOpenPositions returned error: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "AAPL" {
		t.Errorf("expected AAPL position after fill, got %+v", positions)
	}

	events, err := orch.monitor.ListEvents(ctx, monitor.EventExecution, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 execution event recorded, got %d", len(events))
	}
}

func TestTick_CircuitBreakerHaltsEntries(t *testing.T) {
	gateway := broker.NewPaperGateway(broker.Account{Equity: 100000, Cash: 100000})
	orch := newTestOrchestrator(t, gateway)
	ctx := context.Background()

	// 历史峰值12万，当前10万，回撤16.7%超过10%上限。
	orch.risk.UpdatePortfolioMetrics(ctx, 120000, 0)

	if err := orch.Tick(ctx); err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}

	report := orch.executor.GetExecutionReport()
	if report.Metrics.TotalOrders != 0 {
		t.Errorf("circuit breaker must block new entries, got %+v", report.Metrics)
	}
}

func TestTick_DuplicatePositionRejected(t *testing.T) {
	gateway := broker.NewPaperGateway(broker.Account{Equity: 100000, Cash: 100000})
	orch := newTestOrchestrator(t, gateway)
	ctx := context.Background()

	// 预置一笔已成交的AAPL持仓。
	ack, err := gateway.SubmitOrder(ctx, broker.OrderSpec{Symbol: "AAPL", Side: broker.SideBuy, Quantity: 10, Kind: broker.KindMarket})
	if err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	if _, err := gateway.GetOrderStatus(ctx, ack.ID); err != nil {
		t.Fatalf("seed fill failed: %v", err)
	}

	if err := orch.Tick(ctx); err != nil {
		t.Fatalf("Tick returned error: %v", err)
	}

	report := orch.executor.GetExecutionReport()
	if report.Metrics.TotalOrders != 0 {
		t.Errorf("duplicate position must be rejected by risk checks, got %+v", report.Metrics)
	}

	events, err := orch.monitor.ListEvents(ctx, monitor.EventRiskVerdict, 10)
	if err != nil {
		t.Fatalf("ListEvents returned error: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected risk verdict recorded, got %d", len(events))
	}
}
