package risk

import (
	"context"
	"strings"
	"testing"

	"signal-trader/internal/signal"
)

func testLimits() Limits {
	return Limits{
		MaxPositionFraction:    0.10,
		MaxDailyLossFraction:   0.03,
		MaxDrawdownFraction:    0.10,
		MaxOpenPositions:       5,
		MinCashReserveFraction: 0.20,
	}
}

func testSnapshot() PortfolioSnapshot {
	return PortfolioSnapshot{
		PortfolioValue: 100000,
		CashAvailable:  50000,
		OpenPositions:  map[string]PositionLot{},
	}
}

func buySignal(size float64) *signal.Signal {
	sig := signal.New("AAPL", signal.DirectionBuy, 0.65)
	sig.EntryPrice = 100
	sig.StopLoss = 95
	sig.TakeProfit = 110
	sig.PositionSize = size
	return sig
}

func TestValidateTrade_AcceptsAtExactBoundary(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	// 仓位市值恰好等于上限10000，边界为闭区间。
	verdict := m.ValidateTrade(context.Background(), buySignal(100), testSnapshot())
	if !verdict.Accepted {
		t.Fatalf("expected acceptance at exact boundary, violations: %v", verdict.Violations)
	}
}

func TestValidateTrade_RejectsJustOverBoundary(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	verdict := m.ValidateTrade(context.Background(), buySignal(100.01), testSnapshot())
	if verdict.Accepted {
		t.Fatalf("expected rejection just over the position limit")
	}
	if len(verdict.Violations) != 1 {
		t.Errorf("expected exactly 1 violation, got %v", verdict.Violations)
	}
}

func TestValidateTrade_CashReserve(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	snap := testSnapshot()
	snap.CashAvailable = 29000 // 成交后剩19000，低于20000储备线
	verdict := m.ValidateTrade(context.Background(), buySignal(100), snap)
	if verdict.Accepted {
		t.Fatalf("expected rejection for cash reserve breach")
	}
}

func TestValidateTrade_DailyLossBoundary(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	snap := testSnapshot()
	snap.DailyPnL = -3000 // 恰好在上限，闭区间内仍可交易
	if verdict := m.ValidateTrade(context.Background(), buySignal(50), snap); !verdict.Accepted {
		t.Fatalf("expected acceptance at daily loss boundary, violations: %v", verdict.Violations)
	}

	snap.DailyPnL = -3000.01
	if verdict := m.ValidateTrade(context.Background(), buySignal(50), snap); verdict.Accepted {
		t.Fatalf("expected rejection past daily loss limit")
	}
}

func TestValidateTrade_DrawdownViolationText(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	snap := testSnapshot()
	snap.CurrentDrawdown = 0.12
	verdict := m.ValidateTrade(context.Background(), buySignal(50), snap)
	if verdict.Accepted {
		t.Fatalf("expected rejection for drawdown breach")
	}

	found := false
	for _, v := range verdict.Violations {
		if strings.Contains(v, "回撤") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected drawdown violation message, got %v", verdict.Violations)
	}
}

func TestValidateTrade_DuplicatePosition(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	snap := testSnapshot()
	snap.OpenPositions["AAPL"] = PositionLot{Quantity: 10, Side: "buy"}
	verdict := m.ValidateTrade(context.Background(), buySignal(50), snap)
	if verdict.Accepted {
		t.Fatalf("expected rejection for duplicate position")
	}
}

func TestValidateTrade_ReportsAllViolations(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	snap := testSnapshot()
	snap.CashAvailable = 5000
	snap.CurrentDrawdown = 0.15
	snap.OpenPositions["AAPL"] = PositionLot{Quantity: 10, Side: "buy"}

	verdict := m.ValidateTrade(context.Background(), buySignal(200), snap)
	if verdict.Accepted {
		t.Fatalf("expected rejection")
	}
	// 规则彼此独立且全部执行：仓位上限、现金储备、回撤、重复持仓。
	if len(verdict.Violations) != 4 {
		t.Errorf("expected 4 violations reported together, got %d: %v",
			len(verdict.Violations), verdict.Violations)
	}
}

func TestValidateTrade_NilSignal(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)
	if verdict := m.ValidateTrade(context.Background(), nil, testSnapshot()); verdict.Accepted {
		t.Fatalf("expected rejection for nil signal")
	}
}

func TestCalculatePositionSize(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)

	// 风险预算2000/每股价差5=400股，市值上限压到 floor(10000/100)=100。
	if got := m.CalculatePositionSize(100000, 100, 95, 0.02); got != 100 {
		t.Errorf("expected 100 shares, got %d", got)
	}

	// 上限不约束时直接取风险预算股数。
	if got := m.CalculatePositionSize(100000, 100, 80, 0.02); got != 100 {
		t.Errorf("expected 100 shares via risk budget, got %d", got)
	}

	// entry == stop 时风险未定义。
	if got := m.CalculatePositionSize(100000, 100, 100, 0.02); got != 0 {
		t.Errorf("expected 0 shares for undefined per-share risk, got %d", got)
	}
}

func TestShouldStopTrading_Drawdown(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)
	ctx := context.Background()

	m.UpdatePortfolioMetrics(ctx, 120000, 0)
	if m.ShouldStopTrading() {
		t.Fatalf("fresh peak must not trip the circuit breaker")
	}

	m.UpdatePortfolioMetrics(ctx, 100000, 0)
	if !m.ShouldStopTrading() {
		t.Fatalf("expected circuit breaker at 16.7%% drawdown")
	}
}

func TestShouldStopTrading_DailyLoss(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)
	ctx := context.Background()

	m.UpdatePortfolioMetrics(ctx, 100000, -4000)
	if !m.ShouldStopTrading() {
		t.Fatalf("expected circuit breaker past daily loss limit")
	}
}

func TestSnapshot_ViolationRingCap(t *testing.T) {
	m := NewManager(testLimits(), nil, nil)
	ctx := context.Background()

	snap := testSnapshot()
	snap.CurrentDrawdown = 0.5
	for i := 0; i < 40; i++ {
		m.ValidateTrade(ctx, buySignal(10), snap)
	}

	state := m.Snapshot()
	if len(state.RecentViolations) != maxRecentViolations {
		t.Errorf("expected violation ring capped at %d, got %d",
			maxRecentViolations, len(state.RecentViolations))
	}
}
