package execution

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"signal-trader/internal/broker"
	"signal-trader/internal/signal"
)

type stubGateway struct {
	failSubmits int
	submitErr   error
	submits     []broker.OrderSpec
	statuses    map[string]broker.OrderStatus
	cancelled   []string
	positions   []broker.Position
	nextID      int
}

func newStubGateway() *stubGateway {
	return &stubGateway{
		submitErr: broker.ErrTransient,
		statuses:  make(map[string]broker.OrderStatus),
	}
}

func (s *stubGateway) IsTradable(_ context.Context, symbol string) (bool, error) {
	return symbol != "UNTRADABLE", nil
}

func (s *stubGateway) SubmitOrder(_ context.Context, spec broker.OrderSpec) (broker.OrderAck, error) {
	if s.failSubmits > 0 {
		s.failSubmits--
		return broker.OrderAck{}, s.submitErr
	}
	s.submits = append(s.submits, spec)
	s.nextID++
	id := fmt.Sprintf("order-%d", s.nextID)
	s.statuses[id] = broker.StatusPending
	return broker.OrderAck{ID: id, Status: broker.StatusPending, Submitted: time.Now().UTC()}, nil
}

func (s *stubGateway) GetOrderStatus(_ context.Context, id string) (broker.OrderStatus, error) {
	status, ok := s.statuses[id]
	if !ok {
		return "", broker.ErrOrderNotFound
	}
	return status, nil
}

func (s *stubGateway) CancelOrder(_ context.Context, id string) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

func (s *stubGateway) GetAccount(_ context.Context) (broker.Account, error) {
	return broker.Account{Equity: 100000, Cash: 100000}, nil
}

func (s *stubGateway) GetOpenPositions(_ context.Context) ([]broker.Position, error) {
	return s.positions, nil
}

var _ broker.Gateway = (*stubGateway)(nil)

func validSignal() *signal.Signal {
	sig := signal.New("AAPL", signal.DirectionBuy, 0.7)
	sig.EntryPrice = 100
	sig.StopLoss = 95
	sig.TakeProfit = 110
	sig.PositionSize = 50
	return sig
}

// recordSleeps 替换执行器的等待函数，记录每次退避时长。
func recordSleeps(e *Executor) *[]time.Duration {
	var sleeps []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return &sleeps
}

func TestExecuteSignal_SucceedsOnSecondAttempt(t *testing.T) {
	gw := newStubGateway()
	gw.failSubmits = 1
	exec := NewExecutor(gw, Options{MaxAttempts: 3, BaseDelay: time.Second}, nil)
	sleeps := recordSleeps(exec)

	order, err := exec.ExecuteSignal(context.Background(), validSignal(), broker.KindBracket)
	if err != nil {
		t.Fatalf("ExecuteSignal returned error: %v", err)
	}
	if order == nil {
		t.Fatalf("expected order after retry success")
	}
	if order.Attempts != 2 {
		t.Errorf("expected 2 attempts recorded, got %d", order.Attempts)
	}
	if len(*sleeps) != 1 || (*sleeps)[0] != time.Second {
		t.Errorf("expected single 1s backoff, got %v", *sleeps)
	}
	if exec.InFlightCount() != 1 {
		t.Errorf("expected order registered in flight")
	}

	spec := gw.submits[0]
	if spec.Kind != broker.KindBracket || spec.StopLoss != 95 || spec.TakeProfit != 110 {
		t.Errorf("expected bracket spec with protective prices, got %+v", spec)
	}
	if spec.ReferencePrice != 100 {
		t.Errorf("expected entry price carried as reference, got %f", spec.ReferencePrice)
	}
}

func TestExecuteSignal_ExhaustsRetries(t *testing.T) {
	gw := newStubGateway()
	gw.failSubmits = 10
	exec := NewExecutor(gw, Options{MaxAttempts: 3, BaseDelay: time.Second}, nil)
	sleeps := recordSleeps(exec)

	order, err := exec.ExecuteSignal(context.Background(), validSignal(), broker.KindMarket)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if order != nil {
		t.Fatalf("expected nil order on failure")
	}

	// 指数退避：1s、2s，第三次失败后不再等待。
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("expected %d backoffs, got %v", len(want), *sleeps)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("backoff %d: expected %v, got %v", i, d, (*sleeps)[i])
		}
	}

	report := exec.GetExecutionReport()
	if report.Metrics.TotalOrders != 1 || report.Metrics.FailedOrders != 1 {
		t.Errorf("expected total=1 failed=1, got %+v", report.Metrics)
	}
	if report.SuccessRate != 0 {
		t.Errorf("expected success rate 0, got %f", report.SuccessRate)
	}
}

func TestExecuteSignal_NonRetryableFailsImmediately(t *testing.T) {
	gw := newStubGateway()
	gw.failSubmits = 10
	gw.submitErr = errors.New("insufficient funds")
	exec := NewExecutor(gw, Options{MaxAttempts: 3, BaseDelay: time.Second}, nil)
	sleeps := recordSleeps(exec)

	if _, err := exec.ExecuteSignal(context.Background(), validSignal(), broker.KindMarket); err == nil {
		t.Fatalf("expected error for non-retryable failure")
	}
	if len(*sleeps) != 0 {
		t.Errorf("non-retryable error must not wait, got %v", *sleeps)
	}
	if gw.failSubmits != 9 {
		t.Errorf("expected single submit attempt, remaining=%d", gw.failSubmits)
	}
}

func TestExecuteSignal_InvalidSignalIsNoop(t *testing.T) {
	exec := NewExecutor(newStubGateway(), Options{}, nil)

	sig := validSignal()
	sig.StopLoss = 120 // 做多信号止损高于入场价
	order, err := exec.ExecuteSignal(context.Background(), sig, broker.KindMarket)
	if err != nil || order != nil {
		t.Fatalf("expected (nil,nil) for invalid signal, got order=%v err=%v", order, err)
	}
}

func TestExecuteSignal_UntradableSymbolIsNoop(t *testing.T) {
	exec := NewExecutor(newStubGateway(), Options{}, nil)

	sig := validSignal()
	sig.Symbol = "UNTRADABLE"
	order, err := exec.ExecuteSignal(context.Background(), sig, broker.KindMarket)
	if err != nil || order != nil {
		t.Fatalf("expected (nil,nil) for untradable symbol, got order=%v err=%v", order, err)
	}
}

func TestExecuteSignal_SubShareQuantityIsNoop(t *testing.T) {
	exec := NewExecutor(newStubGateway(), Options{}, nil)

	sig := validSignal()
	sig.PositionSize = 0.4
	order, err := exec.ExecuteSignal(context.Background(), sig, broker.KindMarket)
	if err != nil || order != nil {
		t.Fatalf("expected (nil,nil) for sub-share quantity, got order=%v err=%v", order, err)
	}
}

func TestUpdateOrderStatus_Lifecycle(t *testing.T) {
	gw := newStubGateway()
	exec := NewExecutor(gw, Options{}, nil)
	ctx := context.Background()

	order, err := exec.ExecuteSignal(ctx, validSignal(), broker.KindMarket)
	if err != nil || order == nil {
		t.Fatalf("setup failed: order=%v err=%v", order, err)
	}

	gw.statuses[order.ID] = broker.StatusPartiallyFilled
	exec.UpdateOrderStatus(ctx)
	report := exec.GetExecutionReport()
	if report.Executed != 1 {
		t.Errorf("partial fill must enter executed history, got %d", report.Executed)
	}
	if report.InFlight != 1 {
		t.Errorf("partial fill must stay in flight, got %d", report.InFlight)
	}

	gw.statuses[order.ID] = broker.StatusFilled
	exec.UpdateOrderStatus(ctx)
	report = exec.GetExecutionReport()
	if report.Executed != 1 {
		t.Errorf("terminal fill must not duplicate executed entry, got %d", report.Executed)
	}
	if report.InFlight != 0 {
		t.Errorf("filled order must leave the registry, got %d", report.InFlight)
	}
}

func TestUpdateOrderStatus_Rejection(t *testing.T) {
	gw := newStubGateway()
	exec := NewExecutor(gw, Options{}, nil)
	ctx := context.Background()

	order, err := exec.ExecuteSignal(ctx, validSignal(), broker.KindMarket)
	if err != nil || order == nil {
		t.Fatalf("setup failed: order=%v err=%v", order, err)
	}

	gw.statuses[order.ID] = broker.StatusRejected
	exec.UpdateOrderStatus(ctx)

	report := exec.GetExecutionReport()
	if report.InFlight != 0 {
		t.Errorf("rejected order must leave the registry, got %d", report.InFlight)
	}
	if report.Metrics.RejectedOrders != 1 {
		t.Errorf("expected rejected counter 1, got %d", report.Metrics.RejectedOrders)
	}
	if report.Executed != 0 {
		t.Errorf("rejected order must not enter executed history, got %d", report.Executed)
	}
}

func TestCancelAllOrders(t *testing.T) {
	gw := newStubGateway()
	exec := NewExecutor(gw, Options{}, nil)
	ctx := context.Background()

	if _, err := exec.ExecuteSignal(ctx, validSignal(), broker.KindMarket); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	exec.CancelAllOrders(ctx)
	if len(gw.cancelled) != 1 {
		t.Errorf("expected 1 cancel request, got %d", len(gw.cancelled))
	}
	// 状态迁移由后续轮询确认，撤单本身不改注册表。
	if exec.InFlightCount() != 1 {
		t.Errorf("cancel request alone must not remove order, got %d", exec.InFlightCount())
	}
}

func TestClosePosition(t *testing.T) {
	gw := newStubGateway()
	gw.positions = []broker.Position{{Symbol: "AAPL", Quantity: 30, Side: "long"}}
	exec := NewExecutor(gw, Options{}, nil)

	if err := exec.ClosePosition(context.Background(), "AAPL"); err != nil {
		t.Fatalf("ClosePosition returned error: %v", err)
	}

	if len(gw.submits) != 1 {
		t.Fatalf("expected 1 closing order, got %d", len(gw.submits))
	}
	spec := gw.submits[0]
	if spec.Side != broker.SideSell || spec.Quantity != 30 || spec.Kind != broker.KindMarket {
		t.Errorf("expected market sell of 30 shares, got %+v", spec)
	}
}
