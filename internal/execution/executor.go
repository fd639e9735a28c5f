package execution

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"signal-trader/internal/broker"
	"signal-trader/internal/signal"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
)

// sleepFunc 抽象重试间隔等待，便于测试注入。
type sleepFunc func(ctx context.Context, d time.Duration) error

// Executor 将通过风控的信号转换为券商委托，
// 维护在途订单注册表并跟踪订单生命周期。
type Executor struct {
	gateway     broker.Gateway
	logger      *zap.Logger
	maxAttempts int
	baseDelay   time.Duration
	sleep       sleepFunc

	mu       sync.Mutex
	inFlight map[string]*Order
	executed []*Order
	metrics  Metrics
}

// Options 控制执行行为。
type Options struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// NewExecutor 创建执行器。
func NewExecutor(gateway broker.Gateway, opts Options, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	return &Executor{
		gateway:     gateway,
		logger:      logger,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		sleep:       sleepWithContext,
		inFlight:    make(map[string]*Order),
	}
}

// ExecuteSignal 按给定委托类型提交信号。
// 预期内的不可交易情形（信号价格关系非法、标的不可交易、股数过小）
// 返回 (nil, nil) 并记录日志；提交侧失败返回错误。
func (e *Executor) ExecuteSignal(ctx context.Context, sig *signal.Signal, kind broker.OrderKind) (*Order, error) {
	if err := sig.Validate(); err != nil {
		e.logger.Warn("信号校验失败，放弃执行", zap.Error(err))
		return nil, nil
	}

	tradable, err := e.gateway.IsTradable(ctx, sig.Symbol)
	if err != nil {
		return nil, fmt.Errorf("execution: 校验可交易性失败: %w", err)
	}
	if !tradable {
		e.logger.Warn("标的不可交易，放弃执行", zap.String("symbol", sig.Symbol))
		return nil, nil
	}

	side := broker.SideBuy
	if sig.Direction.IsSell() {
		side = broker.SideSell
	}

	quantity := math.Round(sig.PositionSize)
	if quantity <= 0 {
		e.logger.Info("仓位过小，不足一股，放弃执行",
			zap.String("symbol", sig.Symbol),
			zap.Float64("position_size", sig.PositionSize),
		)
		return nil, nil
	}

	spec := broker.OrderSpec{
		Symbol:         sig.Symbol,
		Side:           side,
		Quantity:       quantity,
		Kind:           kind,
		ReferencePrice: sig.EntryPrice,
	}
	switch kind {
	case broker.KindBracket:
		spec.StopLoss = sig.StopLoss
		spec.TakeProfit = sig.TakeProfit
	case broker.KindLimit:
		spec.LimitPrice = sig.EntryPrice
	case broker.KindMarket:
	default:
		return nil, fmt.Errorf("execution: 不支持的委托类型 %q", kind)
	}

	ack, attempts, err := e.submitWithRetry(ctx, spec)
	if err != nil {
		e.mu.Lock()
		e.metrics.TotalOrders++
		e.metrics.FailedOrders++
		e.mu.Unlock()
		return nil, err
	}

	order := &Order{
		ID:          ack.ID,
		Symbol:      sig.Symbol,
		Side:        side,
		Quantity:    quantity,
		Kind:        kind,
		Status:      ack.Status,
		SubmittedAt: ack.Submitted,
		Attempts:    attempts,
		Signal:      sig,
	}

	e.mu.Lock()
	e.inFlight[order.ID] = order
	e.metrics.TotalOrders++
	e.metrics.SuccessfulOrders++
	e.metrics.TotalVolume += quantity * sig.EntryPrice
	e.mu.Unlock()

	e.logger.Info("委托提交成功",
		zap.String("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("kind", string(order.Kind)),
		zap.Float64("quantity", quantity),
		zap.Int("attempts", attempts),
	)

	return order, nil
}

// submitWithRetry 以指数退避做有界重试，返回成功时的尝试次数。
func (e *Executor) submitWithRetry(ctx context.Context, spec broker.OrderSpec) (broker.OrderAck, int, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		ack, err := e.gateway.SubmitOrder(ctx, spec)
		if err == nil {
			return ack, attempt, nil
		}
		lastErr = err

		if !broker.IsRetryable(err) {
			e.logger.Error("委托提交失败且不可重试",
				zap.String("symbol", spec.Symbol),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return broker.OrderAck{}, attempt, err
		}

		if attempt == e.maxAttempts {
			break
		}

		wait := e.baseDelay << (attempt - 1)
		e.logger.Warn("委托提交失败，等待重试",
			zap.String("symbol", spec.Symbol),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
			return broker.OrderAck{}, attempt, sleepErr
		}
	}

	return broker.OrderAck{}, e.maxAttempts,
		fmt.Errorf("execution: 重试 %d 次后提交仍失败: %w", e.maxAttempts, lastErr)
}

// UpdateOrderStatus 轮询全部在途订单并推进生命周期：
// 成交与部分成交进入执行历史（部分成交继续轮询直至终态），
// 撤销、拒绝与过期只记录，不自动重新提交。
func (e *Executor) UpdateOrderStatus(ctx context.Context) {
	e.mu.Lock()
	pending := make([]*Order, 0, len(e.inFlight))
	for _, order := range e.inFlight {
		pending = append(pending, order)
	}
	e.mu.Unlock()

	for _, order := range pending {
		status, err := e.gateway.GetOrderStatus(ctx, order.ID)
		if err != nil {
			e.logger.Warn("查询订单状态失败",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}

		e.applyStatus(order, status)
	}
}

func (e *Executor) applyStatus(order *Order, status broker.OrderStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()

	previous := order.Status
	order.Status = status
	if previous != status {
		e.logger.Info("订单状态迁移",
			zap.String("order_id", order.ID),
			zap.String("from", string(previous)),
			zap.String("to", string(status)),
		)
	}

	switch status {
	case broker.StatusFilled:
		if previous != broker.StatusPartiallyFilled {
			e.executed = append(e.executed, order)
		}
		delete(e.inFlight, order.ID)
	case broker.StatusPartiallyFilled:
		if previous != broker.StatusPartiallyFilled {
			e.executed = append(e.executed, order)
		}
	case broker.StatusCancelled, broker.StatusRejected, broker.StatusExpired:
		e.metrics.RejectedOrders++
		delete(e.inFlight, order.ID)
	}
}

// CancelAllOrders 请求撤销全部在途订单。失败只报告不重试，
// 撤单在券商侧视为幂等；实际的状态迁移由后续轮询确认。
func (e *Executor) CancelAllOrders(ctx context.Context) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.inFlight))
	for id := range e.inFlight {
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.gateway.CancelOrder(ctx, id); err != nil {
			e.logger.Warn("撤销订单失败",
				zap.String("order_id", id),
				zap.Error(err),
			)
		}
	}
}

// ClosePosition 以市价单平掉指定标的的持仓。
func (e *Executor) ClosePosition(ctx context.Context, symbol string) error {
	positions, err := e.gateway.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("execution: 获取持仓失败: %w", err)
	}

	for _, pos := range positions {
		if pos.Symbol != symbol || pos.Quantity == 0 {
			continue
		}

		side := broker.SideSell
		if pos.Side == "short" {
			side = broker.SideBuy
		}

		if _, err := e.gateway.SubmitOrder(ctx, broker.OrderSpec{
			Symbol:   symbol,
			Side:     side,
			Quantity: math.Abs(pos.Quantity),
			Kind:     broker.KindMarket,
		}); err != nil {
			return fmt.Errorf("execution: 平仓 %s 失败: %w", symbol, err)
		}

		e.logger.Info("已提交平仓委托", zap.String("symbol", symbol))
		return nil
	}

	return nil
}

// InFlightCount 返回在途订单数量。
func (e *Executor) InFlightCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inFlight)
}

// GetExecutionReport 返回提交统计与成功率。
func (e *Executor) GetExecutionReport() Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	rate := 0.0
	if e.metrics.TotalOrders > 0 {
		rate = float64(e.metrics.SuccessfulOrders) / float64(e.metrics.TotalOrders)
	}

	return Report{
		Metrics:     e.metrics,
		SuccessRate: rate,
		InFlight:    len(e.inFlight),
		Executed:    len(e.executed),
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
