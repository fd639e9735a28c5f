package execution

import (
	"time"

	"signal-trader/internal/broker"
	"signal-trader/internal/signal"
)

// Order 为执行器持有的订单实体，状态仅通过轮询操作迁移。
type Order struct {
	ID          string
	Symbol      string
	Side        broker.Side
	Quantity    float64
	Kind        broker.OrderKind
	Status      broker.OrderStatus
	SubmittedAt time.Time
	Attempts    int
	// Signal 为来源信号的弱引用，仅用于审计，不参与控制流。
	Signal *signal.Signal
}

// Metrics 为提交统计。
type Metrics struct {
	TotalOrders      int
	SuccessfulOrders int
	FailedOrders     int
	RejectedOrders   int
	TotalVolume      float64
}

// Report 为执行情况汇总。
type Report struct {
	Metrics     Metrics
	SuccessRate float64
	InFlight    int
	Executed    int
}
