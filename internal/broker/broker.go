package broker

import (
	"context"
	"time"
)

// Side 表示委托方向。
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind 表示委托类型。Bracket 在入场单上同时挂止损与止盈。
type OrderKind string

const (
	KindMarket  OrderKind = "market"
	KindLimit   OrderKind = "limit"
	KindBracket OrderKind = "bracket"
)

// OrderStatus 为券商侧订单状态。
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusFilled          OrderStatus = "filled"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusCancelled       OrderStatus = "cancelled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
)

// Terminal 判断状态是否为终态。部分成交仍会继续轮询。
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// OrderSpec 为提交给券商的委托描述。
type OrderSpec struct {
	Symbol     string
	Side       Side
	Quantity   float64
	Kind       OrderKind
	LimitPrice float64
	// ReferencePrice 为信号入场价，市价与括号单缺少限价时
	// 供模拟网关估算成交金额。真实网关忽略该字段。
	ReferencePrice float64
	StopLoss       float64
	TakeProfit     float64
}

// OrderAck 为券商受理委托后的回执。
type OrderAck struct {
	ID        string
	Status    OrderStatus
	Submitted time.Time
}

// Account 为账户资金快照。
type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
}

// Position 描述一个在持仓位。
type Position struct {
	Symbol   string
	Quantity float64
	Side     string
}

// Gateway 抽象券商网关，实盘实现见 ccxt.go，模拟实现见 paper.go。
type Gateway interface {
	IsTradable(ctx context.Context, symbol string) (bool, error)
	SubmitOrder(ctx context.Context, spec OrderSpec) (OrderAck, error)
	GetOrderStatus(ctx context.Context, id string) (OrderStatus, error)
	CancelOrder(ctx context.Context, id string) error
	GetAccount(ctx context.Context) (Account, error)
	GetOpenPositions(ctx context.Context) ([]Position, error)
}
