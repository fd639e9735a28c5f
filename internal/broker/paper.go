package broker

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PaperGateway 为内存中的模拟券商，下单即受理、首次查询即成交。
// 用于模拟运行模式与测试。
type PaperGateway struct {
	mu        sync.Mutex
	nextID    int
	account   Account
	positions map[string]Position
	orders    map[string]*paperOrder
}

type paperOrder struct {
	spec   OrderSpec
	status OrderStatus
	polled bool
}

// NewPaperGateway 创建模拟券商。
func NewPaperGateway(account Account) *PaperGateway {
	return &PaperGateway{
		account:   account,
		positions: make(map[string]Position),
		orders:    make(map[string]*paperOrder),
	}
}

var _ Gateway = (*PaperGateway)(nil)

// IsTradable 模拟券商接受任何非空标的。
func (p *PaperGateway) IsTradable(_ context.Context, symbol string) (bool, error) {
	return symbol != "", nil
}

// SubmitOrder 受理委托并分配订单号。
func (p *PaperGateway) SubmitOrder(_ context.Context, spec OrderSpec) (OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := fmt.Sprintf("paper-%d", p.nextID)
	p.orders[id] = &paperOrder{spec: spec, status: StatusPending}

	return OrderAck{
		ID:        id,
		Status:    StatusPending,
		Submitted: time.Now().UTC(),
	}, nil
}

// GetOrderStatus 返回订单状态；未成交订单在首次查询时转为成交，
// 并同步更新模拟持仓。
func (p *PaperGateway) GetOrderStatus(_ context.Context, id string) (OrderStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[id]
	if !ok {
		return "", ErrOrderNotFound
	}

	if order.status == StatusPending && !order.polled {
		order.polled = true
		order.status = StatusFilled
		p.applyFillLocked(order.spec)
	}

	return order.status, nil
}

// CancelOrder 撤销订单，重复撤销与撤销终态订单均视为成功。
func (p *PaperGateway) CancelOrder(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if !order.status.Terminal() {
		order.status = StatusCancelled
	}

	return nil
}

// GetAccount 返回模拟账户快照。
func (p *PaperGateway) GetAccount(_ context.Context) (Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account, nil
}

// GetOpenPositions 返回模拟持仓列表。
func (p *PaperGateway) GetOpenPositions(_ context.Context) ([]Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	positions := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, pos)
	}
	return positions, nil
}

// ClosePosition 平掉指定标的的模拟持仓。
func (p *PaperGateway) ClosePosition(_ context.Context, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, symbol)
	return nil
}

func (p *PaperGateway) applyFillLocked(spec OrderSpec) {
	side := "long"
	if spec.Side == SideSell {
		side = "short"
	}
	p.positions[spec.Symbol] = Position{
		Symbol:   spec.Symbol,
		Quantity: spec.Quantity,
		Side:     side,
	}
	price := spec.LimitPrice
	if price == 0 {
		price = spec.ReferencePrice
	}
	cost := spec.Quantity * price
	if cost > 0 && p.account.Cash >= cost {
		p.account.Cash -= cost
	}
}
