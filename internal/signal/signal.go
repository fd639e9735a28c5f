package signal

import (
	"fmt"
	"time"
)

// Direction 表示信号方向。Hold 不会被实例化，无信号即为观望。
type Direction string

const (
	DirectionStrongBuy  Direction = "strong_buy"
	DirectionBuy        Direction = "buy"
	DirectionSell       Direction = "sell"
	DirectionStrongSell Direction = "strong_sell"
)

// IsBuy 判断方向是否属于做多族。
func (d Direction) IsBuy() bool {
	return d == DirectionBuy || d == DirectionStrongBuy
}

// IsSell 判断方向是否属于做空族。
func (d Direction) IsSell() bool {
	return d == DirectionSell || d == DirectionStrongSell
}

// Signal 为一次方向性交易建议，创建后不再修改；
// 需要调整数值的环节应当铸造新的 Signal。
type Signal struct {
	Symbol       string
	Direction    Direction
	Confidence   float64
	EntryPrice   float64
	StopLoss     float64
	TakeProfit   float64
	PositionSize float64
	Reasons      []string
	CreatedAt    time.Time
	Metadata     map[string]interface{}
}

// New 构造 Signal 并填充创建时间。
func New(symbol string, direction Direction, confidence float64) *Signal {
	return &Signal{
		Symbol:     symbol,
		Direction:  direction,
		Confidence: clamp01(confidence),
		CreatedAt:  time.Now().UTC(),
		Metadata:   make(map[string]interface{}),
	}
}

// Validate 校验信号内部价格关系是否与方向一致。
func (s *Signal) Validate() error {
	if s == nil {
		return fmt.Errorf("signal: 信号为空")
	}
	if s.Symbol == "" {
		return fmt.Errorf("signal: symbol 不能为空")
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal: confidence 必须位于[0,1]，当前为 %f", s.Confidence)
	}
	if s.EntryPrice <= 0 || s.StopLoss <= 0 || s.TakeProfit <= 0 {
		return fmt.Errorf("signal: 价格必须为正 entry=%.4f stop=%.4f take=%.4f",
			s.EntryPrice, s.StopLoss, s.TakeProfit)
	}
	if s.PositionSize < 0 {
		return fmt.Errorf("signal: 仓位数量不能为负: %f", s.PositionSize)
	}

	switch {
	case s.Direction.IsBuy():
		if !(s.StopLoss < s.EntryPrice && s.EntryPrice < s.TakeProfit) {
			return fmt.Errorf("signal: 做多价格关系不成立 stop=%.4f entry=%.4f take=%.4f",
				s.StopLoss, s.EntryPrice, s.TakeProfit)
		}
	case s.Direction.IsSell():
		if !(s.TakeProfit < s.EntryPrice && s.EntryPrice < s.StopLoss) {
			return fmt.Errorf("signal: 做空价格关系不成立 take=%.4f entry=%.4f stop=%.4f",
				s.TakeProfit, s.EntryPrice, s.StopLoss)
		}
	default:
		return fmt.Errorf("signal: 非法方向 %q", s.Direction)
	}

	return nil
}

// WithReason 追加一条决策依据，返回自身便于链式构造。
func (s *Signal) WithReason(format string, args ...interface{}) *Signal {
	s.Reasons = append(s.Reasons, fmt.Sprintf(format, args...))
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
