package strategy

import (
	"fmt"

	"signal-trader/internal/signal"
)

// Weighted 将单个策略的信号与投票权重绑定。
type Weighted struct {
	Strategy string
	Signal   *signal.Signal
	Weight   float64
}

// Combine 对多个策略信号做加权投票，合成至多一个可执行信号。
// 规则：某一方向的权重严格超过总权重一半才形成共识，
// 平票或无多数返回 nil，属于正常结果而非错误。
// 置信度、止损止盈与仓位仅在胜出一侧的信号间聚合；
// entry 取调用方给定的最新收盘价，保证合成信号反映当前市价。
func Combine(symbol string, latestClose float64, inputs []Weighted) *signal.Signal {
	contributors := make([]Weighted, 0, len(inputs))
	for _, in := range inputs {
		if in.Signal == nil || in.Weight <= 0 {
			continue
		}
		contributors = append(contributors, in)
	}
	if len(contributors) == 0 || latestClose <= 0 {
		return nil
	}

	var totalWeight, buyWeight, sellWeight float64
	for _, in := range contributors {
		totalWeight += in.Weight
		if in.Signal.Direction.IsBuy() {
			buyWeight += in.Weight
		} else if in.Signal.Direction.IsSell() {
			sellWeight += in.Weight
		}
	}

	var wantBuy bool
	switch {
	case buyWeight > totalWeight/2:
		wantBuy = true
	case sellWeight > totalWeight/2:
		wantBuy = false
	default:
		return nil
	}

	winners := make([]Weighted, 0, len(contributors))
	for _, in := range contributors {
		if in.Signal.Direction.IsBuy() == wantBuy {
			winners = append(winners, in)
		}
	}

	var weightSum, confidenceSum float64
	var stopSum, takeSum, sizeSum float64
	reasons := make([]string, 0, len(winners)*2)
	for _, in := range winners {
		weightSum += in.Weight
		confidenceSum += in.Signal.Confidence * in.Weight
		stopSum += in.Signal.StopLoss
		takeSum += in.Signal.TakeProfit
		sizeSum += in.Signal.PositionSize
		for _, r := range in.Signal.Reasons {
			reasons = append(reasons, fmt.Sprintf("%s: %s", in.Strategy, r))
		}
	}

	confidence := confidenceSum / weightSum
	count := float64(len(winners))

	direction := signal.DirectionBuy
	if wantBuy && confidence >= strongBuyThreshold {
		direction = signal.DirectionStrongBuy
	} else if !wantBuy {
		direction = signal.DirectionSell
		if confidence <= strongSellThreshold {
			direction = signal.DirectionStrongSell
		}
	}

	combined := signal.New(symbol, direction, confidence)
	combined.EntryPrice = latestClose
	combined.StopLoss = stopSum / count
	combined.TakeProfit = takeSum / count
	combined.PositionSize = sizeSum / count
	combined.Reasons = reasons
	combined.Metadata["combined"] = true
	combined.Metadata["strategies"] = len(winners)

	// 换用最新市价后价格关系可能被破坏，此时放弃合成信号。
	if err := combined.Validate(); err != nil {
		return nil
	}

	return combined
}
