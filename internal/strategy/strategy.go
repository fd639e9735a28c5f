package strategy

import (
	"fmt"
	"math"

	"signal-trader/internal/market"
	"signal-trader/internal/sentiment"
	"signal-trader/internal/signal"
)

const (
	// defaultLookback 为策略评估所需的最小K线数量。
	defaultLookback = 20
	// defaultRiskPerTrade 为单笔交易的风险预算（占资金比例）。
	defaultRiskPerTrade = 0.02
	// defaultMaxPositionFraction 为单笔仓位市值占资金的上限。
	defaultMaxPositionFraction = 0.10

	strongBuyThreshold  = 0.70
	buyThreshold        = 0.60
	sellThreshold       = 0.40
	strongSellThreshold = 0.30
)

// Input 为一次策略评估的全部输入。策略是纯函数：
// 相同输入必然得到相同输出，内部不做任何I/O。
type Input struct {
	Symbol    string
	Series    market.Series
	Sentiment *sentiment.Summary
	Capital   float64
}

// Strategy 抽象单个策略。返回 nil 表示本次不给出建议，
// 数据不足同样返回 nil 而非错误。
type Strategy interface {
	Name() string
	Analyze(input Input) *signal.Signal
}

// Params 控制策略的风险预算与回看长度。
type Params struct {
	Lookback            int
	RiskPerTrade        float64
	MaxPositionFraction float64
}

func (p Params) normalized() Params {
	if p.Lookback <= 0 {
		p.Lookback = defaultLookback
	}
	if p.RiskPerTrade <= 0 {
		p.RiskPerTrade = defaultRiskPerTrade
	}
	if p.MaxPositionFraction <= 0 {
		p.MaxPositionFraction = defaultMaxPositionFraction
	}
	return p
}

// directionFromConfidence 将置信度映射为方向，落在中间地带时返回 false。
func directionFromConfidence(confidence float64) (signal.Direction, bool) {
	switch {
	case confidence >= strongBuyThreshold:
		return signal.DirectionStrongBuy, true
	case confidence >= buyThreshold:
		return signal.DirectionBuy, true
	case confidence <= strongSellThreshold:
		return signal.DirectionStrongSell, true
	case confidence <= sellThreshold:
		return signal.DirectionSell, true
	default:
		return "", false
	}
}

// positionSize 按风险预算计算股数：风险金额除以每股价差，
// 再受仓位市值上限约束。entry 与 stop 相等时风险未定义，返回0。
func positionSize(capital, entry, stop, riskPerTrade, maxFraction float64) float64 {
	perShareRisk := math.Abs(entry - stop)
	if perShareRisk <= 0 || entry <= 0 || capital <= 0 {
		return 0
	}

	shares := capital * riskPerTrade / perShareRisk
	maxShares := capital * maxFraction / entry
	if shares > maxShares {
		shares = maxShares
	}

	return math.Floor(shares)
}

func reason(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
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
