package strategy

import (
	"math"

	"signal-trader/internal/signal"
)

const (
	reversionBandWeight   = 0.15
	reversionZScoreWeight = 0.10
	zScoreTrigger         = 2.0
)

// MeanReversion 为均值回归策略：价格触及布林带边缘叠加RSI极值触发，
// z分数突破±2时独立触发，目标价默认回归带中轨。
type MeanReversion struct {
	params Params
}

// NewMeanReversion 创建均值回归策略。
func NewMeanReversion(params Params) *MeanReversion {
	return &MeanReversion{params: params.normalized()}
}

var _ Strategy = (*MeanReversion)(nil)

// Name 返回策略名。
func (m *MeanReversion) Name() string { return "mean_reversion" }

// Analyze 评估均值回归条件。
func (m *MeanReversion) Analyze(input Input) *signal.Signal {
	series := input.Series
	if series.Len() < m.params.Lookback {
		return nil
	}

	last := series.Last()
	price := last.Close
	if price <= 0 || last.ATR <= 0 {
		return nil
	}
	if last.BBUpper <= last.BBLower || last.BBMiddle <= 0 {
		return nil
	}

	// z分数以带宽的四分之一为标准差近似。
	zScore := (price - last.BBMiddle) / ((last.BBUpper - last.BBLower) / 4)
	if math.IsNaN(zScore) || math.IsInf(zScore, 0) {
		return nil
	}

	confidence := 0.5
	reasons := make([]string, 0, 3)

	switch {
	case price <= last.BBLower && last.RSI < rsiOversold:
		confidence += reversionBandWeight
		reasons = append(reasons, reason("价格触及布林下轨且RSI %.1f 超卖", last.RSI))
	case price >= last.BBUpper && last.RSI > rsiOverbought:
		confidence -= reversionBandWeight
		reasons = append(reasons, reason("价格触及布林上轨且RSI %.1f 超买", last.RSI))
	}

	switch {
	case zScore < -zScoreTrigger:
		confidence += reversionZScoreWeight
		reasons = append(reasons, reason("z分数 %.2f 低于 -%.1f", zScore, zScoreTrigger))
	case zScore > zScoreTrigger:
		confidence -= reversionZScoreWeight
		reasons = append(reasons, reason("z分数 %.2f 高于 %.1f", zScore, zScoreTrigger))
	}

	confidence = clamp01(confidence)
	direction, ok := directionFromConfidence(confidence)
	if !ok {
		return nil
	}

	sig := signal.New(input.Symbol, direction, confidence)
	sig.EntryPrice = price
	// 目标价回归中轨；中轨与现价同侧时无利润空间，放弃信号。
	sig.TakeProfit = last.BBMiddle
	if direction.IsBuy() {
		if last.BBMiddle <= price {
			return nil
		}
		sig.StopLoss = price - 2*last.ATR
	} else {
		if last.BBMiddle >= price {
			return nil
		}
		sig.StopLoss = price + 2*last.ATR
	}
	if sig.StopLoss <= 0 {
		return nil
	}

	sig.PositionSize = positionSize(input.Capital, sig.EntryPrice, sig.StopLoss,
		m.params.RiskPerTrade, m.params.MaxPositionFraction)
	sig.Reasons = reasons
	sig.Metadata["z_score"] = zScore
	sig.Metadata["bb_upper"] = last.BBUpper
	sig.Metadata["bb_middle"] = last.BBMiddle
	sig.Metadata["bb_lower"] = last.BBLower
	sig.Metadata["rsi"] = last.RSI

	return sig
}
