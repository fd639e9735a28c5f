package strategy

import (
	"signal-trader/internal/signal"
)

const (
	momentumRSIWeight      = 0.15
	momentumMACDWeight     = 0.15
	momentumVolumeWeight   = 0.10
	momentumBreakoutWeight = 0.10
	momentumSentimentTilt  = 0.10

	volumeSurgeRatio = 1.5

	rsiBullishLow   = 50.0
	rsiBullishHigh  = 70.0
	rsiBearishLow   = 30.0
	rsiOversold     = 30.0
	rsiOverbought   = 70.0
	sentimentStrong = 0.70
	sentimentWeak   = 0.30
)

// Momentum 为动量策略：从0.5的基准置信度出发，
// 按RSI区间、MACD交叉、量能、价格突破与情绪逐项加减权重。
type Momentum struct {
	params Params
}

// NewMomentum 创建动量策略。
func NewMomentum(params Params) *Momentum {
	return &Momentum{params: params.normalized()}
}

var _ Strategy = (*Momentum)(nil)

// Name 返回策略名。
func (m *Momentum) Name() string { return "momentum" }

// Analyze 评估动量条件，数据不足或置信度落在中间地带时返回 nil。
func (m *Momentum) Analyze(input Input) *signal.Signal {
	series := input.Series
	if series.Len() < m.params.Lookback {
		return nil
	}

	last := series.Last()
	prev := series.Prev()
	price := last.Close
	if price <= 0 || last.ATR <= 0 {
		return nil
	}

	confidence := 0.5
	reasons := make([]string, 0, 5)

	switch {
	case last.RSI > rsiBullishLow && last.RSI < rsiBullishHigh:
		confidence += momentumRSIWeight
		reasons = append(reasons, reason("RSI %.1f 处于多头区间", last.RSI))
	case last.RSI < rsiBullishLow && last.RSI > rsiBearishLow:
		confidence -= momentumRSIWeight
		reasons = append(reasons, reason("RSI %.1f 处于空头区间", last.RSI))
	}

	switch {
	case last.MACD > last.MACDSignal && prev.MACD <= prev.MACDSignal:
		confidence += momentumMACDWeight
		reasons = append(reasons, reason("MACD 上穿信号线"))
	case last.MACD < last.MACDSignal && prev.MACD >= prev.MACDSignal:
		confidence -= momentumMACDWeight
		reasons = append(reasons, reason("MACD 下穿信号线"))
	}

	volumeAvg := series.AverageVolume(m.params.Lookback)
	volumeRatio := 0.0
	if volumeAvg > 0 {
		volumeRatio = last.Volume / volumeAvg
	}
	if volumeRatio > volumeSurgeRatio {
		if price >= prev.Close {
			confidence += momentumVolumeWeight
			reasons = append(reasons, reason("放量上行，量能比 %.2f", volumeRatio))
		} else {
			confidence -= momentumVolumeWeight
			reasons = append(reasons, reason("放量下行，量能比 %.2f", volumeRatio))
		}
	}

	if price >= series.HighestClose(m.params.Lookback) {
		confidence += momentumBreakoutWeight
		reasons = append(reasons, reason("收盘创%d日新高", m.params.Lookback))
	} else if price <= series.LowestClose(m.params.Lookback) {
		confidence -= momentumBreakoutWeight
		reasons = append(reasons, reason("收盘创%d日新低", m.params.Lookback))
	}

	if input.Sentiment != nil {
		switch {
		case input.Sentiment.Score >= sentimentStrong:
			confidence += momentumSentimentTilt
			reasons = append(reasons, reason("情绪分 %.2f 偏多", input.Sentiment.Score))
		case input.Sentiment.Score <= sentimentWeak:
			confidence -= momentumSentimentTilt
			reasons = append(reasons, reason("情绪分 %.2f 偏空", input.Sentiment.Score))
		}
	}

	confidence = clamp01(confidence)
	direction, ok := directionFromConfidence(confidence)
	if !ok {
		return nil
	}

	sig := signal.New(input.Symbol, direction, confidence)
	sig.EntryPrice = price
	if direction.IsBuy() {
		sig.StopLoss = price - 2*last.ATR
		sig.TakeProfit = price + 3*last.ATR
	} else {
		sig.StopLoss = price + 2*last.ATR
		sig.TakeProfit = price - 3*last.ATR
	}
	if sig.StopLoss <= 0 || sig.TakeProfit <= 0 {
		return nil
	}

	sig.PositionSize = positionSize(input.Capital, sig.EntryPrice, sig.StopLoss,
		m.params.RiskPerTrade, m.params.MaxPositionFraction)
	sig.Reasons = reasons
	sig.Metadata["rsi"] = last.RSI
	sig.Metadata["macd"] = last.MACD
	sig.Metadata["macd_signal"] = last.MACDSignal
	sig.Metadata["volume_ratio"] = volumeRatio
	sig.Metadata["atr"] = last.ATR

	return sig
}
