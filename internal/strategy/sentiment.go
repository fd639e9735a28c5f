package strategy

import (
	"math"

	sentimentpkg "signal-trader/internal/sentiment"
	"signal-trader/internal/signal"
)

const (
	sentimentExtremeDelta = 0.25
	sentimentTiltDelta    = 0.15
	sentimentLabelDelta   = 0.05

	sentimentScoreExtremeHigh = 0.80
	sentimentScoreHigh        = 0.65
	sentimentScoreLow         = 0.35
	sentimentScoreExtremeLow  = 0.20
)

// Sentiment 为情绪策略：仅依赖情绪摘要给出方向，
// 止损止盈随情绪强度放大波动假设。
type Sentiment struct {
	params Params
}

// NewSentiment 创建情绪策略。
func NewSentiment(params Params) *Sentiment {
	return &Sentiment{params: params.normalized()}
}

var _ Strategy = (*Sentiment)(nil)

// Name 返回策略名。
func (s *Sentiment) Name() string { return "sentiment" }

// Analyze 评估情绪条件，缺少情绪输入时返回 nil。
func (s *Sentiment) Analyze(input Input) *signal.Signal {
	summary := input.Sentiment
	if summary == nil {
		return nil
	}

	series := input.Series
	if series.Len() == 0 {
		return nil
	}
	last := series.Last()
	price := last.Close
	if price <= 0 || last.ATR <= 0 {
		return nil
	}

	confidence := 0.5
	reasons := make([]string, 0, 3)

	switch {
	case summary.Score >= sentimentScoreExtremeHigh:
		confidence += sentimentExtremeDelta
		reasons = append(reasons, reason("情绪分 %.2f 极度看多", summary.Score))
	case summary.Score >= sentimentScoreHigh:
		confidence += sentimentTiltDelta
		reasons = append(reasons, reason("情绪分 %.2f 偏多", summary.Score))
	case summary.Score <= sentimentScoreExtremeLow:
		confidence -= sentimentExtremeDelta
		reasons = append(reasons, reason("情绪分 %.2f 极度看空", summary.Score))
	case summary.Score <= sentimentScoreLow:
		confidence -= sentimentTiltDelta
		reasons = append(reasons, reason("情绪分 %.2f 偏空", summary.Score))
	}

	switch summary.Label {
	case sentimentpkg.LabelBullish:
		confidence += sentimentLabelDelta
	case sentimentpkg.LabelBearish:
		confidence -= sentimentLabelDelta
	}

	for _, catalyst := range summary.Catalysts {
		reasons = append(reasons, reason("催化因素: %s", catalyst))
	}

	confidence = clamp01(confidence)
	direction, ok := directionFromConfidence(confidence)
	if !ok {
		return nil
	}

	// 情绪越极端，预期波动越大，止损止盈同步放宽。
	volatilityMult := 1 + math.Abs(summary.Score-0.5)

	sig := signal.New(input.Symbol, direction, confidence)
	sig.EntryPrice = price
	if direction.IsBuy() {
		sig.StopLoss = price - 2*last.ATR*volatilityMult
		sig.TakeProfit = price + 3*last.ATR*volatilityMult
	} else {
		sig.StopLoss = price + 2*last.ATR*volatilityMult
		sig.TakeProfit = price - 3*last.ATR*volatilityMult
	}
	if sig.StopLoss <= 0 || sig.TakeProfit <= 0 {
		return nil
	}

	sig.PositionSize = positionSize(input.Capital, sig.EntryPrice, sig.StopLoss,
		s.params.RiskPerTrade, s.params.MaxPositionFraction)
	sig.Reasons = reasons
	sig.Metadata["sentiment_score"] = summary.Score
	sig.Metadata["sentiment_label"] = string(summary.Label)
	sig.Metadata["volatility_mult"] = volatilityMult

	return sig
}
