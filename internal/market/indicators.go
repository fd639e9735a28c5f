package market

import (
	"fmt"

	talib "github.com/markcheno/go-talib"
)

const (
	smaShortPeriod = 20
	smaLongPeriod  = 50
	rsiPeriod      = 14
	atrPeriod      = 14
	bbPeriod       = 20
)

// Enrich 依据原始K线计算指标列并返回 Series。
// talib 在暖机区间内返回0值，调用方按序列长度判断可用性。
func Enrich(candles []Candle) (Series, error) {
	if len(candles) == 0 {
		return nil, fmt.Errorf("market: 输入K线为空")
	}

	length := len(candles)
	closes := make([]float64, length)
	highs := make([]float64, length)
	lows := make([]float64, length)
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	var (
		sma20, sma50, rsi, atr     []float64
		macd, macdSignal           []float64
		bbUpper, bbMiddle, bbLower []float64
	)

	if length >= smaShortPeriod {
		sma20 = talib.Sma(closes, smaShortPeriod)
	}
	if length >= smaLongPeriod {
		sma50 = talib.Sma(closes, smaLongPeriod)
	}
	if length > rsiPeriod {
		rsi = talib.Rsi(closes, rsiPeriod)
	}
	if length >= 34 {
		macd, macdSignal, _ = talib.Macd(closes, 12, 26, 9)
	}
	if length >= bbPeriod {
		bbUpper, bbMiddle, bbLower = talib.BBands(closes, bbPeriod, 2, 2, talib.SMA)
	}
	if length > atrPeriod {
		atr = talib.Atr(highs, lows, closes, atrPeriod)
	}

	series := make(Series, length)
	for i, c := range candles {
		series[i] = Bar{
			Timestamp:  c.Timestamp.UTC(),
			Open:       c.Open,
			High:       c.High,
			Low:        c.Low,
			Close:      c.Close,
			Volume:     c.Volume,
			SMA20:      valueAt(sma20, i),
			SMA50:      valueAt(sma50, i),
			RSI:        valueAt(rsi, i),
			MACD:       valueAt(macd, i),
			MACDSignal: valueAt(macdSignal, i),
			BBUpper:    valueAt(bbUpper, i),
			BBMiddle:   valueAt(bbMiddle, i),
			BBLower:    valueAt(bbLower, i),
			ATR:        valueAt(atr, i),
		}
	}

	return series, nil
}

func valueAt(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return 0
	}
	return values[i]
}
