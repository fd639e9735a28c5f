package market

import (
	"context"
	"time"
)

const (
	// DefaultTimeframe 为策略评估所用K线周期。
	DefaultTimeframe = "1d"
	// DefaultLookback 为默认回看长度。
	DefaultLookback = 60
)

// Candle 代表单根原始K线。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Bar 为带指标列的K线，时间升序排列。
// 指标在回看长度不足时为 NaN，策略端负责跳过。
type Bar struct {
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	SMA20      float64
	SMA50      float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	ATR        float64
}

// Series 为时间升序的指标序列。
type Series []Bar

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s)
}

// Last 返回最后一根Bar，序列为空时返回零值。
func (s Series) Last() Bar {
	if len(s) == 0 {
		return Bar{}
	}
	return s[len(s)-1]
}

// Prev 返回倒数第二根Bar，不足两根时返回零值。
func (s Series) Prev() Bar {
	if len(s) < 2 {
		return Bar{}
	}
	return s[len(s)-2]
}

// AverageVolume 返回末尾 n 根K线的平均成交量。
func (s Series) AverageVolume(n int) float64 {
	if n <= 0 || len(s) == 0 {
		return 0
	}
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for _, bar := range s[start:] {
		sum += bar.Volume
	}
	return sum / float64(len(s)-start)
}

// HighestClose 返回末尾 n 根K线的最高收盘价。
func (s Series) HighestClose(n int) float64 {
	highest := 0.0
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	for _, bar := range s[start:] {
		if bar.Close > highest {
			highest = bar.Close
		}
	}
	return highest
}

// LowestClose 返回末尾 n 根K线的最低收盘价，序列为空时返回0。
func (s Series) LowestClose(n int) float64 {
	start := len(s) - n
	if start < 0 {
		start = 0
	}
	if start >= len(s) {
		return 0
	}
	lowest := s[start].Close
	for _, bar := range s[start:] {
		if bar.Close < lowest {
			lowest = bar.Close
		}
	}
	return lowest
}

// Provider 为市场数据提供方，返回带指标列的时间序列。
type Provider interface {
	GetIndicatorSeries(ctx context.Context, symbol string, lookback int) (Series, error)
}

// CandleSource 抽象原始K线来源，通常由券商网关实现。
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
}
