package market

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service 将券商的原始K线转化为带指标的序列。
type Service struct {
	source    CandleSource
	timeframe string
	logger    *zap.Logger
}

// NewService 创建市场数据服务。
func NewService(source CandleSource, timeframe string, logger *zap.Logger) *Service {
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:    source,
		timeframe: timeframe,
		logger:    logger,
	}
}

var _ Provider = (*Service)(nil)

// GetIndicatorSeries 拉取单个标的的K线并计算指标列。
func (s *Service) GetIndicatorSeries(ctx context.Context, symbol string, lookback int) (Series, error) {
	if lookback <= 0 {
		lookback = DefaultLookback
	}

	candles, err := s.source.FetchCandles(ctx, symbol, s.timeframe, lookback)
	if err != nil {
		return nil, fmt.Errorf("market: 拉取 %s K线失败: %w", symbol, err)
	}
	if len(candles) == 0 {
		return Series{}, nil
	}

	series, err := Enrich(candles)
	if err != nil {
		return nil, err
	}

	return series, nil
}

// GetBatch 并发拉取多个标的的指标序列，单个标的失败不影响其他标的。
func (s *Service) GetBatch(ctx context.Context, symbols []string, lookback int) map[string]Series {
	var mu sync.Mutex
	out := make(map[string]Series, len(symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		symbol := symbol
		group.Go(func() error {
			series, err := s.GetIndicatorSeries(groupCtx, symbol, lookback)
			if err != nil {
				s.logger.Warn("拉取市场数据失败，跳过该标的",
					zap.String("symbol", symbol),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			out[symbol] = series
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()
	return out
}
