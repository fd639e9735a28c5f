package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"signal-trader/internal/config"
	"signal-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 启动主循环：按评估周期生成并执行信号，按轮询周期刷新订单状态。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("信号交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("broker", a.cfg.Broker.Name),
		zap.Strings("symbols", a.cfg.App.Symbols),
		zap.Bool("simulation", a.cfg.Execution.Simulation),
	)

	orch, err := newOrchestrator(orchestratorConfig{
		app:        a.cfg.App,
		broker:     a.cfg.Broker,
		sentiment:  a.cfg.Sentiment,
		strategies: a.cfg.Strategies,
		risk:       a.cfg.Risk,
		execution:  a.cfg.Execution,
	}, a.logger, a.store)
	if err != nil {
		return err
	}

	evaluateInterval := a.cfg.Scheduler.EvaluateInterval
	if evaluateInterval <= 0 {
		evaluateInterval = 5 * time.Minute
	}
	pollInterval := a.cfg.Scheduler.PollInterval
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}

	if err = orch.Tick(ctx); err != nil {
		a.logger.Error("首次评估失败", zap.Error(err))
	}

	evaluate := time.NewTicker(evaluateInterval)
	defer evaluate.Stop()
	poll := time.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("系统异常退出: %w", err)
			}
			a.logger.Info("系统收到退出信号，正在停止")
			return nil
		case <-poll.C:
			orch.PollOrders(ctx)
		case <-evaluate.C:
			if err = orch.Tick(ctx); err != nil {
				a.logger.Error("执行评估失败", zap.Error(err))
			}
		}
	}
}
