package risk

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"signal-trader/internal/signal"
)

// maxRecentViolations 限制违规环形缓冲的长度。
const maxRecentViolations = 32

// Manager 负责组合级交易校验、风险仓位测算与回撤跟踪。
// 状态为会话级共享，内部由互斥锁串行化。
type Manager struct {
	mu        sync.Mutex
	limits    Limits
	state     State
	lastValue float64
	tracker   *DailyTracker
	logger    *zap.Logger
}

// NewManager 创建风险管理器。tracker 可以为 nil，此时状态仅驻留内存。
func NewManager(limits Limits, tracker *DailyTracker, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		limits:  limits,
		tracker: tracker,
		logger:  logger,
	}
}

// CalculatePositionSize 按单笔风险预算计算整数股数。
// entry 与 stop 相等时风险未定义，返回0而非错误。
func (m *Manager) CalculatePositionSize(capital, entryPrice, stopLoss, riskPerTrade float64) int {
	perShareRisk := math.Abs(entryPrice - stopLoss)
	if perShareRisk == 0 || entryPrice <= 0 || capital <= 0 || riskPerTrade <= 0 {
		return 0
	}

	shares := capital * riskPerTrade / perShareRisk
	maxShares := capital * m.limits.MaxPositionFraction / entryPrice
	if shares > maxShares {
		shares = maxShares
	}
	if shares < 0 {
		return 0
	}

	return int(math.Floor(shares))
}

// ValidateTrade 将候选信号与组合快照对照全部风控规则。
// 规则彼此独立且全部执行，以便一次性报告所有违规；
// 违规列表为空时信号才被接受。
func (m *Manager) ValidateTrade(ctx context.Context, sig *signal.Signal, snapshot PortfolioSnapshot) Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	violations := make([]string, 0, 4)
	if sig == nil {
		return Verdict{Accepted: false, Violations: []string{"信号为空"}}
	}

	positionValue := sig.EntryPrice * sig.PositionSize

	if maxValue := snapshot.PortfolioValue * m.limits.MaxPositionFraction; positionValue > maxValue {
		violations = append(violations,
			fmt.Sprintf("仓位市值 %.2f 超过上限 %.2f（组合净值的 %.0f%%）",
				positionValue, maxValue, m.limits.MaxPositionFraction*100))
	}

	if reserve := snapshot.PortfolioValue * m.limits.MinCashReserveFraction; snapshot.CashAvailable-positionValue < reserve {
		violations = append(violations,
			fmt.Sprintf("成交后现金 %.2f 低于最低储备 %.2f",
				snapshot.CashAvailable-positionValue, reserve))
	}

	if len(snapshot.OpenPositions) >= m.limits.MaxOpenPositions {
		violations = append(violations,
			fmt.Sprintf("持仓数量 %d 已达上限 %d",
				len(snapshot.OpenPositions), m.limits.MaxOpenPositions))
	}

	if lossLimit := -snapshot.PortfolioValue * m.limits.MaxDailyLossFraction; snapshot.DailyPnL < lossLimit {
		violations = append(violations,
			fmt.Sprintf("当日盈亏 %.2f 已击穿当日亏损上限 %.2f",
				snapshot.DailyPnL, lossLimit))
	}

	if snapshot.CurrentDrawdown > m.limits.MaxDrawdownFraction {
		violations = append(violations,
			fmt.Sprintf("当前回撤 %.2f%% 超过最大回撤上限 %.2f%%",
				snapshot.CurrentDrawdown*100, m.limits.MaxDrawdownFraction*100))
	}

	if _, exists := snapshot.OpenPositions[sig.Symbol]; exists {
		violations = append(violations,
			fmt.Sprintf("标的 %s 已有持仓，禁止重复建仓", sig.Symbol))
	}

	m.appendViolationsLocked(ctx, sig.Symbol, violations)

	accepted := len(violations) == 0
	if !accepted {
		m.logger.Warn("交易被风控拒绝",
			zap.String("symbol", sig.Symbol),
			zap.Strings("violations", violations),
		)
	}

	return Verdict{Accepted: accepted, Violations: violations}
}

// UpdatePortfolioMetrics 刷新峰值、回撤与当日盈亏。
func (m *Manager) UpdatePortfolioMetrics(ctx context.Context, portfolioValue, dailyPnL float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.DailyPnL = dailyPnL
	m.lastValue = portfolioValue
	if portfolioValue > m.state.PeakPortfolioValue {
		m.state.PeakPortfolioValue = portfolioValue
	}
	if m.state.PeakPortfolioValue > 0 {
		m.state.CurrentDrawdown = (m.state.PeakPortfolioValue - portfolioValue) / m.state.PeakPortfolioValue
	} else {
		m.state.CurrentDrawdown = 0
	}

	if m.tracker != nil {
		if err := m.tracker.Update(ctx, portfolioValue, dailyPnL, m.state.CurrentDrawdown); err != nil {
			m.logger.Warn("持久化日度风控指标失败", zap.Error(err))
		}
	}
}

// ShouldStopTrading 为熔断检查：当日亏损或回撤任一越限即停止开新仓，
// 直到指标被外部重置（例如下一交易日）。
func (m *Manager) ShouldStopTrading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastValue > 0 && m.state.DailyPnL < -m.lastValue*m.limits.MaxDailyLossFraction {
		return true
	}
	if m.state.CurrentDrawdown > m.limits.MaxDrawdownFraction {
		return true
	}
	return false
}

// SetOpenPositionCount 同步当前持仓数量（由编排层在刷新快照后调用）。
func (m *Manager) SetOpenPositionCount(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.OpenPositionCount = count
}

// Snapshot 返回当前风控状态副本，用于观测与测试。
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.state
	out.RecentViolations = append([]string(nil), m.state.RecentViolations...)
	return out
}

func (m *Manager) appendViolationsLocked(ctx context.Context, symbol string, violations []string) {
	for _, v := range violations {
		m.state.RecentViolations = append(m.state.RecentViolations, v)
	}
	if overflow := len(m.state.RecentViolations) - maxRecentViolations; overflow > 0 {
		m.state.RecentViolations = m.state.RecentViolations[overflow:]
	}

	if m.tracker != nil && len(violations) > 0 {
		if err := m.tracker.LogViolations(ctx, symbol, violations); err != nil {
			m.logger.Warn("写入风控违规日志失败", zap.Error(err))
		}
	}
}
