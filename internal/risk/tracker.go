package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DailyTracker 将日度风控指标与违规记录落地到 SQLite，
// 使熔断状态在进程重启后仍然可追溯。
type DailyTracker struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDailyTracker 创建日度跟踪器并初始化表结构。
func NewDailyTracker(db *sql.DB, logger *zap.Logger) (*DailyTracker, error) {
	if db == nil {
		return nil, errors.New("risk: 数据库实例不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tracker := &DailyTracker{db: db, logger: logger}
	if err := tracker.initSchema(); err != nil {
		return nil, err
	}

	return tracker, nil
}

func (t *DailyTracker) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS risk_daily_metrics (
			trading_date TEXT PRIMARY KEY,
			portfolio_value REAL NOT NULL,
			peak_value REAL NOT NULL,
			daily_pnl REAL NOT NULL,
			drawdown REAL NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS risk_violation_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at TEXT NOT NULL,
			symbol TEXT NOT NULL,
			violation TEXT NOT NULL,
			trading_date TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_risk_violation_date ON risk_violation_log(trading_date);`,
	}

	for _, stmt := range schema {
		if _, err := t.db.Exec(stmt); err != nil {
			return fmt.Errorf("risk: 初始化表结构失败: %w", err)
		}
	}

	return nil
}

// Update 写入当日最新组合指标，峰值只增不减。
func (t *DailyTracker) Update(ctx context.Context, portfolioValue, dailyPnL, drawdown float64) error {
	tradingDate := tradingDay(time.Now().UTC())
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("risk: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var peak float64
	row := tx.QueryRowContext(ctx,
		`SELECT peak_value FROM risk_daily_metrics WHERE trading_date = ?`, tradingDate)
	switch scanErr := row.Scan(&peak); {
	case scanErr == nil:
		if portfolioValue > peak {
			peak = portfolioValue
		}
		if _, execErr := tx.ExecContext(ctx,
			`UPDATE risk_daily_metrics
			 SET portfolio_value = ?, peak_value = ?, daily_pnl = ?, drawdown = ?, updated_at = ?
			 WHERE trading_date = ?`,
			portfolioValue, peak, dailyPnL, drawdown, now, tradingDate,
		); execErr != nil {
			err = fmt.Errorf("risk: 更新日度指标失败: %w", execErr)
			return err
		}
	case errors.Is(scanErr, sql.ErrNoRows):
		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO risk_daily_metrics
			 (trading_date, portfolio_value, peak_value, daily_pnl, drawdown, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			tradingDate, portfolioValue, portfolioValue, dailyPnL, drawdown, now,
		); execErr != nil {
			err = fmt.Errorf("risk: 初始化日度指标失败: %w", execErr)
			return err
		}
	default:
		err = fmt.Errorf("risk: 查询日度指标失败: %w", scanErr)
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("risk: 提交事务失败: %w", commitErr)
	}

	return nil
}

// LogViolations 记录一次校验产生的全部违规条目。
func (t *DailyTracker) LogViolations(ctx context.Context, symbol string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}

	tradingDate := tradingDay(time.Now().UTC())
	now := time.Now().UTC().Format(time.RFC3339)

	for _, v := range violations {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, err := t.db.ExecContext(ctx,
			`INSERT INTO risk_violation_log (occurred_at, symbol, violation, trading_date)
			 VALUES (?, ?, ?, ?)`,
			now, symbol, v, tradingDate,
		); err != nil {
			return fmt.Errorf("risk: 写入违规记录失败: %w", err)
		}
	}

	return nil
}

func tradingDay(ts time.Time) string {
	utc := ts.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Format("2006-01-02")
}
