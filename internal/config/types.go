package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Sentiment  SentimentConfig  `mapstructure:"sentiment"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string   `mapstructure:"environment"`
	Symbols     []string `mapstructure:"symbols"`
}

// BrokerConfig 描述券商网关连接信息。
type BrokerConfig struct {
	Name       string `mapstructure:"name"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	APIPass    string `mapstructure:"api_password"`
	UseSandbox bool   `mapstructure:"use_sandbox"`
	Timeframe  string `mapstructure:"timeframe"`
}

// SentimentConfig 描述情绪模型调用参数。
type SentimentConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
	News    NewsConfig    `mapstructure:"news"`
}

// NewsConfig 描述新闻标题数据源参数。
type NewsConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	MaxHeadlines       int           `mapstructure:"max_headlines"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

// StrategyConfig 控制单个策略的启用状态与投票权重。
type StrategyConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Weight  float64 `mapstructure:"weight"`
}

// StrategiesConfig 聚合全部策略参数。
type StrategiesConfig struct {
	Lookback            int            `mapstructure:"lookback"`
	RiskPerTrade        float64        `mapstructure:"risk_per_trade"`
	MaxPositionFraction float64        `mapstructure:"max_position_fraction"`
	Momentum            StrategyConfig `mapstructure:"momentum"`
	MeanReversion       StrategyConfig `mapstructure:"mean_reversion"`
	Sentiment           StrategyConfig `mapstructure:"sentiment"`
}

// RiskConfig 管理组合级风控限制。
type RiskConfig struct {
	MaxPositionFraction    float64 `mapstructure:"max_position_fraction"`
	MaxDailyLossFraction   float64 `mapstructure:"max_daily_loss_fraction"`
	MaxDrawdownFraction    float64 `mapstructure:"max_drawdown_fraction"`
	MaxOpenPositions       int     `mapstructure:"max_open_positions"`
	MinCashReserveFraction float64 `mapstructure:"min_cash_reserve_fraction"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	OrderKind   string        `mapstructure:"order_kind"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Simulation  bool          `mapstructure:"simulation"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// SchedulerConfig 控制主循环与订单轮询节奏。
type SchedulerConfig struct {
	EvaluateInterval time.Duration `mapstructure:"evaluate_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if len(c.App.Symbols) == 0 {
		err = multierr.Append(err, errors.New("app.symbols 至少包含一个标的"))
	}
	if c.Broker.Name == "" {
		err = multierr.Append(err, errors.New("broker.name 不能为空"))
	}
	if c.Broker.Timeframe == "" {
		err = multierr.Append(err, errors.New("broker.timeframe 不能为空"))
	}
	if c.Sentiment.Enabled {
		if c.Sentiment.APIKey == "" {
			err = multierr.Append(err, errors.New("sentiment.api_key 不能为空"))
		}
		if c.Sentiment.Model == "" {
			err = multierr.Append(err, errors.New("sentiment.model 不能为空"))
		}
		if c.Sentiment.Timeout <= 0 {
			err = multierr.Append(err, errors.New("sentiment.timeout 必须大于0"))
		}
		if c.Sentiment.News.APIKey == "" {
			err = multierr.Append(err, errors.New("sentiment.news.api_key 不能为空"))
		}
	}
	if c.Strategies.Lookback <= 0 {
		err = multierr.Append(err, errors.New("strategies.lookback 必须大于0"))
	}
	if c.Strategies.RiskPerTrade <= 0 || c.Strategies.RiskPerTrade > 1 {
		err = multierr.Append(err, errors.New("strategies.risk_per_trade 必须位于(0,1]"))
	}
	if c.Strategies.MaxPositionFraction <= 0 || c.Strategies.MaxPositionFraction > 1 {
		err = multierr.Append(err, errors.New("strategies.max_position_fraction 必须位于(0,1]"))
	}
	if !c.Strategies.Momentum.Enabled && !c.Strategies.MeanReversion.Enabled && !c.Strategies.Sentiment.Enabled {
		err = multierr.Append(err, errors.New("至少需要启用一个策略"))
	}
	for name, sc := range map[string]StrategyConfig{
		"momentum":       c.Strategies.Momentum,
		"mean_reversion": c.Strategies.MeanReversion,
		"sentiment":      c.Strategies.Sentiment,
	} {
		if sc.Enabled && sc.Weight <= 0 {
			err = multierr.Append(err, fmt.Errorf("strategies.%s.weight 必须大于0", name))
		}
	}
	if c.Risk.MaxPositionFraction <= 0 || c.Risk.MaxPositionFraction > 1 {
		err = multierr.Append(err, errors.New("risk.max_position_fraction 必须位于(0,1]"))
	}
	if c.Risk.MaxDailyLossFraction <= 0 || c.Risk.MaxDailyLossFraction > 1 {
		err = multierr.Append(err, errors.New("risk.max_daily_loss_fraction 必须位于(0,1]"))
	}
	if c.Risk.MaxDrawdownFraction <= 0 || c.Risk.MaxDrawdownFraction > 1 {
		err = multierr.Append(err, errors.New("risk.max_drawdown_fraction 必须位于(0,1]"))
	}
	if c.Risk.MaxOpenPositions <= 0 {
		err = multierr.Append(err, errors.New("risk.max_open_positions 必须大于0"))
	}
	if c.Risk.MinCashReserveFraction < 0 || c.Risk.MinCashReserveFraction >= 1 {
		err = multierr.Append(err, errors.New("risk.min_cash_reserve_fraction 必须位于[0,1)"))
	}
	switch c.Execution.OrderKind {
	case "market", "limit", "bracket":
	default:
		err = multierr.Append(err, fmt.Errorf("execution.order_kind 取值非法: %s", c.Execution.OrderKind))
	}
	if c.Execution.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("execution.max_attempts 必须大于0"))
	}
	if c.Execution.BaseDelay <= 0 {
		err = multierr.Append(err, errors.New("execution.base_delay 必须大于0"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}
	if c.Scheduler.EvaluateInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.evaluate_interval 必须大于0"))
	}
	if c.Scheduler.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("scheduler.poll_interval 必须大于0"))
	}
	if c.Scheduler.PollInterval > c.Scheduler.EvaluateInterval {
		err = multierr.Append(err, errors.New("scheduler.poll_interval 不应大于 evaluate_interval"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
