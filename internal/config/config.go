package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "signals"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.symbols", []string{"BTC/USDT"})

	v.SetDefault("broker.name", "binance")
	v.SetDefault("broker.use_sandbox", false)
	v.SetDefault("broker.timeframe", "1d")

	v.SetDefault("sentiment.enabled", false)
	v.SetDefault("sentiment.base_url", "https://api.openai.com/v1")
	v.SetDefault("sentiment.model", "gpt-4.1")
	v.SetDefault("sentiment.timeout", "15s")
	v.SetDefault("sentiment.news.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("sentiment.news.max_headlines", 10)
	v.SetDefault("sentiment.news.rate_limit_per_minute", 5)
	v.SetDefault("sentiment.news.timeout", "10s")

	v.SetDefault("strategies.lookback", 20)
	v.SetDefault("strategies.risk_per_trade", 0.02)
	v.SetDefault("strategies.max_position_fraction", 0.10)
	v.SetDefault("strategies.momentum.enabled", true)
	v.SetDefault("strategies.momentum.weight", 1.0)
	v.SetDefault("strategies.mean_reversion.enabled", true)
	v.SetDefault("strategies.mean_reversion.weight", 1.0)
	v.SetDefault("strategies.sentiment.enabled", false)
	v.SetDefault("strategies.sentiment.weight", 0.5)

	v.SetDefault("risk.max_position_fraction", 0.10)
	v.SetDefault("risk.max_daily_loss_fraction", 0.03)
	v.SetDefault("risk.max_drawdown_fraction", 0.10)
	v.SetDefault("risk.max_open_positions", 5)
	v.SetDefault("risk.min_cash_reserve_fraction", 0.20)

	v.SetDefault("execution.order_kind", "bracket")
	v.SetDefault("execution.max_attempts", 3)
	v.SetDefault("execution.base_delay", "1s")
	v.SetDefault("execution.simulation", true)

	v.SetDefault("database.path", "data/signal_trader.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})

	v.SetDefault("scheduler.evaluate_interval", "5m")
	v.SetDefault("scheduler.poll_interval", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
