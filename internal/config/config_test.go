package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:       AppConfig{Environment: "development", Symbols: []string{"AAPL"}},
		Broker:    BrokerConfig{Name: "binance", Timeframe: "1d"},
		Sentiment: SentimentConfig{Enabled: false},
		Strategies: StrategiesConfig{
			Lookback:            20,
			RiskPerTrade:        0.02,
			MaxPositionFraction: 0.10,
			Momentum:            StrategyConfig{Enabled: true, Weight: 1},
		},
		Risk: RiskConfig{
			MaxPositionFraction:    0.10,
			MaxDailyLossFraction:   0.03,
			MaxDrawdownFraction:    0.10,
			MaxOpenPositions:       5,
			MinCashReserveFraction: 0.20,
		},
		Execution: ExecutionConfig{OrderKind: "bracket", MaxAttempts: 3, BaseDelay: time.Second, Simulation: true},
		Database:  DatabaseConfig{InMemory: true, MaxOpenConns: 1},
		Logging: LoggingConfig{
			Level:            "info",
			Encoding:         "console",
			OutputPaths:      []string{"stdout"},
			ErrorOutputPaths: []string{"stderr"},
		},
		Scheduler: SchedulerConfig{EvaluateInterval: 5 * time.Minute, PollInterval: 30 * time.Second},
	}
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.App.Symbols = nil
	cfg.Execution.OrderKind = "stop"
	cfg.Risk.MaxOpenPositions = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation failure")
	}
	msg := err.Error()
	for _, want := range []string{"app.symbols", "execution.order_kind", "risk.max_open_positions"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected aggregated error to mention %s, got %q", want, msg)
		}
	}
}

func TestValidate_RequiresAtLeastOneStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Strategies.Momentum.Enabled = false

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when all strategies disabled")
	}
}

func TestValidate_SentimentOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Sentiment = SentimentConfig{Enabled: true}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for enabled sentiment without api key")
	}

	cfg.Sentiment = SentimentConfig{Enabled: true, APIKey: "key", Model: "gpt-4.1", Timeout: 15 * time.Second}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for enabled sentiment without news api key")
	} else if !strings.Contains(err.Error(), "sentiment.news.api_key") {
		t.Errorf("expected news api key violation, got %v", err)
	}

	cfg.Sentiment.News = NewsConfig{APIKey: "news-key"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid sentiment config, got %v", err)
	}
}
