package monitor

import (
	"time"

	"signal-trader/internal/broker"
	"signal-trader/internal/execution"
	"signal-trader/internal/risk"
	"signal-trader/internal/signal"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventSignal      EventType = "signal"
	EventRiskVerdict EventType = "risk_verdict"
	EventExecution   EventType = "execution"
	EventPosition    EventType = "position"
	EventError       EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalPayload 记录合并后的交易信号。
type SignalPayload struct {
	Signal signal.Signal `json:"signal"`
}

// RiskVerdictPayload 记录风控评估结果。
type RiskVerdictPayload struct {
	Signal  signal.Signal `json:"signal"`
	Verdict risk.Verdict  `json:"verdict"`
	State   risk.State    `json:"state"`
}

// ExecutionPayload 记录订单执行结果。
type ExecutionPayload struct {
	Order execution.Order `json:"order"`
}

// PositionPayload 追踪账户与持仓。
type PositionPayload struct {
	Account   broker.Account    `json:"account"`
	Positions []broker.Position `json:"positions"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
