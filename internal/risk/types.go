package risk

// Limits 为构造时给定的组合级风控限制。
type Limits struct {
	MaxPositionFraction    float64 // 单笔仓位市值占组合净值上限
	MaxDailyLossFraction   float64 // 当日亏损占组合净值上限
	MaxDrawdownFraction    float64 // 距峰值回撤上限
	MaxOpenPositions       int     // 最大同时持仓数
	MinCashReserveFraction float64 // 最低现金储备占净值比例
}

// PositionLot 描述某个标的的持仓数量与方向。
type PositionLot struct {
	Quantity float64
	Side     string
}

// PortfolioSnapshot 为每次风控检查前刷新的组合快照，按值传入。
type PortfolioSnapshot struct {
	PortfolioValue  float64
	CashAvailable   float64
	OpenPositions   map[string]PositionLot
	DailyPnL        float64
	PeakValue       float64
	CurrentDrawdown float64
}

// State 为会话级风控状态，仅由 Manager 内部修改。
type State struct {
	PeakPortfolioValue float64
	CurrentDrawdown    float64
	DailyPnL           float64
	OpenPositionCount  int
	RecentViolations   []string
}

// Verdict 为一次交易校验的结论。
type Verdict struct {
	Accepted   bool
	Violations []string
}
