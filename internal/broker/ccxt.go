package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"signal-trader/internal/config"
	"signal-trader/internal/market"
)

type ccxtClient interface {
	CreateOrder(symbol string, typeVar string, side string, amount float64, options ...ccxt.CreateOrderOptions) (ccxt.Order, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	FetchOrder(id string, options ...ccxt.FetchOrderOptions) (ccxt.Order, error)
	CancelOrder(id string, options ...ccxt.CancelOrderOptions) (ccxt.Order, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	FetchPositions(options ...ccxt.FetchPositionsOptions) ([]ccxt.Position, error)
	FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error)
}

// CCXTGateway 基于 ccxt 实现券商网关，同时充当原始K线来源。
type CCXTGateway struct {
	client ccxtClient
	logger *zap.Logger

	mu           sync.Mutex
	orderSymbols map[string]string
}

// NewCCXTGateway 依据配置构造 ccxt 网关。
func NewCCXTGateway(cfg config.BrokerConfig, logger *zap.Logger) (*CCXTGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}

	var client ccxtClient
	switch strings.ToLower(cfg.Name) {
	case "binance", "":
		ex := ccxt.NewBinance(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		client = ex
	case "binanceusdm":
		ex := ccxt.NewBinanceusdm(userConfig)
		if cfg.UseSandbox {
			ex.SetSandboxMode(true)
		}
		client = ex
	default:
		return nil, fmt.Errorf("broker: 不支持的券商 %q", cfg.Name)
	}

	return &CCXTGateway{
		client:       client,
		logger:       logger,
		orderSymbols: make(map[string]string),
	}, nil
}

var (
	_ Gateway             = (*CCXTGateway)(nil)
	_ market.CandleSource = (*CCXTGateway)(nil)
)

// IsTradable 以能否取到K线作为标的可交易的判据。
func (g *CCXTGateway) IsTradable(ctx context.Context, symbol string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := g.client.FetchOHLCV(symbol, ccxt.WithFetchOHLCVLimit(1))
	if err != nil {
		var ccxtErr *ccxt.Error
		if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.BadSymbolErrType {
			return false, nil
		}
		return false, fmt.Errorf("broker: 校验 %s 可交易性失败: %w", symbol, err)
	}

	return true, nil
}

// SubmitOrder 将委托转换为 ccxt 下单调用。
func (g *CCXTGateway) SubmitOrder(ctx context.Context, spec OrderSpec) (OrderAck, error) {
	if err := ctx.Err(); err != nil {
		return OrderAck{}, err
	}

	var (
		order ccxt.Order
		err   error
	)

	switch spec.Kind {
	case KindMarket:
		order, err = g.client.CreateMarketOrder(spec.Symbol, string(spec.Side), spec.Quantity)
	case KindLimit:
		order, err = g.client.CreateLimitOrder(spec.Symbol, string(spec.Side), spec.Quantity, spec.LimitPrice)
	case KindBracket:
		params := map[string]interface{}{}
		if spec.StopLoss > 0 {
			params["stopLossPrice"] = spec.StopLoss
		}
		if spec.TakeProfit > 0 {
			params["takeProfitPrice"] = spec.TakeProfit
		}
		order, err = g.client.CreateOrder(spec.Symbol, "market", string(spec.Side), spec.Quantity,
			ccxt.WithCreateOrderParams(params))
	default:
		return OrderAck{}, fmt.Errorf("broker: 不支持的委托类型 %q", spec.Kind)
	}
	if err != nil {
		return OrderAck{}, fmt.Errorf("broker: 提交委托失败: %w", err)
	}

	id := derefString(order.Id)
	if id == "" {
		return OrderAck{}, errors.New("broker: 券商未返回订单号")
	}

	g.mu.Lock()
	g.orderSymbols[id] = spec.Symbol
	g.mu.Unlock()

	return OrderAck{
		ID:        id,
		Status:    convertStatus(order),
		Submitted: time.Now().UTC(),
	}, nil
}

// GetOrderStatus 查询订单最新状态。
func (g *CCXTGateway) GetOrderStatus(ctx context.Context, id string) (OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	symbol := g.symbolForOrder(id)
	if symbol == "" {
		return "", ErrOrderNotFound
	}

	order, err := g.client.FetchOrder(id, ccxt.WithFetchOrderSymbol(symbol))
	if err != nil {
		return "", fmt.Errorf("broker: 查询订单 %s 状态失败: %w", id, err)
	}

	return convertStatus(order), nil
}

// CancelOrder 撤销订单，券商侧撤单视为幂等。
func (g *CCXTGateway) CancelOrder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	symbol := g.symbolForOrder(id)
	if symbol == "" {
		return ErrOrderNotFound
	}

	if _, err := g.client.CancelOrder(id, ccxt.WithCancelOrderSymbol(symbol)); err != nil {
		return fmt.Errorf("broker: 撤销订单 %s 失败: %w", id, err)
	}

	return nil
}

// GetAccount 返回账户资金快照。
func (g *CCXTGateway) GetAccount(ctx context.Context) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	balances, err := g.client.FetchBalance()
	if err != nil {
		return Account{}, fmt.Errorf("broker: 获取账户余额失败: %w", err)
	}

	var account Account
	for _, code := range []string{"USD", "USDT", "USDC"} {
		if balances.Total != nil {
			if total, ok := balances.Total[code]; ok && total != nil && account.Equity == 0 {
				account.Equity = *total
			}
		}
		if balances.Free != nil {
			if free, ok := balances.Free[code]; ok && free != nil && account.Cash == 0 {
				account.Cash = *free
			}
		}
	}
	if account.BuyingPower == 0 {
		account.BuyingPower = account.Cash
	}

	return account, nil
}

// GetOpenPositions 返回当前全部持仓。
func (g *CCXTGateway) GetOpenPositions(ctx context.Context) ([]Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rawPositions, err := g.client.FetchPositions()
	if err != nil {
		return nil, fmt.Errorf("broker: 获取持仓失败: %w", err)
	}

	positions := make([]Position, 0, len(rawPositions))
	for _, raw := range rawPositions {
		size := derefFloat(raw.Contracts)
		if size == 0 {
			continue
		}
		positions = append(positions, Position{
			Symbol:   derefString(raw.Symbol),
			Quantity: size,
			Side:     strings.ToLower(derefString(raw.Side)),
		})
	}

	return positions, nil
}

// FetchCandles 实现 market.CandleSource。
func (g *CCXTGateway) FetchCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	raw, err := g.client.FetchOHLCV(symbol,
		ccxt.WithFetchOHLCVTimeframe(timeframe),
		ccxt.WithFetchOHLCVLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("broker: 拉取 %s K线失败: %w", symbol, err)
	}

	candles := make([]market.Candle, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, market.Candle{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}

	return candles, nil
}

func (g *CCXTGateway) symbolForOrder(id string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.orderSymbols[id]
}

func convertStatus(order ccxt.Order) OrderStatus {
	status := strings.ToLower(derefString(order.Status))
	filled := derefFloat(order.Filled)
	amount := derefFloat(order.Amount)

	switch status {
	case "closed":
		return StatusFilled
	case "canceled", "cancelled":
		return StatusCancelled
	case "rejected":
		return StatusRejected
	case "expired":
		return StatusExpired
	case "open", "":
		if filled > 0 && filled < amount {
			return StatusPartiallyFilled
		}
		return StatusPending
	default:
		return StatusPending
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
