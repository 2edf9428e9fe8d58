package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"newsdriven/internal/logger"
	symbolpkg "newsdriven/internal/pkg/symbol"
	"newsdriven/internal/risk"
	"newsdriven/internal/types"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
)

// ErrQuantityTooSmall 表示按步长取整后数量为 0。
var ErrQuantityTooSmall = errors.New("quantity below step size")

// Client 基于 go-binance 的 USDⓈ-M 合约客户端，同时实现取价、开仓与平仓。
type Client struct {
	cfg    Config
	client *futures.Client

	mu          sync.Mutex
	leverageSet map[string]bool
}

func New(cfg Config) *Client {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	if final.DryRun {
		logger.Warnf("[binance] dry-run mode: orders are simulated, balance=%.2f", final.DryRunBalance)
	}
	return &Client{
		cfg:         final,
		client:      client,
		leverageSet: make(map[string]bool),
	}
}

func (c *Client) DryRun() bool { return c.cfg.DryRun }

func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	symbol = symbolpkg.Binance.ToExchange(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol is required")
	}
	prices, err := c.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("price %s: %w", symbol, err)
	}
	for _, p := range prices {
		if p == nil || !strings.EqualFold(p.Symbol, symbol) {
			continue
		}
		v := parseFloat(p.Price)
		if v <= 0 {
			break
		}
		return v, nil
	}
	return 0, fmt.Errorf("price not available for %s", symbol)
}

func (c *Client) Balance(ctx context.Context, asset string) (float64, error) {
	if c.cfg.DryRun {
		return c.cfg.DryRunBalance, nil
	}
	balances, err := c.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("balance: %w", err)
	}
	for _, b := range balances {
		if b != nil && strings.EqualFold(b.Asset, asset) {
			return parseFloat(b.AvailableBalance), nil
		}
	}
	return 0, nil
}

// MarketOrder 按步长向下取整后市价开仓。
func (c *Client) MarketOrder(ctx context.Context, symbol string, side types.Side, qty float64) (types.OrderFill, error) {
	qtyStr, err := formatQuantity(qty, c.cfg.StepSize, false)
	if err != nil {
		return types.OrderFill{}, err
	}
	return c.place(ctx, symbol, side, qtyStr, false)
}

// Close 以反方向 reduce-only 市价单平掉 remaining*fraction。
// 全部平仓时向上取整到步长，交易所会按实际持仓截断。
func (c *Client) Close(ctx context.Context, pos types.Position, fraction float64, reason string) (risk.CloseResult, error) {
	if fraction <= 0 || pos.RemainingQty <= 0 {
		return risk.CloseResult{}, fmt.Errorf("nothing to close for %s", pos.ID)
	}
	if fraction > 1 {
		fraction = 1
	}
	qtyStr, err := formatQuantity(pos.RemainingQty*fraction, c.cfg.StepSize, fraction >= 1)
	if err != nil {
		return risk.CloseResult{}, err
	}
	logger.Infof("[binance] close %s %s qty=%s reason=%s", pos.Symbol, pos.Side.Opposite().OrderSide(), qtyStr, reason)
	fill, err := c.place(ctx, pos.Symbol, pos.Side.Opposite(), qtyStr, true)
	if err != nil {
		return risk.CloseResult{}, err
	}
	return risk.CloseResult{OrderID: fill.OrderID, Quantity: fill.Quantity, Price: fill.Price}, nil
}

func (c *Client) place(ctx context.Context, symbol string, side types.Side, qtyStr string, reduceOnly bool) (types.OrderFill, error) {
	symbol = symbolpkg.Binance.ToExchange(symbol)
	fill := types.OrderFill{Symbol: symbol, Side: side, Quantity: parseFloat(qtyStr)}
	if c.cfg.DryRun {
		price, err := c.Price(ctx, symbol)
		if err != nil {
			return types.OrderFill{}, err
		}
		fill.OrderID = "dry-" + uuid.NewString()
		fill.Price = price
		fill.DryRun = true
		logger.Infof("[binance] dry-run %s %s qty=%s price=%.8f reduceOnly=%v", symbol, side.OrderSide(), qtyStr, price, reduceOnly)
		return fill, nil
	}
	if !reduceOnly {
		if err := c.ensureLeverage(ctx, symbol); err != nil {
			return types.OrderFill{}, err
		}
	}
	svc := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(futures.SideType(side.OrderSide())).
		Type(futures.OrderTypeMarket).
		Quantity(qtyStr).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		return types.OrderFill{}, fmt.Errorf("order %s %s %s: %w", symbol, side.OrderSide(), qtyStr, err)
	}
	fill.OrderID = strconv.FormatInt(resp.OrderID, 10)
	if q := parseFloat(resp.ExecutedQuantity); q > 0 {
		fill.Quantity = q
	}
	fill.Price = parseFloat(resp.AvgPrice)
	logger.Infof("[binance] order %s %s %s filled qty=%.8f avg=%.8f", fill.OrderID, symbol, side.OrderSide(), fill.Quantity, fill.Price)
	return fill, nil
}

// ensureLeverage 每个 symbol 只设置一次杠杆。
func (c *Client) ensureLeverage(ctx context.Context, symbol string) error {
	c.mu.Lock()
	done := c.leverageSet[symbol]
	c.mu.Unlock()
	if done {
		return nil
	}
	if _, err := c.client.NewChangeLeverageService().Symbol(symbol).Leverage(c.cfg.Leverage).Do(ctx); err != nil {
		return fmt.Errorf("set leverage %s x%d: %w", symbol, c.cfg.Leverage, err)
	}
	c.mu.Lock()
	c.leverageSet[symbol] = true
	c.mu.Unlock()
	return nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
