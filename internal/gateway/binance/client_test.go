package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"newsdriven/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFutures struct {
	mu       sync.Mutex
	orders   []map[string]string
	leverage int
}

func (f *fakeFutures) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := r.URL.Path
		switch {
		case strings.Contains(path, "ticker/price"):
			sym := r.URL.Query().Get("symbol")
			_, _ = w.Write([]byte(`{"symbol":"` + sym + `","price":"100.50","time":1}`))
		case strings.Contains(path, "balance"):
			_, _ = w.Write([]byte(`[{"asset":"BNB","availableBalance":"3"},{"asset":"USDT","balance":"900","availableBalance":"812.5"}]`))
		case strings.Contains(path, "leverage"):
			f.mu.Lock()
			f.leverage++
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"leverage":3,"maxNotionalValue":"1000000","symbol":"BTCUSDT"}`))
		case strings.Contains(path, "order"):
			require.NoError(t, r.ParseForm())
			params := map[string]string{}
			for k := range r.Form {
				params[k] = r.Form.Get(k)
			}
			f.mu.Lock()
			f.orders = append(f.orders, params)
			f.mu.Unlock()
			_, _ = w.Write([]byte(`{"orderId":42,"symbol":"BTCUSDT","status":"FILLED","avgPrice":"101.25","executedQty":"` + params["quantity"] + `","origQty":"` + params["quantity"] + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestFormatQuantity(t *testing.T) {
	s, err := formatQuantity(0.123456, 0.001, false)
	require.NoError(t, err)
	assert.Equal(t, "0.123", s)

	s, err = formatQuantity(0.123456, 0.001, true)
	require.NoError(t, err)
	assert.Equal(t, "0.124", s)

	s, err = formatQuantity(5, 1, false)
	require.NoError(t, err)
	assert.Equal(t, "5", s)

	s, err = formatQuantity(0.5, 0, false)
	require.NoError(t, err)
	assert.Equal(t, "0.5", s)

	_, err = formatQuantity(0.0004, 0.001, false)
	require.ErrorIs(t, err, ErrQuantityTooSmall)
	_, err = formatQuantity(0, 0.001, true)
	require.ErrorIs(t, err, ErrQuantityTooSmall)
}

func TestPriceAndDryRun(t *testing.T) {
	fake := &fakeFutures{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := New(Config{RESTBaseURL: srv.URL, DryRun: true, DryRunBalance: 500, StepSize: 0.001})
	price, err := c.Price(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, 100.5, price)

	bal, err := c.Balance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 500.0, bal)

	fill, err := c.MarketOrder(context.Background(), "BTCUSDT", types.SideLong, 0.2049)
	require.NoError(t, err)
	assert.True(t, fill.DryRun)
	assert.True(t, strings.HasPrefix(fill.OrderID, "dry-"))
	assert.Equal(t, 0.204, fill.Quantity)
	assert.Equal(t, 100.5, fill.Price)
	assert.Empty(t, fake.orders)
}

func TestLiveOrderAndClose(t *testing.T) {
	fake := &fakeFutures{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	c := New(Config{RESTBaseURL: srv.URL, APIKey: "k", APISecret: "s", Leverage: 3, StepSize: 0.001})
	bal, err := c.Balance(context.Background(), "usdt")
	require.NoError(t, err)
	assert.Equal(t, 812.5, bal)

	fill, err := c.MarketOrder(context.Background(), "BTCUSDT", types.SideShort, 0.2)
	require.NoError(t, err)
	assert.Equal(t, "42", fill.OrderID)
	assert.Equal(t, 101.25, fill.Price)
	assert.Equal(t, 0.2, fill.Quantity)

	_, err = c.MarketOrder(context.Background(), "BTCUSDT", types.SideShort, 0.2)
	require.NoError(t, err)

	pos := types.Position{ID: "p1", Symbol: "BTCUSDT", Side: types.SideShort, Quantity: 0.2, RemainingQty: 0.2}
	res, err := c.Close(context.Background(), pos, 0.5, types.ReasonTakeProfit)
	require.NoError(t, err)
	assert.Equal(t, 0.1, res.Quantity)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.leverage)
	require.Len(t, fake.orders, 3)
	assert.Equal(t, "SELL", fake.orders[0]["side"])
	assert.Equal(t, "MARKET", fake.orders[0]["type"])
	assert.Equal(t, "0.200", fake.orders[0]["quantity"])
	assert.Equal(t, "BUY", fake.orders[2]["side"])
	assert.Equal(t, "true", fake.orders[2]["reduceOnly"])
	assert.Equal(t, "0.100", fake.orders[2]["quantity"])
}

func TestCloseRejectsEmpty(t *testing.T) {
	c := New(Config{DryRun: true})
	_, err := c.Close(context.Background(), types.Position{ID: "p"}, 1, types.ReasonStopLoss)
	require.Error(t, err)
}
