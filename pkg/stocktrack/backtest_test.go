package stocktrack

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"testing"
)

func TestCalcMaxDrawdown(t *testing.T) {
	cases := []struct {
		name   string
		closes []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{100}, 0},
		{"rising", []float64{100, 110, 120}, 0},
		{"dip and recover", []float64{100, 80, 120}, -20},
		{"later peak", []float64{100, 150, 90, 140, 120}, -40},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertFloatEquals(t, CalcMaxDrawdown(tc.closes), tc.want, "drawdown")
		})
	}
}

func TestBacktestBuyHold_InsufficientData(t *testing.T) {
	for _, closes := range [][]float64{nil, {100}} {
		r := BacktestBuyHold(closes, 240)
		if !math.IsNaN(r.TotalReturn) || !math.IsNaN(r.AnnualReturn) || !math.IsNaN(r.MaxDrawdown) || !math.IsNaN(r.WinRate) {
			t.Fatalf("expected NaN statistics for %v, got %+v", closes, r)
		}
		if r.Trades != 0 {
			t.Fatalf("expected 0 trades, got %d", r.Trades)
		}
	}
}

func TestBacktestBuyHold_TwoPoints(t *testing.T) {
	r := BacktestBuyHold([]float64{100, 110}, 240)
	assertFloatEquals(t, r.TotalReturn, 10, "total return")
	assertFloatEquals(t, r.WinRate, 100, "win rate")
	assertFloatEquals(t, r.MaxDrawdown, 0, "drawdown")
	if r.Trades != 1 {
		t.Fatalf("expected 1 trade, got %d", r.Trades)
	}
	want := (math.Pow(1.1, 240) - 1) * 100
	if math.Abs(r.AnnualReturn-want)/want > 1e-9 {
		t.Fatalf("annual return: got %v, want %v", r.AnnualReturn, want)
	}
}

func TestBacktestBuyHold_Loss(t *testing.T) {
	closes := make([]float64, 241)
	for i := range closes {
		closes[i] = 100 - float64(i)*0.1
	}
	r := BacktestBuyHold(closes, 240)
	assertFloatEquals(t, r.TotalReturn, -24, "total return")
	// One full year of trading days: annual equals total.
	assertFloatEquals(t, r.AnnualReturn, -24, "annual return")
	assertFloatEquals(t, r.MaxDrawdown, -24, "drawdown")
	assertFloatEquals(t, r.WinRate, 0, "win rate")
}

func TestBacktestBuyHold_DrawdownScenario(t *testing.T) {
	r := BacktestBuyHold([]float64{100, 80, 120}, 240)
	assertFloatEquals(t, r.TotalReturn, 20, "total return")
	assertFloatEquals(t, r.MaxDrawdown, -20, "drawdown")
	assertFloatEquals(t, r.WinRate, 100, "win rate")
}

func TestBacktestBuyHold_DefaultTradingDays(t *testing.T) {
	closes := []float64{100, 101, 103}
	if a, b := BacktestBuyHold(closes, 0), BacktestBuyHold(closes, 240); a.AnnualReturn != b.AnnualReturn {
		t.Fatalf("expected 240-day default: %v vs %v", a.AnnualReturn, b.AnnualReturn)
	}
	a := BacktestBuyHold(closes, 252)
	b := BacktestBuyHold(closes, 240)
	if !(a.AnnualReturn > b.AnnualReturn) {
		t.Fatalf("more trading days should compound further: %v <= %v", a.AnnualReturn, b.AnnualReturn)
	}
}

func TestBacktestResult_JSON(t *testing.T) {
	data, err := json.Marshal(BacktestBuyHold([]float64{100}, 240))
	assertNoError(t, err, "marshal")
	want := `{"totalReturn":null,"annualReturn":null,"maxDrawdown":null,"winRate":null,"trades":0}`
	if string(data) != want {
		t.Fatalf("got %s, want %s", data, want)
	}

	var decoded BacktestResult
	assertNoError(t, json.Unmarshal(data, &decoded), "unmarshal")
	if !math.IsNaN(decoded.TotalReturn) || decoded.Trades != 0 {
		t.Fatalf("expected NaN after decode, got %+v", decoded)
	}

	data, err = json.Marshal(BacktestBuyHold([]float64{100, 80, 120}, 240))
	assertNoError(t, err, "marshal")
	assertNoError(t, json.Unmarshal(data, &decoded), "unmarshal")
	assertFloatEquals(t, decoded.MaxDrawdown, -20, "drawdown round trip")
	if decoded.Trades != 1 {
		t.Fatalf("expected 1 trade, got %d", decoded.Trades)
	}
}

func TestRunBacktest(t *testing.T) {
	client := newRouteHTTPClient()
	client.handle(yahoo2330, http.StatusOK, `{"chart":{"result":[{
		"timestamp":[1704153600,1704240000,1704326400],
		"indicators":{"quote":[{"close":[500,400,600]}]}}]}}`)
	core, cleanup := setupTestCoreWithOptions(t, Options{HTTPClient: client, TradingDaysPerYear: 2})
	defer cleanup()

	r, rows, err := core.RunBacktest(context.Background(), MarketTW, "2330")
	assertNoError(t, err, "backtest")
	if len(rows) != 3 {
		t.Fatalf("expected 3 closes, got %d", len(rows))
	}
	assertFloatEquals(t, r.TotalReturn, 20, "total return")
	assertFloatEquals(t, r.AnnualReturn, 20, "annual return over 2 trading days")
	assertFloatEquals(t, r.MaxDrawdown, -20, "drawdown")
	if core.TradingDaysPerYear() != 2 {
		t.Fatalf("unexpected trading days %d", core.TradingDaysPerYear())
	}
}

func TestRunBacktest_UpstreamFailure(t *testing.T) {
	client := newRouteHTTPClient()
	client.handle(yahooAAPL, http.StatusInternalServerError, "")
	core, cleanup := setupTestCoreWithOptions(t, Options{HTTPClient: client})
	defer cleanup()

	r, rows, err := core.RunBacktest(context.Background(), MarketUS, "AAPL")
	assertErrorCode(t, err, ErrCodeUpstream, "backtest upstream")
	if rows != nil || r.Trades != 0 || !math.IsNaN(r.TotalReturn) {
		t.Fatalf("expected empty result on failure, got %+v %v", r, rows)
	}
}
