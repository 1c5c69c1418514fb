package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"stocktrack/pkg/stocktrack"
)

// priceFlags collects repeated -price SYMBOL=PRICE values.
type priceFlags map[string]float64

func (p priceFlags) String() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + strconv.FormatFloat(p[k], 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (p priceFlags) Set(v string) error {
	symbol, raw, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(symbol) == "" {
		return fmt.Errorf("want SYMBOL=PRICE, got %q", v)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid price for %s: %w", symbol, err)
	}
	p[strings.TrimSpace(symbol)] = price
	return nil
}

// summaryCmd holds the flags for the 'summary' subcommand.
type summaryCmd struct {
	*app
	prices priceFlags
	live   bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "value the portfolio at given or live prices" }
func (*summaryCmd) Usage() string {
	return `stocktrack summary [-price SYMBOL=PRICE]... [-live]

  Values every holding and prints per-holding and total profit and loss.
  Holdings without a price are valued at zero. -live fetches current quotes instead.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.prices = priceFlags{}
	f.Var(c.prices, "price", "Current price as SYMBOL=PRICE, repeatable")
	f.BoolVar(&c.live, "live", false, "Fetch current prices from the quote providers")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.live && len(c.prices) > 0 {
		fmt.Fprintln(c.errOut, "Error: -live and -price cannot be used together.")
		return subcommands.ExitUsageError
	}
	return c.withCore(func(core *stocktrack.Core) error {
		var (
			summary stocktrack.PortfolioSummary
			err     error
		)
		if c.live {
			summary, err = core.RefreshPortfolioSummary(ctx)
		} else {
			summary, err = core.GetPortfolioSummary(ctx, c.prices)
		}
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tSHARES\tAVG COST\tPRICE\tVALUE\tCOST\tP/L\tP/L %")
		for _, h := range summary.Holdings {
			fmt.Fprintf(tw, "%s\t%g\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f%%\n",
				h.Symbol, h.TotalShares, h.AverageCost, h.CurrentPrice,
				h.TotalValue, h.TotalCost, h.ProfitLoss.ProfitLoss, h.ProfitLossPercent)
		}
		s := summary.Summary
		fmt.Fprintf(tw, "TOTAL\t\t\t\t%.2f\t%.2f\t%.2f\t%.2f%%\n",
			s.TotalValue, s.TotalCost, s.TotalProfitLoss, s.TotalProfitLossPercent)
		return tw.Flush()
	})
}

// backtestCmd holds the flags for the 'backtest' subcommand.
type backtestCmd struct {
	*app
	symbol string
	market string
	closes string
	days   int
}

func (*backtestCmd) Name() string     { return "backtest" }
func (*backtestCmd) Synopsis() string { return "run a buy-and-hold backtest" }
func (*backtestCmd) Usage() string {
	return `stocktrack backtest -s <symbol> [-m TW|US]
stocktrack backtest -closes <c1,c2,...> [-days <n>]

  Buys at the first close and holds to the last. With -s, about two years of
  daily closes are fetched from the quote providers.
`
}

func (c *backtestCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol to fetch closes for")
	f.StringVar(&c.market, "m", "US", "Market of the symbol: TW or US")
	f.StringVar(&c.closes, "closes", "", "Comma separated closing prices, oldest first")
	f.IntVar(&c.days, "days", 0, "Trading days per year for annualization (default from config)")
}

func parseCloses(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid close %q", part)
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *backtestCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if (c.symbol == "") == (c.closes == "") {
		fmt.Fprintln(c.errOut, "Error: exactly one of -s or -closes is required.")
		return subcommands.ExitUsageError
	}
	if c.days < 0 {
		fmt.Fprintln(c.errOut, "Error: -days must not be negative.")
		return subcommands.ExitUsageError
	}
	return c.withCore(func(core *stocktrack.Core) error {
		var result stocktrack.BacktestResult
		if c.closes != "" {
			closes, err := parseCloses(c.closes)
			if err != nil {
				return err
			}
			days := c.days
			if days == 0 {
				days = core.TradingDaysPerYear()
			}
			result = stocktrack.BacktestBuyHold(closes, days)
		} else {
			market := stocktrack.Market(strings.ToUpper(c.market))
			res, rows, err := core.RunBacktest(ctx, market, c.symbol)
			if err != nil {
				return err
			}
			result = res
			if len(rows) > 0 {
				fmt.Fprintf(c.out, "%s %s: %d closes from %s to %s\n",
					market, c.symbol, len(rows), rows[0].Date, rows[len(rows)-1].Date)
			}
		}
		fmt.Fprintf(c.out, "Total return:   %s\n", percent(result.TotalReturn))
		fmt.Fprintf(c.out, "Annual return:  %s\n", percent(result.AnnualReturn))
		fmt.Fprintf(c.out, "Max drawdown:   %s\n", percent(result.MaxDrawdown))
		fmt.Fprintf(c.out, "Win rate:       %s\n", percent(result.WinRate))
		fmt.Fprintf(c.out, "Trades:         %d\n", result.Trades)
		return nil
	})
}

func percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

// watchCmd toggles or lists the watchlist.
type watchCmd struct {
	*app
	symbol string
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "toggle a symbol on the watchlist, or list it" }
func (*watchCmd) Usage() string {
	return `stocktrack watch [-s <symbol>]

  With -s, adds the symbol to the watchlist or removes it when already present.
  Without flags, prints the watchlist.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol to toggle")
}

func (c *watchCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withCore(func(core *stocktrack.Core) error {
		var (
			symbols []string
			err     error
		)
		if c.symbol == "" {
			symbols, err = core.LoadWatchlist(ctx)
		} else {
			symbols, err = core.ToggleWatchlistSymbol(ctx, c.symbol)
		}
		if err != nil {
			return err
		}
		if c.symbol != "" {
			state := "removed from"
			for _, s := range symbols {
				if s == c.symbol {
					state = "added to"
				}
			}
			fmt.Fprintf(c.out, "%s %s watchlist\n", c.symbol, state)
		}
		if len(symbols) == 0 {
			fmt.Fprintln(c.out, "Watchlist is empty")
			return nil
		}
		for _, s := range symbols {
			fmt.Fprintln(c.out, s)
		}
		return nil
	})
}
