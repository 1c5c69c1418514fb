package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"stocktrack/pkg/stocktrack"
)

const dateLayout = "2006-01-02"

// parseDate turns a YYYY-MM-DD day into epoch milliseconds at UTC midnight.
// An empty string means now.
func parseDate(s string) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t.UnixMilli(), nil
}

func formatDate(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(dateLayout)
}

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	*app
	symbol   string
	name     string
	market   string
	txType   string
	quantity float64
	price    float64
	date     string
	note     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record a buy or sell transaction" }
func (*addCmd) Usage() string {
	return `stocktrack add -s <symbol> -t buy|sell -q <quantity> -p <price> [-d <date>] [-n <name>] [-m TW|US] [-note <text>]

  Appends a transaction to the holding for the symbol, creating the holding if needed.
  Name and market only apply when the holding is created.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol, as entered (case sensitive)")
	f.StringVar(&c.name, "n", "", "Display name for a new holding")
	f.StringVar(&c.market, "m", "", "Market for a new holding: TW or US")
	f.StringVar(&c.txType, "t", "buy", "Transaction type: buy or sell")
	f.Float64Var(&c.quantity, "q", 0, "Number of shares")
	f.Float64Var(&c.price, "p", 0, "Price per share")
	f.StringVar(&c.date, "d", "", "Trade date YYYY-MM-DD (default now)")
	f.StringVar(&c.note, "note", "", "Free text note")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	date, err := parseDate(c.date)
	if err != nil {
		fmt.Fprintln(c.errOut, err)
		return subcommands.ExitUsageError
	}
	return c.withCore(func(core *stocktrack.Core) error {
		h, err := core.AddTransaction(ctx, stocktrack.AddTransactionRequest{
			Symbol:   c.symbol,
			Name:     c.name,
			Market:   stocktrack.Market(strings.ToUpper(c.market)),
			Type:     stocktrack.TransactionType(strings.ToLower(c.txType)),
			Quantity: c.quantity,
			Price:    c.price,
			Date:     date,
			Note:     c.note,
		})
		if err != nil {
			return err
		}
		tx := h.Transactions[len(h.Transactions)-1]
		fmt.Fprintf(c.out, "Recorded %s %g %s @ %g (id %s)\n", tx.Type, tx.Quantity, h.Symbol, tx.Price, tx.ID)
		fmt.Fprintf(c.out, "%s: %g shares, average cost %.4f\n", h.Symbol, h.TotalShares, h.AverageCost)
		return nil
	})
}

// deleteCmd holds the flags for the 'delete' subcommand.
type deleteCmd struct {
	*app
	symbol string
	id     string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete a transaction from a holding" }
func (*deleteCmd) Usage() string {
	return `stocktrack delete -s <symbol> -id <transaction id>

  Removes the transaction and recomputes the holding. The holding is dropped
  when its last transaction is removed.
`
}

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol of the holding")
	f.StringVar(&c.id, "id", "", "Transaction id")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.id == "" {
		fmt.Fprintln(c.errOut, "Error: -s and -id are required")
		return subcommands.ExitUsageError
	}
	return c.withCore(func(core *stocktrack.Core) error {
		deleted, err := core.DeleteTransaction(ctx, c.symbol, c.id)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Fprintf(c.out, "No holding for %s\n", c.symbol)
			return nil
		}
		h, err := core.GetHolding(ctx, c.symbol)
		if err != nil {
			return err
		}
		if h == nil {
			fmt.Fprintf(c.out, "Deleted %s, holding %s closed\n", c.id, c.symbol)
			return nil
		}
		fmt.Fprintf(c.out, "Deleted %s\n", c.id)
		fmt.Fprintf(c.out, "%s: %g shares, average cost %.4f\n", h.Symbol, h.TotalShares, h.AverageCost)
		return nil
	})
}

// holdingCmd holds the flags for the 'holding' subcommand.
type holdingCmd struct {
	*app
	symbol string
}

func (*holdingCmd) Name() string     { return "holding" }
func (*holdingCmd) Synopsis() string { return "display one holding and its transactions" }
func (*holdingCmd) Usage() string {
	return `stocktrack holding -s <symbol>

  Shows the derived position and every transaction of the holding.
`
}

func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "s", "", "Symbol of the holding")
}

func (c *holdingCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		fmt.Fprintln(c.errOut, "Error: -s is required")
		return subcommands.ExitUsageError
	}
	return c.withCore(func(core *stocktrack.Core) error {
		h, err := core.GetHolding(ctx, c.symbol)
		if err != nil {
			return err
		}
		if h == nil {
			return stocktrack.NewError(stocktrack.ErrCodeNotFound, "no holding for "+c.symbol)
		}
		fmt.Fprintf(c.out, "%s %s (%s): %g shares, average cost %.4f\n\n", h.Symbol, h.Name, h.Market, h.TotalShares, h.AverageCost)
		writeTransactions(c.out, h.Transactions)
		return nil
	})
}

func writeTransactions(w io.Writer, txs []stocktrack.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tQUANTITY\tPRICE\tID\tNOTE")
	for _, tx := range txs {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%s\t%s\n", formatDate(tx.Date), tx.Type, tx.Quantity, tx.Price, tx.ID, tx.Note)
	}
	tw.Flush()
}

// listCmd lists every holding.
type listCmd struct {
	*app
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list all holdings" }
func (*listCmd) Usage() string {
	return `stocktrack list

  Lists holdings with their share count and average cost, in ledger order.
`
}

func (*listCmd) SetFlags(*flag.FlagSet) {}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.withCore(func(core *stocktrack.Core) error {
		holdings, err := core.LoadPortfolio(ctx)
		if err != nil {
			return err
		}
		if len(holdings) == 0 {
			fmt.Fprintln(c.out, "No holdings")
			return nil
		}
		tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tNAME\tMARKET\tSHARES\tAVG COST\tTRANSACTIONS")
		for _, h := range holdings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%.4f\t%d\n", h.Symbol, h.Name, h.Market, h.TotalShares, h.AverageCost, len(h.Transactions))
		}
		return tw.Flush()
	})
}
