package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/report"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

// brokerageSnapshot fetches positions, orders and dividends in sequence.
func brokerageSnapshot(ctx context.Context) (*snapshot.Snapshot, subcommands.ExitStatus) {
	e, err := openEnv()
	if err != nil {
		fail("Error loading config: %v", err)
		return nil, subcommands.ExitFailure
	}
	if e.sources.Broker == nil {
		fail("Error: missing TRADING_212_API_KEY or TRADING_212_API_SECRET")
		return nil, subcommands.ExitFailure
	}

	b := snapshot.NewBuilder(nil, e.sources.Broker, e.cfg.Trading212.SourceDelay)
	s, err := b.Build(e.context(ctx), snapshot.Request{})
	if err != nil {
		fail("Error fetching Trading 212 data: %v", err)
		return nil, subcommands.ExitFailure
	}
	return s, subcommands.ExitSuccess
}

type positionsCmd struct{}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "display open positions and unrealized profit/loss" }
func (*positionsCmd) Usage() string {
	return `positions

  Displays the open positions sorted by value, with cost basis taken from
  the filled order history.
`
}

func (*positionsCmd) SetFlags(*flag.FlagSet) {}

func (c *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := brokerageSnapshot(ctx)
	if s == nil {
		return status
	}
	printMarkdown(report.PositionsMarkdown(s.Open, s.PortfolioValue))
	return subcommands.ExitSuccess
}

type closedCmd struct{}

func (*closedCmd) Name() string     { return "closed" }
func (*closedCmd) Synopsis() string { return "display realized profit/loss of closed positions" }
func (*closedCmd) Usage() string {
	return `closed

  Displays every ticker that was traded but is no longer held, with its
  realized result and dividends.
`
}

func (*closedCmd) SetFlags(*flag.FlagSet) {}

func (c *closedCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	s, status := brokerageSnapshot(ctx)
	if s == nil {
		return status
	}
	printMarkdown(report.ClosedMarkdown(s.Closed, s.ClosedTotals))
	return subcommands.ExitSuccess
}

type ordersCmd struct {
	limit int
}

func (*ordersCmd) Name() string     { return "orders" }
func (*ordersCmd) Synopsis() string { return "display filled orders, newest first" }
func (*ordersCmd) Usage() string {
	return `orders [-n <limit>]

  Displays the filled orders of the whole history, newest first.
`
}

func (c *ordersCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "Maximum number of orders to display. 0 displays all.")
}

func (c *ordersCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail("Error loading config: %v", err)
		return subcommands.ExitFailure
	}
	if e.sources.Broker == nil {
		fail("Error: missing TRADING_212_API_KEY or TRADING_212_API_SECRET")
		return subcommands.ExitFailure
	}

	fills, err := e.sources.Broker.HistoricalOrders(e.context(ctx))
	if err != nil {
		fail("Error fetching historical orders: %v", err)
		return subcommands.ExitFailure
	}

	fills = aggregate.FilledOrders(fills)
	if c.limit > 0 && len(fills) > c.limit {
		fills = fills[:c.limit]
	}
	printMarkdown(report.OrdersMarkdown(fills))
	return subcommands.ExitSuccess
}
