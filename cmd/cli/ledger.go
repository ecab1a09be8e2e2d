package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/report"
)

// summaryCmd prints the ledger totals of one database.
type summaryCmd struct {
	filterFlags
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display income, expenditure and checking totals" }
func (*summaryCmd) Usage() string {
	return `summary [-db <name>] [-exclude <tags>] [-start <date>] [-end <date>]

  Loads every record of the database and displays the ledger totals with
  the per-tag income and expenditure breakdowns.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail("Error loading config: %v", err)
		return subcommands.ExitFailure
	}
	if e.sources.Loader == nil {
		fail("Error: Notion is not configured (NOTION_API_KEY, NOTION_DATABASE_ID)")
		return subcommands.ExitFailure
	}

	ds, err := e.sources.Loader.Load(e.context(ctx), c.db)
	if err != nil {
		fail("Error fetching Notion data: %v", err)
		return subcommands.ExitFailure
	}

	title := ds.Title
	if title == "" {
		title = c.db
	}
	printMarkdown(report.SummaryMarkdown(title, aggregate.Summarize(ds.Records, filter)))
	return subcommands.ExitSuccess
}

// monthlyCmd prints the month by month series.
type monthlyCmd struct {
	filterFlags
	recent int
}

func (*monthlyCmd) Name() string     { return "monthly" }
func (*monthlyCmd) Synopsis() string { return "display the monthly income, expenditure and savings" }
func (*monthlyCmd) Usage() string {
	return `monthly [-recent <n>] [-db <name>] [-exclude <tags>] [-start <date>] [-end <date>]

  Displays one row per calendar month. With -recent, displays exactly the
  last n months up to the current one, including empty months.
`
}

func (c *monthlyCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
	f.IntVar(&c.recent, "recent", 0, "Number of recent months to display")
}

func (c *monthlyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter, err := c.filter()
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	e, err := openEnv()
	if err != nil {
		fail("Error loading config: %v", err)
		return subcommands.ExitFailure
	}
	if e.sources.Loader == nil {
		fail("Error: Notion is not configured (NOTION_API_KEY, NOTION_DATABASE_ID)")
		return subcommands.ExitFailure
	}

	ds, err := e.sources.Loader.Load(e.context(ctx), c.db)
	if err != nil {
		fail("Error fetching Notion data: %v", err)
		return subcommands.ExitFailure
	}

	var months []aggregate.MonthSummary
	if c.recent > 0 {
		months = aggregate.RecentMonths(ds.Records, filter, c.recent, time.Now())
	} else {
		months = aggregate.Monthly(ds.Records, filter)
	}
	printMarkdown(report.MonthlyMarkdown(months))
	return subcommands.ExitSuccess
}

// databasesCmd lists the configured databases.
type databasesCmd struct{}

func (*databasesCmd) Name() string     { return "databases" }
func (*databasesCmd) Synopsis() string { return "list the configured Notion databases" }
func (*databasesCmd) Usage() string {
	return `databases

  Lists the names and ids read from NOTION_DATABASE_ID, in configured order.
`
}

func (*databasesCmd) SetFlags(*flag.FlagSet) {}

func (c *databasesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv()
	if err != nil {
		fail("Error loading config: %v", err)
		return subcommands.ExitFailure
	}
	if e.sources.Loader == nil {
		fail("Error: Notion is not configured (NOTION_API_KEY, NOTION_DATABASE_ID)")
		return subcommands.ExitFailure
	}
	printMarkdown(report.DatabasesMarkdown(e.sources.Loader.Databases()))
	return subcommands.ExitSuccess
}
