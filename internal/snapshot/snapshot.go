package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notion"
	"github.com/dvloznov/finance-dashboard/internal/trace"
)

// DefaultSourceDelay separates consecutive upstream fetches.
const DefaultSourceDelay = 500 * time.Millisecond

// ErrNoBrokerage is returned when the portfolio is requested without a
// brokerage client.
var ErrNoBrokerage = errors.New("brokerage not configured")

// Snapshot is the full dashboard state at one point in time.
type Snapshot struct {
	ID            string    `json:"id"`
	TakenAt       time.Time `json:"takenAt"`
	DatabaseID    string    `json:"databaseId,omitempty"`
	DatabaseTitle string    `json:"databaseTitle,omitempty"`

	Ledger               aggregate.Ledger         `json:"ledger"`
	IncomeBreakdown      []aggregate.TagShare     `json:"incomeBreakdown"`
	ExpenditureBreakdown []aggregate.TagShare     `json:"expenditureBreakdown"`
	Monthly              []aggregate.MonthSummary `json:"monthly"`

	Open           []aggregate.OpenPosition   `json:"openPositions"`
	Closed         []aggregate.ClosedPosition `json:"closedPositions"`
	ClosedTotals   aggregate.ClosedTotals     `json:"closedTotals"`
	PortfolioValue decimal.Decimal            `json:"portfolioValue"`

	Summary string `json:"summary,omitempty"`
}

// UnrealizedPL sums the unrealized result of the open positions.
func (s *Snapshot) UnrealizedPL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Open {
		total = total.Add(p.UnrealizedPL)
	}
	return total
}

// RecordSource loads a Notion dataset. *notion.Loader satisfies it.
type RecordSource interface {
	Load(ctx context.Context, param string) (*notion.Dataset, error)
}

// Brokerage reads the investment account. *trading212.Client satisfies it.
type Brokerage interface {
	Positions(ctx context.Context) ([]domain.Position, error)
	HistoricalOrders(ctx context.Context) ([]domain.Fill, error)
	Dividends(ctx context.Context) ([]domain.Dividend, error)
}

// Request selects the database and the ledger filter.
type Request struct {
	DatabaseID string
	Filter     aggregate.Filter
}

// Builder fetches every source one after another and aggregates the result.
// Either source may be nil, in which case its part of the snapshot is empty.
type Builder struct {
	records RecordSource
	broker  Brokerage
	delay   time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewBuilder creates a Builder. A negative sourceDelay disables the pause
// between fetches and zero selects DefaultSourceDelay.
func NewBuilder(records RecordSource, broker Brokerage, sourceDelay time.Duration) *Builder {
	if sourceDelay == 0 {
		sourceDelay = DefaultSourceDelay
	}
	if sourceDelay < 0 {
		sourceDelay = 0
	}
	return &Builder{
		records: records,
		broker:  broker,
		delay:   sourceDelay,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Build fetches the dataset, positions, orders and dividends sequentially and
// returns the aggregated snapshot.
func (b *Builder) Build(ctx context.Context, req Request) (*Snapshot, error) {
	ctx, span := trace.StartSpan(ctx, "snapshot.build")
	defer span.End()

	log := logger.FromContext(ctx)

	s := &Snapshot{
		ID:                   uuid.New().String(),
		TakenAt:              b.now().UTC(),
		IncomeBreakdown:      []aggregate.TagShare{},
		ExpenditureBreakdown: []aggregate.TagShare{},
		Monthly:              []aggregate.MonthSummary{},
		Open:                 []aggregate.OpenPosition{},
		Closed:               []aggregate.ClosedPosition{},
	}
	span.SetAttributes(attribute.String("snapshot_id", s.ID))

	fetched := 0
	pause := func() error {
		fetched++
		if fetched == 1 {
			return nil
		}
		return b.sleep(ctx, b.delay)
	}

	if b.records != nil {
		_ = pause()
		ds, err := b.records.Load(ctx, req.DatabaseID)
		if err != nil {
			return nil, fmt.Errorf("Build: notion: %w", err)
		}
		s.DatabaseID = ds.DatabaseID
		s.DatabaseTitle = ds.Title
		s.Ledger = aggregate.Summarize(ds.Records, req.Filter)
		s.IncomeBreakdown = s.Ledger.IncomeBreakdown()
		s.ExpenditureBreakdown = s.Ledger.ExpenditureBreakdown()
		s.Monthly = aggregate.Monthly(ds.Records, req.Filter)
	}

	if b.broker != nil {
		if err := pause(); err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		p, err := b.portfolio(ctx)
		if err != nil {
			return nil, fmt.Errorf("Build: %w", err)
		}
		s.Open, s.Closed, s.ClosedTotals, s.PortfolioValue = p.Open, p.Closed, p.ClosedTotals, p.Value
	}

	log.Info().
		Str("snapshot_id", s.ID).
		Str("database_id", s.DatabaseID).
		Int("records", s.Ledger.Records).
		Int("open_positions", len(s.Open)).
		Int("closed_positions", len(s.Closed)).
		Msg("Built snapshot")
	return s, nil
}

// Portfolio is the brokerage part of a snapshot.
type Portfolio struct {
	Open         []aggregate.OpenPosition
	Closed       []aggregate.ClosedPosition
	ClosedTotals aggregate.ClosedTotals
	Value        decimal.Decimal
}

// UnrealizedPL sums the unrealized result of the open positions.
func (p *Portfolio) UnrealizedPL() decimal.Decimal {
	total := decimal.Zero
	for _, o := range p.Open {
		total = total.Add(o.UnrealizedPL)
	}
	return total
}

// Portfolio fetches positions, orders and dividends one after another and
// aggregates them. The Notion source is never read.
func (b *Builder) Portfolio(ctx context.Context) (*Portfolio, error) {
	if b.broker == nil {
		return nil, ErrNoBrokerage
	}
	ctx, span := trace.StartSpan(ctx, "snapshot.portfolio")
	defer span.End()

	p, err := b.portfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("Portfolio: %w", err)
	}
	return p, nil
}

func (b *Builder) portfolio(ctx context.Context) (*Portfolio, error) {
	positions, err := b.broker.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}

	if err := b.sleep(ctx, b.delay); err != nil {
		return nil, err
	}
	fills, err := b.broker.HistoricalOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}

	if err := b.sleep(ctx, b.delay); err != nil {
		return nil, err
	}
	divs, err := b.broker.Dividends(ctx)
	if err != nil {
		return nil, fmt.Errorf("dividends: %w", err)
	}

	p := &Portfolio{}
	p.Open, p.Value = aggregate.OpenPositions(positions, fills, divs)
	p.Closed, p.ClosedTotals = aggregate.ClosedPositions(fills, positions, divs)
	return p, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
