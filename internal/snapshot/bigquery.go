package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// Row is the BigQuery summary of one snapshot.
type Row struct {
	SnapshotID string    `bigquery:"snapshot_id"`
	TakenAt    time.Time `bigquery:"taken_at"`
	DatabaseID string    `bigquery:"database_id"`

	Income          *big.Rat `bigquery:"income"`
	Expenditure     *big.Rat `bigquery:"expenditure"`
	NetWorth        *big.Rat `bigquery:"net_worth"`
	Checking        *big.Rat `bigquery:"checking"`
	Cashflow        *big.Rat `bigquery:"cashflow"`
	PortfolioValue  *big.Rat `bigquery:"portfolio_value"`
	UnrealizedPL    *big.Rat `bigquery:"unrealized_pl"`
	RealizedPL      *big.Rat `bigquery:"realized_pl"`
	Records         int64    `bigquery:"records"`
	OpenPositions   int64    `bigquery:"open_positions"`
	ClosedPositions int64    `bigquery:"closed_positions"`

	Payload bigquery.NullJSON `bigquery:"payload"`
}

// RowView is the JSON form of a Row.
type RowView struct {
	SnapshotID      string          `json:"snapshotId"`
	TakenAt         time.Time       `json:"takenAt"`
	DatabaseID      string          `json:"databaseId,omitempty"`
	Income          decimal.Decimal `json:"income"`
	Expenditure     decimal.Decimal `json:"expenditure"`
	NetWorth        decimal.Decimal `json:"netWorth"`
	Checking        decimal.Decimal `json:"checking"`
	Cashflow        decimal.Decimal `json:"cashflow"`
	PortfolioValue  decimal.Decimal `json:"portfolioValue"`
	UnrealizedPL    decimal.Decimal `json:"unrealizedProfitLoss"`
	RealizedPL      decimal.Decimal `json:"realizedProfitLoss"`
	Records         int64           `json:"records"`
	OpenPositions   int64           `json:"openPositions"`
	ClosedPositions int64           `json:"closedPositions"`
}

// View converts the NUMERIC columns back to decimals.
func (r *Row) View() RowView {
	return RowView{
		SnapshotID:      r.SnapshotID,
		TakenAt:         r.TakenAt,
		DatabaseID:      r.DatabaseID,
		Income:          ratToDecimal(r.Income),
		Expenditure:     ratToDecimal(r.Expenditure),
		NetWorth:        ratToDecimal(r.NetWorth),
		Checking:        ratToDecimal(r.Checking),
		Cashflow:        ratToDecimal(r.Cashflow),
		PortfolioValue:  ratToDecimal(r.PortfolioValue),
		UnrealizedPL:    ratToDecimal(r.UnrealizedPL),
		RealizedPL:      ratToDecimal(r.RealizedPL),
		Records:         r.Records,
		OpenPositions:   r.OpenPositions,
		ClosedPositions: r.ClosedPositions,
	}
}

// ratToDecimal keeps the nine fractional digits of a BigQuery NUMERIC.
func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// NewRow summarizes s. The full snapshot is kept in the payload column.
func NewRow(s *Snapshot) (*Row, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("NewRow: %w", err)
	}
	return &Row{
		SnapshotID:      s.ID,
		TakenAt:         s.TakenAt,
		DatabaseID:      s.DatabaseID,
		Income:          s.Ledger.Income.Rat(),
		Expenditure:     s.Ledger.Expenditure.Rat(),
		NetWorth:        s.Ledger.NetWorth.Rat(),
		Checking:        s.Ledger.Checking.Rat(),
		Cashflow:        s.Ledger.Cashflow.Rat(),
		PortfolioValue:  s.PortfolioValue.Rat(),
		UnrealizedPL:    s.UnrealizedPL().Rat(),
		RealizedPL:      s.ClosedTotals.RealizedPL.Rat(),
		Records:         int64(s.Ledger.Records),
		OpenPositions:   int64(len(s.Open)),
		ClosedPositions: int64(len(s.Closed)),
		Payload:         bigquery.NullJSON{JSONVal: string(payload), Valid: true},
	}, nil
}

// BigQuerySink appends one row per snapshot to a table.
type BigQuerySink struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewBigQuerySink writes into project.dataset.table.
func NewBigQuerySink(client *bigquery.Client, project, dataset, table string) *BigQuerySink {
	return &BigQuerySink{client: client, project: project, dataset: dataset, table: table}
}

// Name implements Sink.
func (b *BigQuerySink) Name() string {
	return "bigquery"
}

func (b *BigQuerySink) tableRef() *bigquery.Table {
	return b.client.DatasetInProject(b.project, b.dataset).Table(b.table)
}

// EnsureTable creates the table, partitioned by day on taken_at, if it does
// not exist yet.
func (b *BigQuerySink) EnsureTable(ctx context.Context) error {
	t := b.tableRef()
	if _, err := t.Metadata(ctx); err == nil {
		return nil
	} else if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(Row{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema:           schema,
		TimePartitioning: &bigquery.TimePartitioning{Field: "taken_at"},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: create: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// Write implements Sink.
func (b *BigQuerySink) Write(ctx context.Context, s *Snapshot) error {
	row, err := NewRow(s)
	if err != nil {
		return fmt.Errorf("BigQuerySink.Write: %w", err)
	}
	if err := b.tableRef().Inserter().Put(ctx, []*Row{row}); err != nil {
		return fmt.Errorf("BigQuerySink.Write: inserting row: %w", err)
	}
	return nil
}

func (b *BigQuerySink) recentQuery() string {
	return fmt.Sprintf(`
		SELECT
			snapshot_id,
			taken_at,
			database_id,
			income,
			expenditure,
			net_worth,
			checking,
			cashflow,
			portfolio_value,
			unrealized_pl,
			realized_pl,
			records,
			open_positions,
			closed_positions
		FROM `+"`%s.%s.%s`"+`
		ORDER BY taken_at DESC
		LIMIT @limit
	`, b.project, b.dataset, b.table)
}

// ListRecent returns the latest n snapshot rows, newest first, without payloads.
func (b *BigQuerySink) ListRecent(ctx context.Context, n int) ([]*Row, error) {
	if n <= 0 {
		n = 10
	}

	q := b.client.Query(b.recentQuery())
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: n},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: query read: %w", err)
	}

	rows := []*Row{}
	for {
		var r Row
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecent: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}
