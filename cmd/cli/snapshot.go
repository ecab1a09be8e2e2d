package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/storage"
	"github.com/google/subcommands"

	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/snapshot"
)

// snapshotCmd builds one snapshot and writes it to the configured sinks
// without going through the job queue.
type snapshotCmd struct {
	filterFlags
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "take a snapshot and store it in GCS and BigQuery" }
func (*snapshotCmd) Usage() string {
	return `snapshot [-db <name>] [-exclude <tags>] [-start <date>] [-end <date>]

  Reads the ledger and the brokerage, then writes the snapshot to the
  bucket and the BigQuery table from the config.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	c.filterFlags.register(f)
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	ctx = e.context(ctx)

	var sinks snapshot.MultiSink
	if e.cfg.Snapshot.Bucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			fail("Error creating storage client: %v", err)
			return subcommands.ExitFailure
		}
		defer client.Close()
		sinks = append(sinks, snapshot.NewGCSSink(client, e.cfg.Snapshot.Bucket))
	}
	if e.cfg.Snapshot.BigQueryProject != "" && e.cfg.Snapshot.BigQueryDataset != "" {
		client, err := bigquery.NewClient(ctx, e.cfg.Snapshot.BigQueryProject)
		if err != nil {
			fail("Error creating BigQuery client: %v", err)
			return subcommands.ExitFailure
		}
		defer client.Close()
		sink := snapshot.NewBigQuerySink(client, e.cfg.Snapshot.BigQueryProject, e.cfg.Snapshot.BigQueryDataset, e.cfg.Snapshot.BigQueryTable)
		if err := sink.EnsureTable(ctx); err != nil {
			fail("Error preparing snapshot table: %v", err)
			return subcommands.ExitFailure
		}
		sinks = append(sinks, sink)
	}

	var narrator snapshot.Narrator
	if e.cfg.Insights.Enabled {
		s, err := insights.NewGeminiSummarizer(ctx, e.cfg.Insights.Model)
		if err != nil {
			fail("Error creating summarizer: %v", err)
			return subcommands.ExitFailure
		}
		narrator = s
	}

	job := &jobs.SnapshotJob{
		JobID:        "cli",
		DatabaseID:   c.db,
		ExcludedTags: excludedTags(filter.ExcludedTags),
		Start:        filter.Start,
		End:          filter.End,
	}
	runner := snapshot.NewRunner(e.sources.Builder(e.cfg), sinks, narrator)
	if err := runner.Handle(ctx, job); err != nil {
		fail("Error taking snapshot: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Snapshot %s taken at %s\n", job.Result.SnapshotID, job.Result.TakenAt.Format("2006-01-02 15:04:05"))
	if len(job.Result.Sinks) > 0 {
		fmt.Printf("Stored in: %s\n", strings.Join(job.Result.Sinks, ", "))
	} else {
		fmt.Println("No sinks configured, nothing stored.")
	}
	if job.Result.Summary != "" {
		fmt.Println()
		printMarkdown(job.Result.Summary)
	}
	return subcommands.ExitSuccess
}

func excludedTags(m map[string]bool) []string {
	tags := make([]string, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	return tags
}
