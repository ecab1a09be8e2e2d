package snapshot

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-dashboard/internal/aggregate"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

// Narrator writes a narrative for a snapshot. insights.Summarizer satisfies it.
type Narrator interface {
	Summarize(ctx context.Context, s *Snapshot) (string, error)
}

// Runner executes snapshot jobs: build, optionally narrate, then write.
type Runner struct {
	builder  *Builder
	sinks    MultiSink
	narrator Narrator
}

// NewRunner creates a job runner. narrator may be nil.
func NewRunner(builder *Builder, sinks MultiSink, narrator Narrator) *Runner {
	return &Runner{builder: builder, sinks: sinks, narrator: narrator}
}

// Handle is a jobs.JobHandler.
func (r *Runner) Handle(ctx context.Context, job *jobs.SnapshotJob) error {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()
	ctx = logger.WithContext(ctx, log)

	s, err := r.builder.Build(ctx, Request{
		DatabaseID: job.DatabaseID,
		Filter:     aggregate.NewFilter(job.ExcludedTags, job.Start, job.End),
	})
	if err != nil {
		return fmt.Errorf("Handle: %w", err)
	}

	if r.narrator != nil {
		summary, err := r.narrator.Summarize(ctx, s)
		if err != nil {
			log.Warn().Err(err).Msg("Snapshot summary failed, storing without it")
		} else {
			s.Summary = summary
		}
	}

	written, err := r.sinks.WriteAll(ctx, s)
	if err != nil && len(written) == 0 && len(r.sinks) > 0 {
		return fmt.Errorf("Handle: %w", err)
	}
	if err != nil {
		log.Warn().Err(err).Strs("written", written).Msg("Some snapshot sinks failed")
	}

	job.Result = &jobs.SnapshotResult{
		SnapshotID: s.ID,
		TakenAt:    s.TakenAt,
		Sinks:      written,
		Summary:    s.Summary,
	}
	return nil
}
