package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
)

// GCSSink writes each snapshot as a JSON object in a bucket.
type GCSSink struct {
	bucket    string
	newWriter func(ctx context.Context, object string) io.WriteCloser
}

// NewGCSSink writes into bucket with an existing storage client.
// It assumes Application Default Credentials are configured.
func NewGCSSink(client *storage.Client, bucket string) *GCSSink {
	return &GCSSink{
		bucket: bucket,
		newWriter: func(ctx context.Context, object string) io.WriteCloser {
			w := client.Bucket(bucket).Object(object).NewWriter(ctx)
			w.ContentType = "application/json"
			return w
		},
	}
}

// ObjectName returns snapshots/YYYY/MM/DD/<id>.json for s.
func ObjectName(s *Snapshot) string {
	t := s.TakenAt.UTC()
	return path.Join("snapshots", t.Format("2006"), t.Format("01"), t.Format("02"), s.ID+".json")
}

// URI returns the gs:// location of s in the sink's bucket.
func (g *GCSSink) URI(s *Snapshot) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, ObjectName(s))
}

// Name implements Sink.
func (g *GCSSink) Name() string {
	return "gcs"
}

// Write implements Sink.
func (g *GCSSink) Write(ctx context.Context, s *Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.newWriter(ctx, ObjectName(s))

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		_ = w.Close()
		return fmt.Errorf("GCSSink.Write: encode: %w", err)
	}

	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("GCSSink.Write: finalize upload: %w", err)
	}
	return nil
}
