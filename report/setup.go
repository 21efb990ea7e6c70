package report

import (
	"context"
	"io"

	"ckreport/config"
	"ckreport/database"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
)

// FromConfig wires the sink and mailer selected by cfg.Report.
func FromConfig(ctx context.Context, cfg *config.Config, tables TableReader) (*Exporter, error) {
	rc := cfg.Report

	var sink ObjectSink
	switch rc.Sink {
	case config.SinkGCS:
		if cfg.GCS == nil {
			return nil, errors.New("gcs sink selected without a gcs config")
		}
		gcs, err := database.NewGCSSink(ctx, *cfg.GCS, rc.GCS_Bucket, rc.Object_Prefix, rc.SignedURLTTL())
		if err != nil {
			return nil, err
		}
		sink = gcs
	case config.SinkS3:
		s3, err := database.NewS3Sink(rc.AWS_Region, rc.AWS_Bucket, rc.Object_Prefix)
		if err != nil {
			return nil, err
		}
		sink = s3
	}

	mailer, err := NewGmailMailer(ctx, option.WithCredentialsFile(rc.Gmail_Credentials_File))
	if err != nil {
		return nil, err
	}
	return NewExporter(tables, sink, mailer, rc), nil
}

// Close releases the sink's client when it holds one.
func (e *Exporter) Close() error {
	if c, ok := e.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
