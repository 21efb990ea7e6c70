// Report exporter: renders both tables to CSV, stores the file and mails it out.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"ckreport/config"
	"ckreport/database"
	"ckreport/models"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const csvContentType = "text/csv"

// TableReader is the read side of the report store.
type TableReader interface {
	GrowthTable() string
	BroadcastTable() string
	ReadTable(ctx context.Context, table string) ([][]database.Cell, error)
}

// ObjectSink stores a file and returns where it can be fetched from.
type ObjectSink interface {
	Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error)
}

type Result struct {
	FileName   string
	Location   string
	Bytes      int
	Recipients []string
}

type Exporter struct {
	tables TableReader
	sink   ObjectSink
	mailer Mailer
	conf   config.ReportConfig
}

// NewExporter builds an exporter; sink and mailer may be nil to skip that step.
func NewExporter(tables TableReader, sink ObjectSink, mailer Mailer, conf config.ReportConfig) *Exporter {
	return &Exporter{tables: tables, sink: sink, mailer: mailer, conf: conf}
}

// Export must only run after both tables are fully written for day.
func (e *Exporter) Export(ctx context.Context, day time.Time) (*Result, error) {
	growth, err := e.tables.ReadTable(ctx, e.tables.GrowthTable())
	if err != nil {
		return nil, err
	}
	broadcasts, err := e.tables.ReadTable(ctx, e.tables.BroadcastTable())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, growth, broadcasts); err != nil {
		return nil, err
	}

	result := &Result{
		FileName: FileName(day),
		Bytes:    buf.Len(),
	}

	if e.sink != nil {
		loc, err := e.sink.Upload(ctx, result.FileName, bytes.NewReader(buf.Bytes()), csvContentType)
		if err != nil {
			return nil, errors.Wrap(err, "upload report")
		}
		result.Location = loc
	}

	if e.mailer != nil {
		msg := Message{
			From:    e.conf.Sender,
			To:      e.conf.Recipients,
			Subject: fmt.Sprintf("ConvertKit daily report %s", day.Format(models.DateLayout)),
			Body:    e.body(day, result),
			Attachments: []Attachment{{
				Name:        result.FileName,
				ContentType: csvContentType,
				Data:        buf.Bytes(),
			}},
		}
		if err := e.mailer.Send(ctx, msg); err != nil {
			return nil, errors.Wrap(err, "send report")
		}
		result.Recipients = e.conf.Recipients
	}

	log.WithFields(log.Fields{
		"file":       result.FileName,
		"bytes":      result.Bytes,
		"location":   result.Location,
		"recipients": len(result.Recipients),
	}).Info("exported report")
	return result, nil
}

func (e *Exporter) body(day time.Time, result *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subscriber growth and broadcast stats for %s are attached.\n", day.Format(models.DateLayout))
	if result.Location != "" {
		fmt.Fprintf(&sb, "\nDownload: %s\n", result.Location)
	}
	if e.conf.Live_Report_URL != "" {
		fmt.Fprintf(&sb, "Live report: %s\n", e.conf.Live_Report_URL)
	}
	return sb.String()
}

func FileName(day time.Time) string {
	return "report_" + day.Format(models.DateLayout) + ".csv"
}
