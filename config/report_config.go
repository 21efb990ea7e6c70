package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tkanos/gonfig"
)

const (
	SinkNone = "none"
	SinkGCS  = "gcs"
	SinkS3   = "s3"
)

type ReportConfig struct {
	Enabled bool `json:"REPORT_ENABLED" env:"REPORT_ENABLED"`

	Sink             string `json:"REPORT_SINK" env:"REPORT_SINK"`
	Object_Prefix    string `json:"REPORT_OBJECT_PREFIX" env:"REPORT_OBJECT_PREFIX"`
	GCS_Bucket       string `json:"REPORT_GCS_BUCKET" env:"REPORT_GCS_BUCKET"`
	Signed_URL_Hours int    `json:"REPORT_SIGNED_URL_HOURS" env:"REPORT_SIGNED_URL_HOURS"`
	AWS_Region       string `json:"REPORT_AWS_REGION" env:"REPORT_AWS_REGION"`
	AWS_Bucket       string `json:"REPORT_AWS_BUCKET" env:"REPORT_AWS_BUCKET"`

	Gmail_Credentials_File string   `json:"REPORT_GMAIL_CREDENTIALS_FILE" env:"REPORT_GMAIL_CREDENTIALS_FILE"`
	Sender                 string   `json:"REPORT_SENDER" env:"REPORT_SENDER"`
	Recipients             []string `json:"REPORT_RECIPIENTS"`
	Live_Report_URL        string   `json:"REPORT_LIVE_URL" env:"REPORT_LIVE_URL"`
}

func LoadReportConfig(dir, env string) (ReportConfig, error) {
	var reportConfig ReportConfig

	err := gonfig.GetConf(fileName(dir, "report", env), &reportConfig)
	if err != nil {
		return reportConfig, errors.Wrap(err, "load report config")
	}
	if err := reportConfig.Validate(); err != nil {
		return reportConfig, err
	}
	return reportConfig, nil
}

func (c *ReportConfig) Validate() error {
	c.Sink = strings.ToLower(c.Sink)
	if c.Sink == "" {
		c.Sink = SinkNone
	}
	if c.Signed_URL_Hours <= 0 {
		c.Signed_URL_Hours = 4
	}
	if !c.Enabled {
		return nil
	}

	switch c.Sink {
	case SinkNone:
	case SinkGCS:
		if c.GCS_Bucket == "" {
			return errors.New("REPORT_GCS_BUCKET is required for the gcs sink")
		}
	case SinkS3:
		if c.AWS_Bucket == "" || c.AWS_Region == "" {
			return errors.New("REPORT_AWS_BUCKET and REPORT_AWS_REGION are required for the s3 sink")
		}
	default:
		return errors.Errorf("unknown REPORT_SINK %q", c.Sink)
	}

	if len(c.Recipients) == 0 {
		return errors.New("REPORT_RECIPIENTS must list at least one address")
	}
	if c.Gmail_Credentials_File == "" {
		return errors.New("REPORT_GMAIL_CREDENTIALS_FILE is required when the report is enabled")
	}
	return nil
}

func (c ReportConfig) SignedURLTTL() time.Duration {
	return time.Duration(c.Signed_URL_Hours) * time.Hour
}
