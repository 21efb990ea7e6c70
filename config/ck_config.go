package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tkanos/gonfig"
)

const (
	DefaultBaseURL          = "https://api.convertkit.com/v3/"
	DefaultRequestTimeout   = 30
	DefaultStatsConcurrency = 4

	SecretInQuery  = "query"
	SecretInHeader = "header"
)

// CKConfig describes how to reach the provider API.
type CKConfig struct {
	Base_URL                string `json:"CK_BASE_URL" env:"CK_BASE_URL"`
	Request_Timeout_Seconds int    `json:"CK_REQUEST_TIMEOUT_SECONDS" env:"CK_REQUEST_TIMEOUT_SECONDS"`
	Stats_Concurrency       int    `json:"CK_STATS_CONCURRENCY" env:"CK_STATS_CONCURRENCY"`

	// "query" sends api_secret as a URL parameter (v3 convention), "header" sends it in Secret_Header.
	Secret_Transport string `json:"CK_SECRET_TRANSPORT" env:"CK_SECRET_TRANSPORT"`
	Secret_Header    string `json:"CK_SECRET_HEADER" env:"CK_SECRET_HEADER"`

	// When set, new and cancelled subscriber counts are fetched for the report day.
	Track_Daily_Deltas bool   `json:"CK_TRACK_DAILY_DELTAS" env:"CK_TRACK_DAILY_DELTAS"`
	Timezone           string `json:"CK_TIMEZONE" env:"CK_TIMEZONE"`
}

func LoadCKConfig(dir, env string) (CKConfig, error) {
	var ckConfig CKConfig

	err := gonfig.GetConf(fileName(dir, "ck", env), &ckConfig)
	if err != nil {
		return ckConfig, errors.Wrap(err, "load convertkit config")
	}

	if err := ckConfig.Validate(); err != nil {
		return ckConfig, err
	}
	return ckConfig, nil
}

// Validate fills defaults and rejects values the client cannot work with.
func (c *CKConfig) Validate() error {
	if c.Base_URL == "" {
		c.Base_URL = DefaultBaseURL
	}
	if !strings.HasSuffix(c.Base_URL, "/") {
		c.Base_URL += "/"
	}
	u, err := url.Parse(c.Base_URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("invalid CK_BASE_URL %q", c.Base_URL)
	}

	if c.Request_Timeout_Seconds <= 0 {
		c.Request_Timeout_Seconds = DefaultRequestTimeout
	}
	if c.Stats_Concurrency <= 0 {
		c.Stats_Concurrency = DefaultStatsConcurrency
	}

	switch strings.ToLower(c.Secret_Transport) {
	case "", SecretInQuery:
		c.Secret_Transport = SecretInQuery
	case SecretInHeader:
		c.Secret_Transport = SecretInHeader
		if c.Secret_Header == "" {
			return errors.New("CK_SECRET_HEADER is required when CK_SECRET_TRANSPORT is header")
		}
	default:
		return errors.Errorf("unknown CK_SECRET_TRANSPORT %q", c.Secret_Transport)
	}

	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return errors.Wrapf(err, "invalid CK_TIMEZONE %q", c.Timezone)
	}
	return nil
}

func (c CKConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Request_Timeout_Seconds) * time.Second
}

// Location is only valid after Validate.
func (c CKConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
