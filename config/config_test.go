package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConf(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadCKConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "ck_test.json", `{}`)

	cfg, err := LoadCKConfig(dir, "TEST")
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, cfg.Base_URL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Request_Timeout_Seconds)
	assert.Equal(t, DefaultStatsConcurrency, cfg.Stats_Concurrency)
	assert.Equal(t, SecretInQuery, cfg.Secret_Transport)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestCKConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CKConfig
		wantErr bool
	}{
		{name: "adds trailing slash", cfg: CKConfig{Base_URL: "http://localhost:9000/v3"}},
		{name: "bad url", cfg: CKConfig{Base_URL: "not a url"}, wantErr: true},
		{name: "header without name", cfg: CKConfig{Secret_Transport: "header"}, wantErr: true},
		{name: "header with name", cfg: CKConfig{Secret_Transport: "HEADER", Secret_Header: "X-Kit-Api-Key"}},
		{name: "unknown transport", cfg: CKConfig{Secret_Transport: "cookie"}, wantErr: true},
		{name: "bad timezone", cfg: CKConfig{Timezone: "Mars/Olympus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte('/'), tt.cfg.Base_URL[len(tt.cfg.Base_URL)-1])
		})
	}
}

func TestStoreConfig_Validate(t *testing.T) {
	t.Run("sheets needs spreadsheet", func(t *testing.T) {
		cfg := StoreConfig{}
		assert.Error(t, cfg.Validate())
	})

	t.Run("sheets defaults", func(t *testing.T) {
		cfg := StoreConfig{Spreadsheet_ID: "abc"}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, BackendSheets, cfg.Backend)
		assert.Equal(t, DefaultGrowthTable, cfg.Growth_Table)
		assert.Equal(t, DefaultBroadcastTable, cfg.Broadcast_Table)
	})

	t.Run("sql driver", func(t *testing.T) {
		cfg := StoreConfig{Backend: "SQL", Driver: "mysql", DSN: "x"}
		assert.Error(t, cfg.Validate())

		cfg = StoreConfig{Backend: "sql", Driver: "sqlite3"}
		assert.Error(t, cfg.Validate(), "sqlite3 needs a DSN")

		cfg = StoreConfig{Backend: "sql", Driver: "snowflake"}
		assert.NoError(t, cfg.Validate(), "snowflake falls back to sf config")
	})

	t.Run("same table twice", func(t *testing.T) {
		cfg := StoreConfig{Spreadsheet_ID: "abc", Growth_Table: "x", Broadcast_Table: "x"}
		assert.Error(t, cfg.Validate())
	})
}

func TestReportConfig_Validate(t *testing.T) {
	disabled := ReportConfig{Sink: "gcs"}
	require.NoError(t, disabled.Validate(), "disabled report skips sink checks")

	missingBucket := ReportConfig{Enabled: true, Sink: "gcs", Recipients: []string{"a@example.com"}, Gmail_Credentials_File: "g.json"}
	assert.Error(t, missingBucket.Validate())

	noRecipients := ReportConfig{Enabled: true, Sink: "none", Gmail_Credentials_File: "g.json"}
	assert.Error(t, noRecipients.Validate())

	ok := ReportConfig{Enabled: true, Sink: "S3", AWS_Bucket: "b", AWS_Region: "us-east-1", Recipients: []string{"a@example.com"}, Gmail_Credentials_File: "g.json"}
	require.NoError(t, ok.Validate())
	assert.Equal(t, SinkS3, ok.Sink)
	assert.Equal(t, 4, ok.Signed_URL_Hours)
}

func TestServiceConfig_Validate(t *testing.T) {
	cfg := ServiceConfig{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
	assert.Equal(t, ":8089", cfg.HTTP_Addr)

	bad := ServiceConfig{Schedule: "every day"}
	assert.Error(t, bad.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConf(t, dir, "ck_prod.json", `{"CK_TRACK_DAILY_DELTAS": true, "CK_STATS_CONCURRENCY": 2}`)
	writeConf(t, dir, "store_prod.json", `{"STORE_BACKEND": "sql", "STORE_DRIVER": "snowflake"}`)
	writeConf(t, dir, "sf_prod.json", `{"SF_SERVER": "acct", "SF_USERNAME": "u", "SF_PASSWORD": "p", "SF_DBNAME": "db", "SF_WAREHOUSE": "wh"}`)
	writeConf(t, dir, "report_prod.json", `{"REPORT_ENABLED": false}`)
	writeConf(t, dir, "service_prod.json", `{"SERVICE_SCHEDULE": "30 5 * * *"}`)

	cfg, err := Load(dir, "prod")
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.True(t, cfg.CK.Track_Daily_Deltas)
	assert.Equal(t, 2, cfg.CK.Stats_Concurrency)
	require.NotNil(t, cfg.SF)
	assert.Equal(t, "PUBLIC", cfg.SF.SF_Schema)
	assert.Nil(t, cfg.GCS)
	assert.Equal(t, "30 5 * * *", cfg.Service.Schedule)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(t.TempDir(), "prod")
	assert.Error(t, err)
}

func TestLoadCredentials(t *testing.T) {
	t.Run("both present", func(t *testing.T) {
		creds, err := LoadCredentials(MapCredentials{APIKeyName: "key-12345678", APISecretName: "s3cret"})
		require.NoError(t, err)
		assert.Equal(t, "s3cret", creds.APISecret)
		assert.Equal(t, "****5678", creds.Masked())
	})

	t.Run("secret missing", func(t *testing.T) {
		_, err := LoadCredentials(MapCredentials{APIKeyName: "key"})
		var missing *CredentialMissingError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, APISecretName, missing.Name)
	})

	t.Run("empty value counts as missing", func(t *testing.T) {
		_, err := LoadCredentials(MapCredentials{APIKeyName: "", APISecretName: "s"})
		var missing *CredentialMissingError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, APIKeyName, missing.Name)
	})

	t.Run("env provider", func(t *testing.T) {
		t.Setenv(APIKeyName, "env-key")
		t.Setenv(APISecretName, "env-secret")
		creds, err := LoadCredentials(EnvCredentials{})
		require.NoError(t, err)
		assert.Equal(t, "env-key", creds.APIKey)
	})
}
