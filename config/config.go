package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Config groups every file the job reads for one environment.
type Config struct {
	Env     string
	CK      CKConfig
	Store   StoreConfig
	SF      *SFConfig
	GCS     *GCSConfig
	Report  ReportConfig
	Service ServiceConfig
}

// Load reads <prefix>_<env>.json files from dir. Optional files are only read when
// another setting needs them.
func Load(dir, env string) (*Config, error) {
	cfg := &Config{Env: normalizeEnv(env)}

	var err error
	if cfg.CK, err = LoadCKConfig(dir, env); err != nil {
		return nil, err
	}
	if cfg.Store, err = LoadStoreConfig(dir, env); err != nil {
		return nil, err
	}
	if cfg.Store.Backend == BackendSQL && cfg.Store.Driver == "snowflake" && cfg.Store.DSN == "" {
		sf, err := LoadSFConfig(dir, env)
		if err != nil {
			return nil, err
		}
		cfg.SF = &sf
	}
	if cfg.Report, err = LoadReportConfig(dir, env); err != nil {
		return nil, err
	}
	if cfg.Report.Enabled && cfg.Report.Sink == SinkGCS {
		gcs, err := LoadGCSConfig(dir, env)
		if err != nil {
			return nil, err
		}
		cfg.GCS = &gcs
	}
	if cfg.Service, err = LoadServiceConfig(dir, env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func normalizeEnv(env string) string {
	if env == "" {
		return "dev"
	}
	return strings.ToLower(env)
}

func fileName(dir, prefix, env string) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.json", prefix, normalizeEnv(env)))
}
