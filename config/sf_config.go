package config

import (
	"github.com/pkg/errors"
	"github.com/tkanos/gonfig"
)

// SFConfig is only read when the SQL store uses the snowflake driver without an explicit DSN.
type SFConfig struct {
	SF_Server    string `json:"SF_SERVER" env:"SF_SERVER"`
	SF_Username  string `json:"SF_USERNAME" env:"SF_USERNAME"`
	SF_Password  string `json:"SF_PASSWORD" env:"SF_PASSWORD"`
	SF_DbName    string `json:"SF_DBNAME" env:"SF_DBNAME"`
	SF_Schema    string `json:"SF_SCHEMA" env:"SF_SCHEMA"`
	SF_Warehouse string `json:"SF_WAREHOUSE" env:"SF_WAREHOUSE"`
}

func LoadSFConfig(dir, env string) (SFConfig, error) {
	var sfConfig SFConfig

	err := gonfig.GetConf(fileName(dir, "sf", env), &sfConfig)
	if err != nil {
		return sfConfig, errors.Wrap(err, "load snowflake config")
	}

	if sfConfig.SF_Server == "" || sfConfig.SF_Username == "" || sfConfig.SF_DbName == "" {
		return sfConfig, errors.New("snowflake config requires SF_SERVER, SF_USERNAME and SF_DBNAME")
	}
	if sfConfig.SF_Schema == "" {
		sfConfig.SF_Schema = "PUBLIC"
	}
	return sfConfig, nil
}
