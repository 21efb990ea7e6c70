package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/tkanos/gonfig"
)

const (
	BackendSheets = "sheets"
	BackendSQL    = "sql"

	DefaultGrowthTable    = "listData"
	DefaultBroadcastTable = "broadcastData"
)

type StoreConfig struct {
	Backend string `json:"STORE_BACKEND" env:"STORE_BACKEND"`

	// sheets backend
	Spreadsheet_ID   string `json:"STORE_SPREADSHEET_ID" env:"STORE_SPREADSHEET_ID"`
	Credentials_File string `json:"STORE_CREDENTIALS_FILE" env:"STORE_CREDENTIALS_FILE"`

	// sql backend: snowflake, postgres or sqlite3. An empty DSN with snowflake reads sf_<env>.json.
	Driver string `json:"STORE_DRIVER" env:"STORE_DRIVER"`
	DSN    string `json:"STORE_DSN" env:"STORE_DSN"`

	Growth_Table    string `json:"STORE_GROWTH_TABLE" env:"STORE_GROWTH_TABLE"`
	Broadcast_Table string `json:"STORE_BROADCAST_TABLE" env:"STORE_BROADCAST_TABLE"`
}

func LoadStoreConfig(dir, env string) (StoreConfig, error) {
	var storeConfig StoreConfig

	err := gonfig.GetConf(fileName(dir, "store", env), &storeConfig)
	if err != nil {
		return storeConfig, errors.Wrap(err, "load store config")
	}
	if err := storeConfig.Validate(); err != nil {
		return storeConfig, err
	}
	return storeConfig, nil
}

func (c *StoreConfig) Validate() error {
	c.Backend = strings.ToLower(c.Backend)
	if c.Backend == "" {
		c.Backend = BackendSheets
	}
	if c.Growth_Table == "" {
		c.Growth_Table = DefaultGrowthTable
	}
	if c.Broadcast_Table == "" {
		c.Broadcast_Table = DefaultBroadcastTable
	}
	if c.Growth_Table == c.Broadcast_Table {
		return errors.New("growth and broadcast tables must differ")
	}

	switch c.Backend {
	case BackendSheets:
		if c.Spreadsheet_ID == "" {
			return errors.New("STORE_SPREADSHEET_ID is required for the sheets backend")
		}
	case BackendSQL:
		switch c.Driver {
		case "snowflake", "postgres", "sqlite3":
		default:
			return errors.Errorf("unsupported STORE_DRIVER %q", c.Driver)
		}
		if c.DSN == "" && c.Driver != "snowflake" {
			return errors.Errorf("STORE_DSN is required for driver %s", c.Driver)
		}
	default:
		return errors.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	return nil
}
