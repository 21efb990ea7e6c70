package database

import (
	config "ckreport/config"

	"github.com/pkg/errors"
	sf "github.com/snowflakedb/gosnowflake"
)

// getConnectionString builds user:password@account/db/schema?warehouse=wh from sf_<env>.json.
func getConnectionString(conf config.SFConfig) (string, error) {
	dsn, err := sf.DSN(&sf.Config{
		Account:   conf.SF_Server,
		User:      conf.SF_Username,
		Password:  conf.SF_Password,
		Database:  conf.SF_DbName,
		Schema:    conf.SF_Schema,
		Warehouse: conf.SF_Warehouse,
	})
	if err != nil {
		return "", errors.Wrap(err, "build snowflake dsn")
	}
	return dsn, nil
}
