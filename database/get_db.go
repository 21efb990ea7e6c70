package database

import (
	"context"

	config "ckreport/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// DBSessions holds the opened report store and whatever needs closing afterwards.
type DBSessions struct {
	Store      *ReportStore
	Sf_session *sqlx.DB
}

func (d *DBSessions) Close() error {
	if d.Sf_session != nil {
		return d.Sf_session.Close()
	}
	return nil
}

// InitDB opens the configured grid backend and wraps it in a ReportStore.
func InitDB(ctx context.Context, cfg *config.Config) (*DBSessions, error) {
	dbs := &DBSessions{}

	var grid Grid
	switch cfg.Store.Backend {
	case config.BackendSQL:
		db, err := OpenSQL(cfg.Store, cfg.SF)
		if err != nil {
			return nil, err
		}
		sqlGrid := NewSQLGrid(db)
		if err := sqlGrid.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		dbs.Sf_session = db
		grid = sqlGrid

	case config.BackendSheets:
		opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
		if cfg.Store.Credentials_File != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.Store.Credentials_File))
		}
		sheetsGrid, err := NewSheetsGrid(ctx, cfg.Store.Spreadsheet_ID, opts...)
		if err != nil {
			return nil, err
		}
		grid = sheetsGrid

	default:
		return nil, errors.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	dbs.Store = NewReportStore(grid, cfg.Store.Growth_Table, cfg.Store.Broadcast_Table)
	return dbs, nil
}

// OpenSQL connects with the configured driver. Snowflake without a DSN reads sf_<env>.json.
func OpenSQL(conf config.StoreConfig, sfConf *config.SFConfig) (*sqlx.DB, error) {
	dsn := conf.DSN
	if dsn == "" && conf.Driver == "snowflake" {
		if sfConf == nil {
			return nil, errors.New("snowflake driver needs STORE_DSN or sf config")
		}
		var err error
		if dsn, err = getConnectionString(*sfConf); err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(conf.Driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", conf.Driver)
	}
	if conf.Driver == "sqlite3" {
		// one connection so :memory: databases are shared
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", conf.Driver)
	}
	return db, nil
}
