package mysql

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/cce-project/relay/internal/profile"
	"github.com/cce-project/relay/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
	config  *mysql.Config
}

func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Open MySQL connection with parameter.
	// multiStatements=true is not needed: every statement is executed on its own.
	config, err := mysql.ParseDSN(profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse dsn: %s", profile.DSN)
	}
	config.ParseTime = true

	driver := DB{profile: profile, config: config}
	driver.db, err = sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db: %s", profile.DSN)
	}
	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) Migrate(ctx context.Context) error {
	return d.EnsureTranscriptTables(ctx)
}
