package storage

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Open connects to the database named by url. Postgres DSNs
// (postgres:// or postgresql://) use the pgx driver; everything else
// is treated as a sqlite path or DSN.
func Open(url string) (*sql.DB, string, error) {
	if strings.TrimSpace(url) == "" {
		return nil, "", errors.New("storage: empty database url")
	}

	driver := DriverSQLite
	dsn := url
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		driver = DriverPostgres
	case strings.HasPrefix(url, "sqlite://"):
		dsn = strings.TrimPrefix(url, "sqlite://")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", err
	}

	if driver == DriverSQLite {
		// modernc sqlite serializes writes through a single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	return db, driver, nil
}
