// Package db opens the relational store and manages its schema.
package db

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/packaginghippo/hippo/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MySQLDSN builds a MySQL DSN with parseTime enabled.
func MySQLDSN(c config.DatabaseConfig) string {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = c.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// PostgresDSN builds a postgres:// URL. Credentials are escaped, so any
// password works.
func PostgresDSN(c config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.User),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// Dialector returns the gorm dialector for the configured driver.
func Dialector(c config.DatabaseConfig) (gorm.Dialector, error) {
	switch c.Driver {
	case "mysql":
		return gormmysql.Open(MySQLDSN(c)), nil
	case "postgres":
		return postgres.Open(PostgresDSN(c)), nil
	case "sqlite", "":
		path := c.Path
		if path == "" {
			path = "hippo.db"
		}
		if err := ensureDir(path); err != nil {
			return nil, err
		}
		return sqlite.Open(path), nil
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", c.Driver)
	}
}

// Connect opens a GORM connection using the database section of the config.
func Connect(c config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(c)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect (%s): %w", c.Driver, err)
	}
	if c.Driver == "sqlite" || c.Driver == "" {
		// SQLite allows a single writer; serialise through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

func ensureDir(path string) error {
	if path == ":memory:" || filepath.Dir(path) == "." {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("db: create sqlite dir: %w", err)
	}
	return nil
}
