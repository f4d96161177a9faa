// Package dbcheck verifies database credentials issued by a Vault database
// secrets engine by opening a connection and running a trivial query.
package dbcheck

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // PostgreSQL

	"github.com/systmms/dsvault/internal/logging"
	"github.com/systmms/dsvault/pkg/vault"
)

// Target is the database behind a database secrets mount.
type Target struct {
	Type     string
	Host     string
	Port     int
	Database string
	SSLMode  string
}

// Result describes a successful check.
type Result struct {
	Driver   string
	Address  string
	Username string
	Latency  time.Duration
}

// Opener opens a database handle. sql.Open satisfies it.
type Opener func(driverName, dataSourceName string) (*sql.DB, error)

// Checker runs connectivity checks.
type Checker struct {
	open   Opener
	logger *logging.Logger
}

// New creates a checker. A nil opener means sql.Open.
func New(open Opener, logger *logging.Logger) *Checker {
	if open == nil {
		open = sql.Open
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Checker{open: open, logger: logger}
}

// Driver returns the database/sql driver name for a database type.
func Driver(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "postgres", "postgresql":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func defaultPort(driver string) int {
	if driver == "mysql" {
		return 3306
	}
	return 5432
}

// DSN builds the connection string for t with the given credentials.
func DSN(t Target, username, password string) (string, error) {
	driver, err := Driver(t.Type)
	if err != nil {
		return "", err
	}
	if t.Host == "" {
		return "", fmt.Errorf("database host is required")
	}
	port := t.Port
	if port == 0 {
		port = defaultPort(driver)
	}
	addr := net.JoinHostPort(t.Host, strconv.Itoa(port))

	switch driver {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = username
		cfg.Passwd = password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = t.Database
		if t.SSLMode != "" && t.SSLMode != "disable" {
			cfg.TLSConfig = "true"
		}
		return cfg.FormatDSN(), nil
	default:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(username, password),
			Host:   addr,
			Path:   "/" + t.Database,
		}
		sslMode := t.SSLMode
		if sslMode == "" {
			sslMode = "require"
		}
		u.RawQuery = url.Values{"sslmode": []string{sslMode}}.Encode()
		return u.String(), nil
	}
}

// Check connects to t with creds and runs SELECT 1.
func (c *Checker) Check(ctx context.Context, t Target, creds *vault.DatabaseCredentials) (*Result, error) {
	if creds == nil || creds.Username == "" {
		return nil, fmt.Errorf("credentials have no username")
	}

	driver, err := Driver(t.Type)
	if err != nil {
		return nil, err
	}
	dsn, err := DSN(t, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}

	db, err := c.open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	defer func() { _ = db.Close() }()

	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect as %s: %w", creds.Username, err)
	}

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return nil, fmt.Errorf("verification query failed: %w", err)
	}

	res := &Result{
		Driver:   driver,
		Address:  t.Host,
		Username: creds.Username,
		Latency:  time.Since(start),
	}
	c.logger.Debug("%s check as %s ok in %s", driver, creds.Username, res.Latency)
	return res, nil
}
