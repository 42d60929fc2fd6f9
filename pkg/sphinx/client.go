// Package sphinx opens SphinxQL connections to searchd over the MySQL wire
// protocol using go-sql-driver/mysql.
//
// searchd has no server-side prepared statements, so parameters are
// interpolated by the driver, and multi-statement batches are enabled so a
// SELECT with FACET clauses and a trailing SHOW META run as one request.
package sphinx

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/sphinx-search/pkg/config"
	"github.com/go-sql-driver/mysql"
)

type Client struct {
	DB  *sql.DB
	cfg config.SphinxConfig
}

// DSN builds the driver DSN for cfg.
func DSN(cfg config.SphinxConfig) string {
	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Timeout = cfg.DialTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	mc.InterpolateParams = true
	mc.MultiStatements = true
	mc.AllowNativePasswords = true
	return mc.FormatDSN()
}

func New(cfg config.SphinxConfig) (*Client, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening sphinx connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sphinx at %s: %w", cfg.Addr(), err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// QueryContext runs a SphinxQL batch. Callers must close the returned rows.
func (c *Client) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.DB.QueryContext(ctx, query, args...)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
