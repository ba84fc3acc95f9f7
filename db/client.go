// db/client.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver registration
)

// Client is a DuckDB handle. With an empty path the database lives in memory
// and disappears with the process.
type Client struct {
	DB   *sql.DB
	path string
}

// NewClient opens DuckDB at path, creating its parent directory when needed.
func NewClient(path string) (*Client, error) {
	if path != "" {
		dir := filepath.Dir(path)
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to stat directory: %w", err)
		} else if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", dir)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	return &Client{
		DB:   db,
		path: path,
	}, nil
}

// Start ensures that the database connection is available by pinging it.
func (c *Client) Start(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}
	return nil
}

// Stop closes the DuckDB connection.
func (c *Client) Stop() error {
	return c.DB.Close()
}

// Conn returns the underlying database connection for running queries directly.
func (c *Client) Conn() *sql.DB {
	return c.DB
}

// InMemory reports whether the database is discarded on Stop.
func (c *Client) InMemory() bool {
	return c.path == ""
}

// Migrate runs each statement in order, stopping at the first failure.
func (c *Client) Migrate(ctx context.Context, statements ...string) error {
	for _, stmt := range statements {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
