package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brensch/modlog/db"
	"github.com/samber/mo"
)

// DuckDB is a Store backed by a log_channels table.
type DuckDB struct {
	client *db.Client
}

// NewDuckDB creates the log_channels table if needed.
func NewDuckDB(ctx context.Context, client *db.Client) (*DuckDB, error) {
	err := client.Migrate(ctx, `
	CREATE TABLE IF NOT EXISTS log_channels (
		guild_id   VARCHAR PRIMARY KEY,
		channel_id VARCHAR NOT NULL,
		updated_at TIMESTAMP DEFAULT current_timestamp
	)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create log_channels table: %w", err)
	}
	return &DuckDB{client: client}, nil
}

func (d *DuckDB) Get(ctx context.Context, guildID string) (mo.Option[string], error) {
	var channelID string
	err := d.client.Conn().QueryRowContext(ctx,
		`SELECT channel_id FROM log_channels WHERE guild_id = ?`, guildID,
	).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return mo.None[string](), nil
	}
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to read log channel for guild %s: %w", guildID, err)
	}
	return mo.Some(channelID), nil
}

func (d *DuckDB) Set(ctx context.Context, guildID, channelID string) error {
	_, err := d.client.Conn().ExecContext(ctx,
		`INSERT INTO log_channels (guild_id, channel_id) VALUES (?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET channel_id = excluded.channel_id, updated_at = current_timestamp`,
		guildID, channelID,
	)
	if err != nil {
		return fmt.Errorf("failed to store log channel for guild %s: %w", guildID, err)
	}
	return nil
}

func (d *DuckDB) All(ctx context.Context) (map[string]string, error) {
	rows, err := d.client.Conn().QueryContext(ctx, `SELECT guild_id, channel_id FROM log_channels`)
	if err != nil {
		return nil, fmt.Errorf("failed to list log channels: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var guildID, channelID string
		if err := rows.Scan(&guildID, &channelID); err != nil {
			return nil, err
		}
		out[guildID] = channelID
	}
	return out, rows.Err()
}
