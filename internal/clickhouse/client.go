package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Billy-Davies-2/basket-tracker/internal/models"
)

// Analytics receives finalized games and answers season-level questions
type Analytics interface {
	RecordGame(ctx context.Context, game models.Game, events []models.Event) error
	PlayerTotals(ctx context.Context, playerID string) (map[models.EventType]int, error)
	Close() error
}

const schema = `
	CREATE TABLE IF NOT EXISTS basket_events (
		event_id   String,
		game_id    String,
		game_date  String,
		opponent   String,
		player_id  String,
		team       LowCardinality(String),
		type       LowCardinality(String),
		period     UInt8,
		ts         DateTime64(3),
		points     UInt8,
		recorded   DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(recorded)
	ORDER BY (game_id, event_id)
`

// Client writes game events to ClickHouse
type Client struct {
	conn driver.Conn
}

// NewClient connects, pings and makes sure the events table exists
func NewClient(addr, database, username, password string) (*Client, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx := context.Background()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create basket_events: %w", err)
	}

	return &Client{conn: conn}, nil
}

// Row is one event as stored in basket_events
type Row struct {
	EventID  string
	GameID   string
	GameDate string
	Opponent string
	PlayerID string
	Team     string
	Type     string
	Period   uint8
	Ts       time.Time
	Points   uint8
}

// Rows flattens a game's events; substitutions are skipped
func Rows(game models.Game, events []models.Event) []Row {
	rows := make([]Row, 0, len(events))
	for _, e := range events {
		if e.Type.IsSubstitution() {
			continue
		}
		period := e.Period
		if period < 0 || period > 255 {
			period = 0
		}
		rows = append(rows, Row{
			EventID:  e.ID,
			GameID:   game.ID,
			GameDate: game.DateISO,
			Opponent: game.Opponent,
			PlayerID: e.PlayerID,
			Team:     string(e.Team),
			Type:     string(e.Type),
			Period:   uint8(period),
			Ts:       time.UnixMilli(e.TsMs).UTC(),
			Points:   uint8(e.Type.PointValue()),
		})
	}
	return rows
}

// RecordGame batch-inserts the game's events. Recording the same game again
// is collapsed by the table engine.
func (c *Client) RecordGame(ctx context.Context, game models.Game, events []models.Event) error {
	rows := Rows(game, events)
	if len(rows) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `INSERT INTO basket_events
		(event_id, game_id, game_date, opponent, player_id, team, type, period, ts, points)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}
	for _, r := range rows {
		if err := batch.Append(r.EventID, r.GameID, r.GameDate, r.Opponent, r.PlayerID,
			r.Team, r.Type, r.Period, r.Ts, r.Points); err != nil {
			batch.Abort()
			return fmt.Errorf("append %s: %w", r.EventID, err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch for game %s: %w", game.ID, err)
	}
	return nil
}

// PlayerTotals counts a player's events by type across every recorded game
func (c *Client) PlayerTotals(ctx context.Context, playerID string) (map[models.EventType]int, error) {
	query := `
		SELECT type, toInt64(count()) AS n
		FROM basket_events FINAL
		WHERE player_id = ?
		GROUP BY type
	`
	rows, err := c.conn.Query(ctx, query, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[models.EventType]int)
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		totals[models.EventType(typ)] = int(n)
	}
	return totals, rows.Err()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
