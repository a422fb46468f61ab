package archive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yourusername/lhbot/pkg/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS lh_games (
	session_id     TEXT PRIMARY KEY,
	player_one     TEXT NOT NULL,
	player_two     TEXT NOT NULL,
	self_role      SMALLINT NOT NULL,
	result         TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	winner         SMALLINT NOT NULL,
	final_position TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL,
	moves          JSONB NOT NULL
)`

// PostgresStore keeps records in the lh_games table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to url and creates the table if needed.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to archive database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Save inserts r. A record already stored under the same session id is
// left untouched.
func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	movesJSON, err := json.Marshal(r.Moves)
	if err != nil {
		return fmt.Errorf("encoding moves: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO lh_games (session_id, player_one, player_two, self_role, result, reason,
			winner, final_position, started_at, finished_at, moves)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO NOTHING
	`, r.SessionID, r.PlayerOne, r.PlayerTwo, int16(r.Self), string(r.Result), r.Reason,
		int16(r.Winner), r.FinalPosition, r.Started, r.Finished, movesJSON)
	if err != nil {
		return fmt.Errorf("saving record %s: %w", r.SessionID, err)
	}
	return nil
}

// List returns the most recently finished records.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT session_id, player_one, player_two, self_role, result, reason,
			winner, final_position, started_at, finished_at, moves
		FROM lh_games
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func scanRecords(rows pgx.Rows) ([]*Record, error) {
	var records []*Record
	for rows.Next() {
		r := &Record{}
		var self, winner int16
		var result string
		var movesJSON []byte
		if err := rows.Scan(&r.SessionID, &r.PlayerOne, &r.PlayerTwo, &self, &result, &r.Reason,
			&winner, &r.FinalPosition, &r.Started, &r.Finished, &movesJSON); err != nil {
			return nil, err
		}
		r.Self = engine.Player(self)
		r.Winner = engine.Player(winner)
		r.Result = Result(result)
		if err := json.Unmarshal(movesJSON, &r.Moves); err != nil {
			return nil, fmt.Errorf("decoding moves of %s: %w", r.SessionID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
