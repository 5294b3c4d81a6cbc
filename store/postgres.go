package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS game_rooms (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	room_code VARCHAR(10) UNIQUE NOT NULL,
	game_state JSONB,
	chat_messages JSONB DEFAULT '[]'::jsonb,
	players JSONB DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW(),
	is_active BOOLEAN DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_room_code ON game_rooms(room_code);
CREATE INDEX IF NOT EXISTS idx_active_rooms ON game_rooms(is_active) WHERE is_active = true;
`

// PostgresRoomStore persists rooms in a game_rooms table. Blobs are
// JSONB columns; deactivated rooms stay queryable until purged.
type PostgresRoomStore struct {
	pool *pgxpool.Pool
}

// NewPostgresRoomStore connects, verifies the connection and ensures
// the schema exists
func NewPostgresRoomStore(ctx context.Context, databaseURL string) (*PostgresRoomStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &PostgresRoomStore{pool: pool}, nil
}

// Close releases the connection pool
func (s *PostgresRoomStore) Close() {
	s.pool.Close()
}

func (s *PostgresRoomStore) CreateRoom(ctx context.Context, code string, players json.RawMessage) (*Room, error) {
	if players == nil {
		players = emptyList
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO game_rooms (room_code, players, is_active)
		VALUES ($1, $2, true)
		RETURNING id, room_code, game_state, players, chat_messages, is_active, created_at, updated_at`,
		code, players,
	)
	room, err := scanRoom(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrRoomExists
		}
		return nil, fmt.Errorf("creating room %s: %w", code, err)
	}
	return room, nil
}

func (s *PostgresRoomStore) GetRoom(ctx context.Context, code string) (*Room, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, room_code, game_state, players, chat_messages, is_active, created_at, updated_at
		FROM game_rooms
		WHERE room_code = $1 AND is_active = true`,
		code,
	)
	room, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("fetching room %s: %w", code, err)
	}
	return room, nil
}

func (s *PostgresRoomStore) UpdateGameState(ctx context.Context, code string, state json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms
		SET game_state = $1, updated_at = NOW()
		WHERE room_code = $2 AND is_active = true`,
		state, code,
	)
	if err != nil {
		return fmt.Errorf("updating game state for %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresRoomStore) UpdatePlayers(ctx context.Context, code string, players json.RawMessage) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms
		SET players = $1, updated_at = NOW()
		WHERE room_code = $2 AND is_active = true`,
		players, code,
	)
	if err != nil {
		return fmt.Errorf("updating players for %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresRoomStore) AddChatMessage(ctx context.Context, code string, message json.RawMessage) (json.RawMessage, error) {
	wrapped, err := json.Marshal([]json.RawMessage{message})
	if err != nil {
		return nil, fmt.Errorf("encoding chat message: %w", err)
	}

	var log json.RawMessage
	err = s.pool.QueryRow(ctx, `
		UPDATE game_rooms
		SET chat_messages = chat_messages || $1::jsonb, updated_at = NOW()
		WHERE room_code = $2 AND is_active = true
		RETURNING chat_messages`,
		wrapped, code,
	).Scan(&log)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("appending chat for %s: %w", code, err)
	}
	return log, nil
}

func (s *PostgresRoomStore) DeactivateRoom(ctx context.Context, code string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE game_rooms
		SET is_active = false, updated_at = NOW()
		WHERE room_code = $1`,
		code,
	)
	if err != nil {
		return fmt.Errorf("deactivating room %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (s *PostgresRoomStore) ActiveRooms(ctx context.Context) ([]*Room, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_code, game_state, players, chat_messages, is_active, created_at, updated_at
		FROM game_rooms
		WHERE is_active = true
		ORDER BY created_at DESC
		LIMIT $1`,
		activeRoomsLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing active rooms: %w", err)
	}
	defer rows.Close()

	rooms := []*Room{}
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *PostgresRoomStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM game_rooms
		WHERE is_active = false AND updated_at < NOW() - make_interval(secs => $1)`,
		maxAge.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("purging stale rooms: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanRoom(row pgx.Row) (*Room, error) {
	var room Room
	err := row.Scan(
		&room.ID,
		&room.Code,
		&room.GameState,
		&room.Players,
		&room.ChatMessages,
		&room.IsActive,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &room, nil
}
