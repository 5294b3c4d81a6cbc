package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	uuid "github.com/satori/go.uuid"
)

const (
	redisRoomPrefix = "room:"
	redisActiveSet  = "rooms:active"

	// deactivated rooms expire on their own; PurgeStale is a no-op
	redisStaleTTL = 24 * time.Hour
)

// RedisRoomStore keeps each room as a JSON value under room:<CODE>.
// Active rooms are indexed in a sorted set scored by creation time.
// Deactivation swaps the persistent key for one with a TTL, so stale
// rooms vanish without a sweeper.
type RedisRoomStore struct {
	client *redis.Client
}

// NewRedisRoomStore connects and verifies the connection
func NewRedisRoomStore(ctx context.Context, addr string) (*RedisRoomStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("pinging redis at %s: %w", addr, err)
	}
	return &RedisRoomStore{client: client}, nil
}

// Close releases the client
func (s *RedisRoomStore) Close() error {
	return s.client.Close()
}

func (s *RedisRoomStore) CreateRoom(ctx context.Context, code string, players json.RawMessage) (*Room, error) {
	if players == nil {
		players = emptyList
	}
	now := time.Now().UTC()
	room := &Room{
		ID:           uuid.NewV4().String(),
		Code:         code,
		Players:      players,
		ChatMessages: emptyList,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	raw, err := json.Marshal(room)
	if err != nil {
		return nil, fmt.Errorf("encoding room %s: %w", code, err)
	}

	ok, err := s.client.SetNX(ctx, redisRoomPrefix+code, raw, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("creating room %s: %w", code, err)
	}
	if !ok {
		return nil, ErrRoomExists
	}

	err = s.client.ZAdd(ctx, redisActiveSet, redis.Z{
		Score:  float64(now.Unix()),
		Member: code,
	}).Err()
	if err != nil {
		return nil, fmt.Errorf("indexing room %s: %w", code, err)
	}
	return room, nil
}

func (s *RedisRoomStore) GetRoom(ctx context.Context, code string) (*Room, error) {
	raw, err := s.client.Get(ctx, redisRoomPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching room %s: %w", code, err)
	}

	var room Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, fmt.Errorf("decoding room %s: %w", code, err)
	}
	if !room.IsActive {
		return nil, ErrRoomNotFound
	}
	return &room, nil
}

func (s *RedisRoomStore) UpdateGameState(ctx context.Context, code string, state json.RawMessage) error {
	return s.update(ctx, code, func(room *Room) {
		room.GameState = state
	})
}

func (s *RedisRoomStore) UpdatePlayers(ctx context.Context, code string, players json.RawMessage) error {
	return s.update(ctx, code, func(room *Room) {
		room.Players = players
	})
}

func (s *RedisRoomStore) AddChatMessage(ctx context.Context, code string, message json.RawMessage) (json.RawMessage, error) {
	var log json.RawMessage
	err := s.update(ctx, code, func(room *Room) {
		var messages []json.RawMessage
		if len(room.ChatMessages) > 0 {
			_ = json.Unmarshal(room.ChatMessages, &messages)
		}
		messages = append(messages, message)
		room.ChatMessages, _ = json.Marshal(messages)
		log = room.ChatMessages
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (s *RedisRoomStore) DeactivateRoom(ctx context.Context, code string) error {
	room, err := s.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	room.IsActive = false
	room.UpdatedAt = time.Now().UTC()

	raw, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encoding room %s: %w", code, err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisRoomPrefix+code, raw, redisStaleTTL)
	pipe.ZRem(ctx, redisActiveSet, code)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deactivating room %s: %w", code, err)
	}
	return nil
}

func (s *RedisRoomStore) ActiveRooms(ctx context.Context) ([]*Room, error) {
	codes, err := s.client.ZRevRange(ctx, redisActiveSet, 0, activeRoomsLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing active rooms: %w", err)
	}

	rooms := []*Room{}
	for _, code := range codes {
		room, err := s.GetRoom(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			// index entry outlived the room; drop it
			s.client.ZRem(ctx, redisActiveSet, code)
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// PurgeStale is satisfied by the TTL set at deactivation
func (s *RedisRoomStore) PurgeStale(ctx context.Context, maxAge time.Duration) (int, error) {
	return 0, nil
}

func (s *RedisRoomStore) update(ctx context.Context, code string, fn func(*Room)) error {
	key := redisRoomPrefix + code

	// optimistic lock: retry on concurrent modification
	for attempt := 0; attempt < 5; attempt++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return ErrRoomNotFound
			}
			if err != nil {
				return err
			}

			var room Room
			if err := json.Unmarshal(raw, &room); err != nil {
				return fmt.Errorf("decoding room %s: %w", code, err)
			}
			if !room.IsActive {
				return ErrRoomNotFound
			}

			fn(&room)
			room.UpdatedAt = time.Now().UTC()

			updated, err := json.Marshal(&room)
			if err != nil {
				return fmt.Errorf("encoding room %s: %w", code, err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, 0)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("updating room %s: too many conflicting writes", code)
}
