package journal

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/arbor/pkg/api"
)

// RedisStore is a JournalStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>events:<session_id> => LIST of gob-encoded redisEventPayload
//
// Events are appended with RPUSH, so LRANGE returns them in append order.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ api.JournalStore = (*RedisStore)(nil)

type redisEventPayload struct {
	SessionID string
	AtUnixNs  int64
	Type      string
	NodePath  string
	Key       string
	Detail    string
}

// NewRedisStore creates a RedisStore.
// prefix is optional but recommended (e.g. "arbor:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "arbor:"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) keyEvents(sessionID string) string {
	return s.prefix + "events:" + sessionID
}

func encodeRedisEvent(ev api.TreeEvent) ([]byte, error) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	payload := redisEventPayload{
		SessionID: ev.SessionID,
		AtUnixNs:  at.UnixNano(),
		Type:      string(ev.Type),
		NodePath:  ev.NodePath,
		Key:       ev.Key,
		Detail:    ev.Detail,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRedisEvent(data []byte) (api.TreeEvent, error) {
	var payload redisEventPayload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&payload); err != nil {
		return api.TreeEvent{}, err
	}
	return api.TreeEvent{
		SessionID: payload.SessionID,
		At:        time.Unix(0, payload.AtUnixNs),
		Type:      api.EventType(payload.Type),
		NodePath:  payload.NodePath,
		Key:       payload.Key,
		Detail:    payload.Detail,
	}, nil
}

func (s *RedisStore) AppendEvent(ctx context.Context, ev api.TreeEvent) error {
	data, err := encodeRedisEvent(ev)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.keyEvents(ev.SessionID), data).Err()
}

func (s *RedisStore) ListEvents(ctx context.Context, sessionID string) ([]api.TreeEvent, error) {
	raw, err := s.client.LRange(ctx, s.keyEvents(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]api.TreeEvent, 0, len(raw))
	for _, item := range raw {
		ev, err := decodeRedisEvent([]byte(item))
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
