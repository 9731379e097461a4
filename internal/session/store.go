// Package session implements the dashboard's web sessions: an opaque
// identifier in a signed cookie, with the session record held server-side
// in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cvewatch/cve-dashboard/internal/utils"
)

// ErrNoSession is returned when a request carries no valid session.
var ErrNoSession = errors.New("no session")

// Data is the server-side session record.
type Data struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store keeps session records in Redis under prefix:<id> with a TTL.
type Store struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, prefix: "session", ttl: ttl}
}

func (s *Store) key(id string) string { return s.prefix + ":" + id }

// Create stores d under a fresh random identifier and returns it.
func (s *Store) Create(ctx context.Context, d Data) (string, error) {
	id, err := utils.RandomHex(32)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, s.key(id), body, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return id, nil
}

// Get loads the record for id.  Expired or unknown ids yield ErrNoSession.
func (s *Store) Get(ctx context.Context, id string) (Data, error) {
	body, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Data{}, ErrNoSession
	}
	if err != nil {
		return Data{}, fmt.Errorf("load session: %w", err)
	}
	var d Data
	if err := json.Unmarshal(body, &d); err != nil {
		return Data{}, ErrNoSession
	}
	return d, nil
}

// Delete destroys the record for id.  Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.key(id)).Err()
}
