package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces session records so the store can share a
// Redis database with other keyspaces.
const redisKeyPrefix = "smartflow:session:"

// maxConsumeRetries bounds the optimistic-locking retry loop in
// ConsumePending when concurrent writers keep touching the record.
const maxConsumeRetries = 5

// RedisStore persists sessions in Redis so multiple replicas can serve
// the same visitors. Records are stored as JSON with a TTL refreshed on
// every Put.
type RedisStore struct {
	client     redis.UniversalClient
	sessionTTL time.Duration
	logger     hclog.Logger
}

// ensure the RedisStore implements the Store interface.
var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a RedisStore on top of an existing client. The
// caller keeps ownership of the client and its lifecycle.
//
// Supported options: WithSessionTTL, WithLogger
func NewRedisStore(client redis.UniversalClient, opt ...Option) (*RedisStore, error) {
	const op = "session.NewRedisStore"
	if client == nil {
		return nil, fmt.Errorf("%s: missing redis client: %w", op, ErrNilParameter)
	}
	opts := getStoreOpts(opt...)
	return &RedisStore{
		client:     client,
		sessionTTL: opts.withSessionTTL,
		logger:     opts.withLogger,
	}, nil
}

// Get returns a copy of the session for id, or ErrNotFound when the
// record is absent or Redis already expired it.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	const op = "session.(RedisStore).Get"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	b, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
	case err != nil:
		return nil, fmt.Errorf("%s: redis get: %w", op, err)
	}
	var sess Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("%s: decode session: %w", op, err)
	}
	return &sess, nil
}

// Put stores sess as JSON under its id and refreshes the record's TTL.
func (s *RedisStore) Put(ctx context.Context, sess *Session) error {
	const op = "session.(RedisStore).Put"
	switch {
	case sess == nil:
		return fmt.Errorf("%s: missing session: %w", op, ErrNilParameter)
	case sess.ID == "":
		return fmt.Errorf("%s: missing session id: %w", op, ErrInvalidParameter)
	}
	cp := sess.Clone()
	cp.UpdatedAt = time.Now()
	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("%s: encode session: %w", op, err)
	}
	if err := s.client.Set(ctx, s.key(cp.ID), b, s.sessionTTL).Err(); err != nil {
		return fmt.Errorf("%s: redis set: %w", op, err)
	}
	return nil
}

// ConsumePending removes and returns the provider's pending attempt
// using WATCH-based optimistic locking, so of two callbacks racing for
// the same attempt exactly one wins; the loser finds the attempt gone
// and gets ErrNoPending.
func (s *RedisStore) ConsumePending(ctx context.Context, id string, p Provider) (*Pending, error) {
	const op = "session.(RedisStore).ConsumePending"
	if id == "" {
		return nil, fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	key := s.key(id)
	var pending *Pending
	consume := func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		case err != nil:
			return fmt.Errorf("%s: redis get: %w", op, err)
		}
		var sess Session
		if err := json.Unmarshal(b, &sess); err != nil {
			return fmt.Errorf("%s: decode session: %w", op, err)
		}
		got := sess.Pendings[p]
		if got == nil {
			return fmt.Errorf("%s: provider %q: %w", op, p, ErrNoPending)
		}
		cp := *got
		pending = &cp
		delete(sess.Pendings, p)
		sess.UpdatedAt = time.Now()
		updated, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("%s: encode session: %w", op, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			// KeepTTL: consuming an attempt must not extend the
			// session's life.
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		return err
	}
	for i := 0; i < maxConsumeRetries; i++ {
		err := s.client.Watch(ctx, consume, key)
		switch {
		case err == nil:
			return pending, nil
		case errors.Is(err, redis.TxFailedErr):
			// another writer touched the record between GET and EXEC;
			// re-read and try again
			s.logger.Debug("retrying pending consume after write conflict", "attempt", i+1)
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: reached maximum number of retries: %w", op, redis.TxFailedErr)
}

// Delete removes the session for id. Deleting an absent session is not
// an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	const op = "session.(RedisStore).Delete"
	if id == "" {
		return fmt.Errorf("%s: missing id: %w", op, ErrInvalidParameter)
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: redis del: %w", op, err)
	}
	return nil
}

func (s *RedisStore) key(id string) string {
	return redisKeyPrefix + id
}
